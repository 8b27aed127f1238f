package services

import (
	"context"
	"fmt"
	"time"

	"findash/internal/cache"
	"findash/internal/core"
	"findash/internal/dept"
	"findash/internal/fte"
	"findash/internal/statement"
)

// DashboardService answers department dashboard queries from the current
// snapshot, caching computed results per snapshot generation.
type DashboardService struct {
	sources    *SourceProvider
	registry   *dept.Registry
	definition statement.Definition
	results    *cache.LRU[dept.Data]
	now        func() time.Time
}

// DashboardOption configures a DashboardService.
type DashboardOption func(*DashboardService)

// WithClock sets the time used for year-to-date calculations.
func WithClock(now func() time.Time) DashboardOption {
	return func(s *DashboardService) { s.now = now }
}

// WithDefinition replaces the default income statement layout.
func WithDefinition(def statement.Definition) DashboardOption {
	return func(s *DashboardService) { s.definition = def }
}

// WithResultCache sets the size and lifetime of the computed result cache.
func WithResultCache(size int, ttl time.Duration) DashboardOption {
	return func(s *DashboardService) { s.results = cache.NewLRU[dept.Data](size, ttl) }
}

func NewDashboardService(sources *SourceProvider, registry *dept.Registry, opts ...DashboardOption) *DashboardService {
	s := &DashboardService{
		sources:    sources,
		registry:   registry,
		definition: statement.DefaultDefinition(),
		results:    cache.NewLRU[dept.Data](256, 10*time.Minute),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResultCache exposes the computed result cache for registration with a janitor.
func (s *DashboardService) ResultCache() *cache.LRU[dept.Data] { return s.results }

// Departments lists every configured department sorted by name.
func (s *DashboardService) Departments() []dept.Config {
	return s.registry.All()
}

// Lookup returns the department config for key.
func (s *DashboardService) Lookup(key string) (dept.Config, error) {
	return s.registry.Lookup(key)
}

// Department computes the dashboard for key. selection and month follow
// dept.Settings; empty values pick every ID and the latest month.
func (s *DashboardService) Department(ctx context.Context, key, selection, month string) (dept.Data, error) {
	cfg, err := s.registry.Lookup(key)
	if err != nil {
		return dept.Data{}, fmt.Errorf("%w: %s", err, key)
	}
	src, gen, err := s.sources.Snapshot(ctx)
	if err != nil {
		return dept.Data{}, err
	}

	cacheKey := fmt.Sprintf("%d|%s|%s|%s", gen, key, selection, month)
	if data, ok := s.results.Get(cacheKey); ok {
		return data, nil
	}
	data := dept.Process(cfg, dept.Settings{Selection: selection, Month: month}, src, s.definition, s.now())
	s.results.Set(cacheKey, data)
	return data, nil
}

// IncomeStatement returns the statement rows for one department and month.
func (s *DashboardService) IncomeStatement(ctx context.Context, key, selection, month string) (statement.Statement, string, error) {
	data, err := s.Department(ctx, key, selection, month)
	if err != nil {
		return nil, "", err
	}
	return data.IncomeStatement, data.Month, nil
}

// Months lists the selectable months of the snapshot, newest first.
func (s *DashboardService) Months(ctx context.Context) ([]string, error) {
	src, err := s.sources.Source(ctx)
	if err != nil {
		return nil, err
	}
	first, last := src.MonthRange()
	lo, err := core.ParseMonth(first)
	if err != nil {
		return nil, nil
	}
	hi, err := core.ParseMonth(last)
	if err != nil {
		return nil, nil
	}
	var out []string
	for m := hi; m.String() >= lo.String(); m = m.AddMonths(-1) {
		out = append(out, m.String())
	}
	return out, nil
}

// LastUpdated is the modification time of the current snapshot.
func (s *DashboardService) LastUpdated(ctx context.Context) (time.Time, error) {
	src, err := s.sources.Source(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return src.LastUpdated, nil
}

// FTECalc runs the staffing calculator with params merged over the defaults.
func (s *DashboardService) FTECalc(requested float64, params fte.Params) (fte.Result, error) {
	p := params.Merge(fte.DefaultParams())
	if err := p.Validate(); err != nil {
		return fte.Result{}, err
	}
	return fte.Calc(requested, p), nil
}

// Refresh drops cached data and reloads the snapshot.
func (s *DashboardService) Refresh(ctx context.Context) error {
	s.sources.Invalidate()
	s.results.Clear()
	if _, err := s.sources.Source(ctx); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	return nil
}

// ValidateDefinition dry-runs the statement layout against the current
// snapshot and returns the total references that match no rows.
func (s *DashboardService) ValidateDefinition(ctx context.Context) ([]statement.UnresolvedRef, error) {
	src, err := s.sources.Source(ctx)
	if err != nil {
		return nil, err
	}
	return statement.Validate(s.definition, src.IncomeStatement), nil
}

// Ready reports whether a snapshot can be loaded.
func (s *DashboardService) Ready(ctx context.Context) error {
	_, err := s.sources.Source(ctx)
	return err
}
