package services

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"findash/internal/cache"
	"findash/internal/remote"
	"findash/internal/snapshot"
)

// Default lifetimes of a loaded snapshot.
const (
	FileSourceTTL   = 2 * time.Minute
	RemoteSourceTTL = 6 * time.Hour
)

// LoadTimeout bounds one shared snapshot load. The load is detached from
// the request that triggered it, since other callers may be waiting on it.
const LoadTimeout = 5 * time.Minute

// Loader reads a complete snapshot.
type Loader interface {
	Load(ctx context.Context) (*snapshot.Source, error)
}

// FileLoader reads the snapshot and its KV side file from local disk.
type FileLoader struct {
	DBPath string
	KVPath string
}

func (l FileLoader) Load(ctx context.Context) (*snapshot.Source, error) {
	return snapshot.LoadFile(ctx, l.DBPath, l.KVPath)
}

// RemoteLoader downloads the snapshot and KV objects into Dir, then loads
// them from there.
type RemoteLoader struct {
	Fetcher  *remote.Fetcher
	DBObject string
	KVObject string
	Dir      string
}

// Paths returns where the downloaded files are written.
func (l RemoteLoader) Paths() (db, kv string) {
	db = filepath.Join(l.Dir, filepath.Base(l.DBObject))
	if l.KVObject != "" {
		kv = filepath.Join(l.Dir, filepath.Base(l.KVObject))
	}
	return db, kv
}

// Download fetches both objects concurrently.
func (l RemoteLoader) Download(ctx context.Context) error {
	dbPath, kvPath := l.Paths()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return l.Fetcher.FetchToFile(gctx, l.DBObject, dbPath)
	})
	if kvPath != "" {
		g.Go(func() error {
			return l.Fetcher.FetchToFile(gctx, l.KVObject, kvPath)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("download snapshot: %w", err)
	}
	return nil
}

func (l RemoteLoader) Load(ctx context.Context) (*snapshot.Source, error) {
	if err := l.Download(ctx); err != nil {
		return nil, err
	}
	dbPath, kvPath := l.Paths()
	return snapshot.LoadFile(ctx, dbPath, kvPath)
}

const sourceKey = "source"

// loadedSource is a snapshot with the generation it was loaded as.
type loadedSource struct {
	src *snapshot.Source
	gen uint64
}

// SourceProvider caches the loaded snapshot for a TTL. Concurrent misses
// share one load.
type SourceProvider struct {
	loader      Loader
	cache       *cache.LRU[loadedSource]
	group       singleflight.Group
	generation  atomic.Uint64
	loadTimeout time.Duration
}

func NewSourceProvider(loader Loader, ttl time.Duration) *SourceProvider {
	return &SourceProvider{
		loader:      loader,
		cache:       cache.NewLRU[loadedSource](1, ttl),
		loadTimeout: LoadTimeout,
	}
}

// Cache exposes the underlying cache for registration with a janitor.
func (p *SourceProvider) Cache() *cache.LRU[loadedSource] { return p.cache }

// Generation is the generation of the most recent load.
func (p *SourceProvider) Generation() uint64 { return p.generation.Load() }

// Source returns the cached snapshot, loading it when missing or expired.
func (p *SourceProvider) Source(ctx context.Context) (*snapshot.Source, error) {
	src, _, err := p.Snapshot(ctx)
	return src, err
}

// Snapshot is Source plus the generation that snapshot was loaded as.
// Results derived from src should be keyed by gen, not by Generation,
// which may already have moved on.
func (p *SourceProvider) Snapshot(ctx context.Context) (*snapshot.Source, uint64, error) {
	if l, ok := p.cache.Get(sourceKey); ok {
		return l.src, l.gen, nil
	}
	v, err, _ := p.group.Do(sourceKey, func() (any, error) {
		if l, ok := p.cache.Get(sourceKey); ok {
			return l, nil
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.loadTimeout)
		defer cancel()

		start := time.Now()
		src, err := p.loader.Load(loadCtx)
		if err != nil {
			return nil, err
		}
		l := loadedSource{src: src, gen: p.generation.Add(1)}
		p.cache.Set(sourceKey, l)
		slog.InfoContext(ctx, "Snapshot source loaded",
			"generation", l.gen,
			"last_updated", src.LastUpdated,
			"duration_ms", time.Since(start).Milliseconds())
		return l, nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("load source: %w", err)
	}
	l := v.(loadedSource)
	return l.src, l.gen, nil
}

// Invalidate drops the cached snapshot so the next Source call reloads.
func (p *SourceProvider) Invalidate() {
	p.cache.Clear()
}
