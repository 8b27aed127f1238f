package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"findash/internal/dept"
	"findash/internal/fte"
	"findash/internal/kpi"
	"findash/internal/log"
	"findash/internal/middleware/trace"
	"findash/internal/statement"
)

// Trend chart viewport.
const (
	trendWidth  = 240
	trendHeight = 60
)

func requestID(r *http.Request) string {
	return trace.GetRequestID(r.Context())
}

type statementRow struct {
	Label   string
	Depth   int
	Header  bool
	Amounts *statement.Amounts
}

func statementRows(s statement.Statement) []statementRow {
	rows := make([]statementRow, len(s))
	for i, r := range s {
		rows[i] = statementRow{Label: r.Label, Depth: r.Depth(), Header: r.IsHeader(), Amounts: r.Amounts}
	}
	return rows
}

type departmentPage struct {
	Data        dept.Data
	Departments []dept.Config
	Options     []string
	Months      []string
	Rows        []statementRow
	VolumeTrend string
	FTETrend    string
	TrendWidth  int
	TrendHeight int
}

// loadDepartment computes a dashboard under the request timeout, mapping
// failures to a status code.
func (s *Server) loadDepartment(r *http.Request) (dept.Data, DashboardParams, int, error) {
	key := r.PathValue("key")
	params := ParseDashboardParams(r.URL.Query())
	if params.RejectedMonth != "" {
		s.logger.WarnContext(r.Context(), "Invalid month parameter",
			log.FieldMonth, params.RejectedMonth,
			log.FieldDepartment, key)
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()
	data, err := s.dash.Department(ctx, key, params.Selection, params.Month)
	switch {
	case errors.Is(err, dept.ErrUnknownDepartment):
		return data, params, http.StatusNotFound, err
	case err != nil:
		s.appMetrics.dashboardFails.Add(1)
		s.sl.LogError(r.Context(), "Dashboard load failed", err, log.ComponentDashboard, log.OpRead,
			log.NewFields().WithDashboard(key, params.Selection, params.Month))
		return data, params, http.StatusServiceUnavailable, err
	}
	if data.RejectedSelection != "" {
		s.logger.WarnContext(r.Context(), "Unknown selection parameter",
			log.FieldSelection, data.RejectedSelection,
			log.FieldDepartment, key)
	}
	return data, params, http.StatusOK, nil
}

// handleDepartment renders the KPI cards, tables and income statement of
// one department.
func (s *Server) handleDepartment(w http.ResponseWriter, r *http.Request) {
	data, params, status, err := s.loadDepartment(r)
	if err != nil {
		msg := "The financial data is temporarily unavailable."
		if status == http.StatusNotFound {
			msg = "No department named " + r.PathValue("key") + "."
		}
		s.renderError(w, r, status, msg)
		return
	}

	months, err := s.dash.Months(r.Context())
	if err != nil {
		s.logger.WarnContext(r.Context(), "Months unavailable", "error", err)
	}
	page := departmentPage{
		Data:        data,
		Departments: s.dash.Departments(),
		Options:     data.Config.Options(),
		Months:      months,
		Rows:        statementRows(data.IncomeStatement),
		VolumeTrend: trendPoints(data.VolumeTrend, trendWidth, trendHeight),
		FTETrend:    trendPoints(data.FTETrend, trendWidth, trendHeight),
		TrendWidth:  trendWidth,
		TrendHeight: trendHeight,
	}
	s.render(w, r, http.StatusOK, "dept.html", page)
	s.appMetrics.dashboards.Add(1)
	s.sl.LogDashboardServed(r.Context(), data.Config.Key, params.Selection, data.Month)
}

type statsResponse struct {
	Department  string        `json:"department"`
	Name        string        `json:"name"`
	Selection   string        `json:"selection"`
	IDs         []string      `json:"ids"`
	Month       string        `json:"month"`
	LastUpdated time.Time     `json:"last_updated"`
	Stats       kpi.DeptStats `json:"stats"`
}

func (s *Server) handleStatsAPI(w http.ResponseWriter, r *http.Request) {
	s.appMetrics.apiRequests.Add(1)
	data, _, status, err := s.loadDepartment(r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Department:  data.Config.Key,
		Name:        data.Config.Name,
		Selection:   data.Selection,
		IDs:         data.IDs,
		Month:       data.Month,
		LastUpdated: data.LastUpdated,
		Stats:       data.Stats,
	})
}

type statementRowJSON struct {
	Hier      string           `json:"hier"`
	Label     string           `json:"label"`
	Depth     int              `json:"depth"`
	Header    bool             `json:"header"`
	Actual    *decimal.Decimal `json:"actual"`
	Budget    *decimal.Decimal `json:"budget"`
	ActualYTD *decimal.Decimal `json:"actual_ytd"`
	BudgetYTD *decimal.Decimal `json:"budget_ytd"`
}

type statementResponse struct {
	Department string             `json:"department"`
	Selection  string             `json:"selection"`
	Month      string             `json:"month"`
	Rows       []statementRowJSON `json:"rows"`
}

func (s *Server) handleIncomeStatementAPI(w http.ResponseWriter, r *http.Request) {
	s.appMetrics.apiRequests.Add(1)
	data, _, status, err := s.loadDepartment(r)
	if err != nil {
		msg := err.Error()
		if status != http.StatusNotFound {
			msg = "data unavailable"
		}
		writeError(w, status, msg)
		return
	}

	resp := statementResponse{
		Department: data.Config.Key,
		Selection:  data.Selection,
		Month:      data.Month,
		Rows:       make([]statementRowJSON, 0, len(data.IncomeStatement)),
	}
	for _, row := range data.IncomeStatement {
		out := statementRowJSON{Hier: row.Hier, Label: row.Label, Depth: row.Depth(), Header: row.IsHeader()}
		if a := row.Amounts; a != nil {
			out.Actual, out.Budget, out.ActualYTD, out.BudgetYTD = &a.Actual, &a.Budget, &a.ActualYTD, &a.BudgetYTD
		}
		resp.Rows = append(resp.Rows, out)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMonthsAPI(w http.ResponseWriter, r *http.Request) {
	s.appMetrics.apiRequests.Add(1)
	months, err := s.dash.Months(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "data unavailable")
		return
	}
	if months == nil {
		months = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"months": months})
}

type fteResponse struct {
	Requested float64    `json:"requested_fte"`
	Result    fte.Result `json:"result"`
}

// handleFTEAPI runs the staffing calculator for ?fte=N. Calculator
// parameters may be overridden by name.
func (s *Server) handleFTEAPI(w http.ResponseWriter, r *http.Request) {
	s.appMetrics.apiRequests.Add(1)
	requested, params, err := ParseFTEParams(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.dash.FTECalc(requested, params)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, fteResponse{Requested: requested, Result: result})
}
