package http

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"findash/internal/dept"
	"findash/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).Round(time.Second).String(),
	})
}

// handleReady checks templates and that a snapshot can be loaded.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if err := s.dash.Ready(ctx); err != nil {
		checks["snapshot"] = fmt.Sprintf("failed: %v", err)
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["snapshot"] = "ok"
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	metric := func(name, typ, help string, v any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, typ, name, v)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("dashboards_rendered_total", "counter", "Department dashboards rendered", s.appMetrics.dashboards.Load())
	metric("dashboard_errors_total", "counter", "Department dashboards that failed to load", s.appMetrics.dashboardFails.Load())
	metric("api_requests_total", "counter", "JSON API requests served", s.appMetrics.apiRequests.Load())
	metric("snapshot_refreshes_total", "counter", "Manual snapshot refreshes", s.appMetrics.refreshes.Load())
	metric("rate_limit_hits_total", "counter", "Total rate limit hits", rateLimitMetrics.TotalHits)
	metric("suspicious_requests_total", "counter", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)

	if len(s.caches) > 0 {
		names := make([]string, 0, len(s.caches))
		for name := range s.caches {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(w, "# HELP cache_entries Current cache entries\n# TYPE cache_entries gauge\n")
		for _, name := range names {
			fmt.Fprintf(w, "cache_entries{type=%q} %d\n", name, s.caches[name].Size())
		}
		fmt.Fprintln(w)
	}
	metric("uptime_seconds", "gauge", "Application uptime in seconds", int64(time.Since(s.appMetrics.uptime).Seconds()))
}

// handleIndex lists the departments. ?dept=key redirects to that
// department's dashboard, keeping month and sel.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if key := sanitizeInput(r.URL.Query().Get("dept")); key != "" {
		target := "/dept/" + url.PathEscape(key)
		if q := ParseDashboardParams(r.URL.Query()).Encode(); q != "" {
			target += "?" + q
		}
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	data := struct {
		Departments []dept.Config
	}{
		Departments: s.dash.Departments(),
	}
	s.render(w, r, http.StatusOK, "index.html", data)
}

// handleRefresh drops cached snapshot data. It requires the admin bearer
// token and is disabled when none is configured.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.adminToken == "" {
		http.NotFound(w, r)
		return
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
		s.logger.WarnContext(r.Context(), "Refresh rejected",
			log.FieldClientIP, s.securityDetector.ExtractClientIP(r))
		w.Header().Set("WWW-Authenticate", `Bearer realm="findash"`)
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()
	if err := s.dash.Refresh(ctx); err != nil {
		s.sl.LogError(ctx, "Snapshot refresh failed", err, log.ComponentSnapshot, log.OpRefresh, nil)
		writeError(w, http.StatusBadGateway, "refresh failed")
		return
	}
	s.appMetrics.refreshes.Add(1)
	s.logger.InfoContext(ctx, "Snapshot refreshed", log.FieldOperation, log.OpRefresh)
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

// render executes a page template, buffering so a failed render can still
// send a clean error status.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			log.FieldOperation, log.OpRender)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	var buf strings.Builder
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.sl.LogError(r.Context(), "Template execution failed", err, log.ComponentTemplate, log.OpRender,
			log.NewFields().WithRequestID(requestID(r)))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf.String()))
}

// renderError shows the error page with status.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.render(w, r, status, "error.html", struct {
		Status  int
		Title   string
		Message string
	}{status, http.StatusText(status), msg})
}
