package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"findash/internal/dept"
	"findash/internal/fte"
	"findash/internal/log"
	"findash/internal/middleware/ratelimit"
	"findash/internal/middleware/security"
	"findash/internal/middleware/trace"
	appweb "findash/web"
)

// Dashboard is what the handlers need from the dashboard service.
type Dashboard interface {
	Departments() []dept.Config
	Department(ctx context.Context, key, selection, month string) (dept.Data, error)
	Months(ctx context.Context) ([]string, error)
	FTECalc(requested float64, params fte.Params) (fte.Result, error)
	Refresh(ctx context.Context) error
	Ready(ctx context.Context) error
}

// Sizer is a cache whose entry count is reported on /metrics.
type Sizer interface {
	Size() int
}

// Options configure a Server beyond its dashboard.
type Options struct {
	Logger *log.Logger
	// AdminToken enables POST /admin/refresh when set.
	AdminToken string
	// RateLimit applies to POST requests.
	RateLimit ratelimit.Config
	// BlockSuspicious answers flagged requests with 404.
	BlockSuspicious bool
	// Caches are reported by name on /metrics.
	Caches map[string]Sizer
	// RequestTimeout bounds dashboard computation per request.
	RequestTimeout time.Duration
}

type appMetrics struct {
	uptime         time.Time
	dashboards     atomic.Int64
	apiRequests    atomic.Int64
	refreshes      atomic.Int64
	dashboardFails atomic.Int64
}

// Server serves the department dashboards and their JSON API.
type Server struct {
	http.Server
	templates *template.Template
	dash      Dashboard
	logger    *log.Logger
	sl        *log.StructuredLogger

	securityDetector *security.Detector
	rateLimiter      *ratelimit.Limiter
	traceMiddleware  *trace.Middleware
	headers          *security.HeadersMiddleware

	adminToken      string
	blockSuspicious bool
	caches          map[string]Sizer
	requestTimeout  time.Duration
	appMetrics      *appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, dash Dashboard, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	detector := security.NewDetector()
	s := &Server{
		templates:        loadTemplates(logger),
		dash:             dash,
		logger:           logger,
		sl:               log.NewStructuredLogger(logger),
		securityDetector: detector,
		rateLimiter:      ratelimit.NewLimiter(opts.RateLimit),
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP, logger),
		headers:          security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		adminToken:       opts.AdminToken,
		blockSuspicious:  opts.BlockSuspicious,
		caches:           opts.Caches,
		requestTimeout:   timeout,
		appMetrics:       &appMetrics{uptime: time.Now()},
	}

	mux := http.NewServeMux()
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /dept/{key}", s.handleDepartment)

	mux.Handle("GET /api/dept/{key}/stats", security.NoStoreMiddleware(http.HandlerFunc(s.handleStatsAPI)))
	mux.Handle("GET /api/dept/{key}/income-stmt", security.NoStoreMiddleware(http.HandlerFunc(s.handleIncomeStatementAPI)))
	mux.Handle("GET /api/months", security.NoStoreMiddleware(http.HandlerFunc(s.handleMonthsAPI)))
	mux.Handle("GET /api/fte", security.NoStoreMiddleware(http.HandlerFunc(s.handleFTEAPI)))

	mux.HandleFunc("POST /admin/refresh", s.handleRefresh)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// middleware wraps h outermost first: logger, tracing, detection,
// headers, then rate limiting for POST.
func (s *Server) middleware(next http.Handler) http.Handler {
	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimit)(next)
	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			limited.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
	h = s.headers.Middleware(h)
	h = s.securityDetector.Middleware(s.blockSuspicious)(h)
	h = s.traceMiddleware.Middleware(h)
	return log.Middleware(s.logger)(h)
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
}

func loadTemplates(logger *log.Logger) *template.Template {
	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.WithComponent(log.ComponentTemplate).Error("Failed parsing templates", "error", err)
		return nil
	}
	return t
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
