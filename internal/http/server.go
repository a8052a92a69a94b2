package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"pmpm/internal/core"
	applog "pmpm/internal/log"
	"pmpm/internal/middleware/ratelimit"
	"pmpm/internal/middleware/security"
	"pmpm/internal/middleware/trace"
	"pmpm/internal/panel"
	"pmpm/internal/services"
)

const readinessTimeout = 5 * time.Second

// Dashboard is the query surface the API serves.
type Dashboard interface {
	Periods(ctx context.Context) (services.PeriodDomain, error)
	Summary(ctx context.Context, r core.TimeRange) (*services.SummaryView, error)
	Panels() []panel.Definition
	Panel(ctx context.Context, name string, r core.TimeRange, filters map[string]string) (*services.PanelView, error)
	Trend(ctx context.Context, name string, r core.TimeRange, filters map[string]string) (*services.TrendView, error)
	Breakdown(ctx context.Context, r core.TimeRange) (*services.BreakdownView, error)
	Invalidate(name string)
	Purge()
}

// Options configure a Server.
type Options struct {
	Addr           string
	Logger         *applog.Logger
	Metrics        *Metrics
	RateLimit      ratelimit.Config
	TrustedProxies []string
}

type Server struct {
	http.Server
	dashboard Dashboard
	parser    *RequestParser
	metrics   *Metrics
	logger    *applog.Logger
	limiter   *ratelimit.Limiter
	clientIP  *security.ClientIPExtractor
	tracer    *trace.Middleware
	started   time.Time
}

// NewServer builds the API router over a dashboard.
func NewServer(dashboard Dashboard, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}

	clientIP := security.NewClientIPExtractor()
	for _, cidr := range opts.TrustedProxies {
		if err := clientIP.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}

	s := &Server{
		dashboard: dashboard,
		parser:    NewRequestParser(),
		metrics:   opts.Metrics,
		logger:    opts.Logger.WithComponent(applog.ComponentHTTP),
		limiter:   ratelimit.NewLimiter(opts.RateLimit),
		clientIP:  clientIP,
		started:   time.Now(),
	}
	s.tracer = trace.NewMiddleware(opts.Logger, clientIP.ExtractClientIP)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		render.Render(w, r, ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		render.Render(w, r, ErrMethodNotAllowed)
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/periods", s.handlePeriods)
		r.Get("/summary", s.handleSummary)
		r.Get("/breakdown", s.handleBreakdown)
		r.Get("/panels", s.handlePanels)
		r.Get("/panels/{panel}", s.handlePanel)
		r.Get("/panels/{panel}/trend", s.handleTrend)
		r.With(s.limiter.Middleware(s.clientIP.ExtractClientIP)).
			Post("/cache/invalidate", s.handleInvalidate)
	})
	return r
}

// Start serves until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.Addr)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}

// renderError reports err with the status it maps to. Server-side failures
// are logged with their cause, client errors at warn.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := toAPIError(err)
	logger := applog.FromContext(r.Context())
	if apiErr.StatusCode >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed",
			applog.FieldError, err.Error(),
			applog.FieldErrorCode, apiErr.ErrorCode,
			applog.FieldPath, r.URL.Path)
	} else {
		logger.WarnContext(r.Context(), "Request rejected",
			applog.FieldError, err.Error(),
			applog.FieldErrorCode, apiErr.ErrorCode,
			applog.FieldPath, r.URL.Path)
	}
	render.Render(w, r, apiErr)
}
