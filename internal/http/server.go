package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pulse/internal/core"
	"pulse/internal/dataset"
	"pulse/internal/ingest"
	plog "pulse/internal/log"
	"pulse/internal/middleware/ratelimit"
	"pulse/internal/middleware/security"
	"pulse/internal/middleware/trace"
	"pulse/internal/services"
	appweb "pulse/web"
)

// Dashboard is what the handlers need from services.DashboardService.
type Dashboard interface {
	Dashboard(ctx context.Context, sel core.FilterSelection) services.Result
	Records(sel core.FilterSelection) []core.TransactionRecord
	Dimensions() core.Dimensions
	LoadReport() ingest.Report
	Snapshot() *dataset.Snapshot
	Reload(ctx context.Context) (*dataset.Snapshot, error)
}

type Server struct {
	http.Server
	templates *template.Template
	dashboard Dashboard
	logger    *plog.Logger

	detector    *security.Detector
	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware
	started     time.Time

	shutdownOnce sync.Once
}

// Options tunes optional server behaviour.
type Options struct {
	RateLimit ratelimit.Config
	// Templates overrides the embedded templates.
	Templates fs.FS
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, dashboard Dashboard, logger *plog.Logger, opts Options) *Server {
	if opts.RateLimit.RequestsPerMinute == 0 {
		opts.RateLimit = ratelimit.DefaultConfig()
	}
	if opts.Templates == nil {
		opts.Templates = appweb.TemplatesFS
	}
	httpLogger := logger.WithComponent(plog.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:           addr,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 16,
		},
		dashboard:   dashboard,
		logger:      httpLogger,
		detector:    security.NewDetector(logger.Base()),
		rateLimiter: ratelimit.NewLimiter(opts.RateLimit),
		started:     time.Now(),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	t, err := template.New("").Funcs(templateFuncs).ParseFS(opts.Templates, "templates/*.html")
	if err != nil {
		httpLogger.Error("Failed parsing templates", plog.FieldError, err)
	} else {
		s.templates = t
	}

	s.Handler = s.routes(opts.RateLimit.Methods)
	return s
}

func (s *Server) routes(limitedMethods []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(s.detector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.rateLimiter.Middleware(s.detector.ExtractClientIP, limitedMethods))
	r.Use(middleware.Compress(5))

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		r.With(security.StaticAssetMiddleware(3600)).
			Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(sub))))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", plog.FieldError, err)
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Get("/", s.handleIndex)
	r.Get("/ui/summary", s.handleSummary)

	r.Route("/api", func(r chi.Router) {
		r.Get("/dimensions", s.handleDimensions)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/records", s.handleRecords)
		r.Get("/load-report", s.handleLoadReport)
		r.Post("/reload", s.handleReload)
	})

	return r
}

// Shutdown stops background goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
