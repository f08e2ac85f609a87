package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/snapshot-service/internal/config"
	"github.com/JakeFAU/snapshot-service/internal/metrics"
	"github.com/JakeFAU/snapshot-service/internal/policy/ratelimit"
	"github.com/JakeFAU/snapshot-service/internal/snapshot"
)

const readyTimeout = 5 * time.Second

// Snapshotter is the rendering surface the handlers need.
type Snapshotter interface {
	ToPDF(ctx context.Context, content, baseURL string, pdf snapshot.PDFOptions, opts snapshot.SnapshotOptions) ([]byte, error)
	URLToPDF(ctx context.Context, rawURL string, pdf snapshot.PDFOptions, opts snapshot.SnapshotOptions) ([]byte, error)
	Bundle(ctx context.Context, req snapshot.BundleRequest) ([]byte, error)
}

// ReadinessCheck reports whether one downstream dependency is usable.
type ReadinessCheck struct {
	Name  string
	Check func(context.Context) error
}

// Server wires HTTP handlers to the snapshot service.
type Server struct {
	router  chi.Router
	svc     Snapshotter
	cfg     config.Config
	logger  *zap.Logger
	limiter *ratelimit.Limiter
	checks  []ReadinessCheck
}

// NewServer constructs a Server with middleware and routes.
func NewServer(svc Snapshotter, cfg config.Config, logger *zap.Logger, checks ...ReadinessCheck) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		svc:    svc,
		cfg:    cfg,
		logger: logger,
		checks: checks,
	}
	if cfg.Throttle.Enabled {
		s.limiter = ratelimit.New(cfg.ThrottleLimits())
	}

	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/", s.index)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/snapshot", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		if s.limiter != nil {
			r.Use(throttleMiddleware(s.limiter, cfg.Throttle))
		}
		r.Use(timeoutMiddleware(timeout))
		r.Post("/toPDF", s.toPDF)
		r.Post("/URL2PDF", s.urlToPDF)
		r.Post("/URLs2ZIP", s.urlsToZIP)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

const indexPage = `<!DOCTYPE html>
<html>
<head><title>snapshot-service</title></head>
<body>
<h1>snapshot-service</h1>
<ul>
<li>POST /snapshot/toPDF &mdash; render HTML content to PDF</li>
<li>POST /snapshot/URL2PDF &mdash; render a URL to PDF</li>
<li>POST /snapshot/URLs2ZIP &mdash; render several pages into a ZIP of PDFs</li>
</ul>
</body>
</html>
`

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(indexPage)); err != nil {
		s.logger.Debug("index write failed", zap.Error(err))
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	failures := map[string]string{}
	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			failures[c.Name] = err.Error()
		}
	}
	if len(failures) > 0 {
		s.logger.Warn("readiness check failed", zap.Any("failures", failures))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": failures})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
