// =============================================================================
// GoBD DATEV Export - HTTP Server
// =============================================================================
//
// This package exposes the converter over HTTP. It is a thin transport: every
// handler decodes a request, calls one converter operation and encodes the
// result. No state is kept between requests.
//
// ROUTES:
//   GET  /health                 liveness and version
//   POST /api/csv/parse          multipart "file" field or raw body
//   POST /api/gobd/prepare       JSON array of records
//   POST /api/datev/export       JSON export request, returns the EXTF file
//   POST /api/validate/invoice   JSON single-record check
//   POST /api/pii/sanitize       JSON text, returns it with personal data replaced
//
// =============================================================================

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ginjaninja78/gobd-datev-export/internal/config"
	"github.com/ginjaninja78/gobd-datev-export/internal/converter"
	"github.com/ginjaninja78/gobd-datev-export/internal/pii"
)

// shutdownTimeout bounds graceful shutdown in Start.
const shutdownTimeout = 10 * time.Second

// Server is the HTTP server for the compliance engine.
type Server struct {
	conv     *converter.Converter
	cfg      config.ServerConfig
	maxBytes int64
	piiMode  pii.Mode
	version  string
	log      zerolog.Logger

	router *chi.Mux
	server *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and server logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// New creates a Server around conv.
//
// PARAMETERS:
//   - conv: the converter every handler delegates to
//   - cfg: the application configuration; Server and MaxInputBytes are used
//   - opts: functional options
func New(conv *converter.Converter, cfg *config.Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.Default()
	}

	s := &Server{
		conv:     conv,
		cfg:      cfg.Server,
		maxBytes: cfg.MaxInputBytes,
		piiMode:  pii.ParseMode(cfg.PIIMode),
		version:  "dev",
		log:      zerolog.Nop(),
		router:   chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.log))
	s.router.Use(middleware.Recoverer)

	// A zero or negative rate disables limiting.
	if s.cfg.RequestsPerSecond > 0 {
		burst := s.cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.router.Use(rateLimit(rate.NewLimiter(rate.Limit(s.cfg.RequestsPerSecond), burst), s.log))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/csv/parse", s.handleParseCSV)
		r.Post("/gobd/prepare", s.handlePrepare)
		r.Post("/datev/export", s.handleExport)
		r.Post("/validate/invoice", s.handleValidateInvoice)
		r.Post("/pii/sanitize", s.handleSanitize)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "no route for "+r.Method+" "+r.URL.Path)
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// Start listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("server starting")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.log.Info().Msg("server shutting down")
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info().Msg("server stopped gracefully")
	return nil
}
