// Package server exposes the journal over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"trade-journal/internal/config"
	"trade-journal/internal/journal"
	"trade-journal/internal/models"
	"trade-journal/internal/resilience"
	"trade-journal/internal/screenshot"
)

// HealthMessage is reported by GET /api/health.
const HealthMessage = "Trading Journal API is running!"

// Authenticator resolves Basic auth credentials to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

// Server routes HTTP requests to the journal service.
type Server struct {
	cfg     config.ServerConfig
	journal *journal.Service
	shots   *screenshot.Service
	auth    *credentialCache
	metrics *Metrics
	health  *resilience.HealthChecker
	limiter *failureLimiter
	trusted []*net.IPNet
	logger  zerolog.Logger
	router  chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithAuthenticator replaces the journal service as the credential check.
func WithAuthenticator(a Authenticator) Option {
	return func(s *Server) { s.auth = newCredentialCache(a, credentialTTL) }
}

// WithMetrics sets the metrics the server records into.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealthChecker replaces the checks behind GET /api/health/ready.
func WithHealthChecker(h *resilience.HealthChecker) Option {
	return func(s *Server) { s.health = h }
}

// New creates a server and builds its routes.
func New(cfg config.ServerConfig, svc *journal.Service, shots *screenshot.Service, logger zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		journal: svc,
		shots:   shots,
		logger:  logger.With().Str("component", "http").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.auth == nil {
		s.auth = newCredentialCache(svc, credentialTTL)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(prometheus.NewRegistry())
	}
	if cfg.AuthFailuresPerMinute > 0 {
		s.limiter = newFailureLimiter(cfg.AuthFailuresPerMinute)
	}
	if nets, err := cfg.TrustedNets(); err != nil {
		s.logger.Warn().Err(err).Msg("Ignoring trusted proxies")
	} else {
		s.trusted = nets
	}
	if s.health == nil {
		s.health = defaultHealthChecker(svc, shots)
	}
	s.router = s.routes()
	return s
}

// defaultHealthChecker checks the store when it can be pinged and the
// screenshot capture breaker.
func defaultHealthChecker(svc *journal.Service, shots *screenshot.Service) *resilience.HealthChecker {
	h := resilience.NewHealthChecker(5 * time.Second)
	if p, ok := svc.Store().(interface{ Ping(context.Context) error }); ok {
		h.Register("database", resilience.PingCheck(p.Ping))
	}
	if shots != nil {
		h.Register("screenshot_capture", resilience.BreakerCheck(shots.Breaker()))
	}
	return h
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(realIP(s.trusted))
	r.Use(s.requestLogger()...)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)
	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(cors(s.cfg.CORSOrigins))
	}

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.metrics.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/health", s.alive)
		r.Get("/health/ready", s.ready)
		r.Post("/auth/register", s.register)

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)

			r.Get("/auth/user", s.currentUser)
			r.Post("/add-sample-data", s.addSampleData)

			r.Route("/trades", func(r chi.Router) {
				r.Get("/", s.listTrades)
				r.Post("/", s.createTrade)
				r.Get("/export/csv", s.exportCSV)
				r.Get("/export/xlsx/{year:[0-9]+}/{month:[0-9]+}", s.exportWorkbook)
				r.Get("/{id:[0-9]+}", s.getTrade)
				r.Put("/{id:[0-9]+}", s.closeTrade)
				r.Delete("/{id:[0-9]+}", s.deleteTrade)
			})

			r.Route("/tags", func(r chi.Router) {
				r.Get("/", s.listTags)
				r.Post("/", s.createTag)
				r.Get("/trade/{id:[0-9]+}", s.tradeTags)
				r.Post("/trade/{id:[0-9]+}/add", s.attachTag)
				r.Post("/trade/{id:[0-9]+}/remove", s.detachTag)
			})

			r.Route("/statistics", func(r chi.Router) {
				r.Get("/overall", s.overall)
				r.Get("/daily/{days:[0-9]+}", s.daily)
				r.Get("/session", s.bySession)
				r.Get("/setup", s.bySetup)
				r.Get("/mistakes", s.mistakes)
				r.Get("/equity", s.equity)
				r.Get("/equity/chart", s.equityChart)
				r.Get("/monthly-report/{year:[0-9]+}/{month:[0-9]+}", s.monthly)
			})

			r.Route("/screenshots", func(r chi.Router) {
				r.Post("/capture-url", s.captureURL)
				r.Post("/upload", s.upload)
				r.Get("/view/{filename}", s.viewScreenshot)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusNotFound, errorBody{Error: "Not found"})
	})
	return r
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info().Msg("HTTP server shutting down")
	return srv.Shutdown(shutdownCtx)
}
