package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/orchid/internal/config"
	"github.com/kozaktomas/orchid/internal/logging"
	"github.com/kozaktomas/orchid/internal/web/handlers"
	"github.com/kozaktomas/orchid/internal/web/middleware"
	"go.uber.org/zap"
)

const jobRetention = time.Hour

// Server represents the web server
type Server struct {
	config         *config.Config
	router         *chi.Mux
	httpServer     *http.Server
	jobManager     *handlers.JobManager
	sessionManager *middleware.SessionManager
	identifier     handlers.Identifier
	logger         *zap.Logger
	stop           chan struct{}
}

// NewServer creates a new web server. identifier may be nil when no
// trained network is configured; identification endpoints then return 503.
func NewServer(cfg *config.Config, sessionRepo middleware.SessionRepository, identifier handlers.Identifier, logger *zap.Logger) *Server {
	logger = logging.OrNop(logger)
	r := chi.NewRouter()

	s := &Server{
		config:         cfg,
		router:         r,
		jobManager:     handlers.NewJobManager(),
		sessionManager: middleware.NewSessionManager(cfg.Web.SessionSecret, sessionRepo, logger),
		identifier:     identifier,
		logger:         logger,
		stop:           make(chan struct{}),
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:      r,
		ReadTimeout:  2 * time.Minute, // uploads
		WriteTimeout: 0,               // SSE streams stay open for the whole job
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	go s.pruneJobs()
	s.logger.Info("starting web server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) pruneJobs() {
	ticker := time.NewTicker(jobRetention / 4)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if n := s.jobManager.Prune(time.Now().Add(-jobRetention)); n > 0 {
				s.logger.Debug("pruned finished jobs", zap.Int("count", n))
			}
		}
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down web server")
	close(s.stop)
	s.sessionManager.Stop()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
