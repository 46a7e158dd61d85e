package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"pullhook/internal/config"
	"pullhook/internal/deployment"
	"pullhook/internal/ghclient"
	"pullhook/internal/history"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// HTTP server timeouts. No write timeout: the webhook responds only after
	// git has finished.
	HTTPReadHeaderTimeout = 10 * time.Second
	HTTPReadTimeout       = 30 * time.Second
	HTTPIdleTimeout       = 60 * time.Second

	// WebhookRateLimit is the number of webhook requests per minute per client IP.
	WebhookRateLimit = 30
)

// Server receives webhook deliveries for a single checkout.
type Server struct {
	Config   *config.Config
	Deployer *deployment.Deployer
	History  *history.History // nil disables /status and delivery recording
	Reporter *ghclient.Client // nil disables commit status feedback
	Metrics  *Metrics
	Logger   *slog.Logger

	// RateLimit is the per-IP webhook limit per minute; zero disables it.
	RateLimit int

	Now func() time.Time

	mu             sync.Mutex // guards the fields below
	httpServer     *http.Server
	shuttingDown   bool
	feedbackClosed bool
	feedbackWg     sync.WaitGroup // in-flight commit status posts
}

// NewServer creates a server with fresh metrics and the default rate limit.
func NewServer(cfg *config.Config, deployer *deployment.Deployer, hist *history.History, reporter *ghclient.Client, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		Config:    cfg,
		Deployer:  deployer,
		History:   hist,
		Reporter:  reporter,
		Metrics:   NewMetrics(),
		Logger:    logger,
		RateLimit: WebhookRateLimit,
		Now:       time.Now,
	}
}

// Router creates and configures the HTTP router
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.Logger))

	r.Get("/health", s.HandleHealth)
	r.Get("/status", s.HandleStatus)
	r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())

	if s.RateLimit > 0 {
		r.With(NewRateLimitMiddleware(s.RateLimit, s.Logger)).Post("/webhook", s.HandleWebhook)
	} else {
		r.Post("/webhook", s.HandleWebhook)
	}

	return r
}

// Start listens on the configured address and blocks until the server stops.
// It returns nil after a graceful Shutdown.
func (s *Server) Start() error {
	addr := s.Config.Addr()
	s.Logger.Info("Starting server",
		"addr", addr,
		"repo", s.Config.RepoPath,
		"branch", s.Config.Branch,
		"touch_paths", s.Config.TouchPaths)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: HTTPReadHeaderTimeout,
		ReadTimeout:       HTTPReadTimeout,
		IdleTimeout:       HTTPIdleTimeout,
	}

	s.mu.Lock()
	if s.shuttingDown {
		s.mu.Unlock()
		return nil
	}
	s.httpServer = httpServer
	s.mu.Unlock()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// trackFeedback registers a commit status post. It returns false once Shutdown
// has stopped waiting for new posts.
func (s *Server) trackFeedback() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.feedbackClosed {
		return false
	}
	s.feedbackWg.Add(1)
	return true
}

// WaitForFeedback waits for in-flight commit status posts.
func (s *Server) WaitForFeedback() {
	s.feedbackWg.Wait()
}

// Shutdown stops accepting requests, lets running deliveries finish and
// closes the history database. A Start that has not begun listening yet
// returns immediately.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shuttingDown = true
	httpServer := s.httpServer
	s.mu.Unlock()

	var err error
	if httpServer != nil {
		err = httpServer.Shutdown(ctx)
	}

	s.mu.Lock()
	s.feedbackClosed = true
	s.mu.Unlock()
	s.feedbackWg.Wait()

	if s.History != nil {
		err = errors.Join(err, s.History.Close())
	}
	return err
}
