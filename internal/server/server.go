package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that knows the patterns it serves.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the ServeMux patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

const shutdownTimeout = 10 * time.Second

// Server is the tunelink HTTP listener: OAuth routes, health and metrics.
type Server struct {
	server *http.Server
	logger *log.Logger
}

// ServerOpts configures [New].
type ServerOpts struct {
	Addr    string
	OAuth   *OAuthHandler
	Metrics http.Handler // nil disables /metrics
	Logger  *log.Logger
}

// New builds the router and wraps it in an [http.Server].
func New(opts ServerOpts) *Server {
	router := NewBasicRouter()
	router.Use(Recover(opts.Logger), Logging(opts.Logger))

	router.Handle(http.MethodGet, "/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"tunelink"}`))
	}))
	if opts.Metrics != nil {
		router.Handle(http.MethodGet, "/metrics", opts.Metrics)
	}
	if opts.OAuth != nil {
		router.Handler(opts.OAuth)
	}

	return &Server{
		server: &http.Server{
			Addr:              opts.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: opts.Logger,
	}
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting http server", "addr", s.server.Addr)

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down http server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("failed to shut down http server gracefully", "error", err)
		}
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}
