package http

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server represents the HTTP server
type Server struct {
	handler *Handler
	server  *http.Server
	port    string
	log     zerolog.Logger
}

// NewServer creates a new HTTP server around the given handler
func NewServer(handler *Handler, metrics *Metrics, registry *prometheus.Registry,
	port string, verbose bool, log zerolog.Logger) *Server {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("/api/links", handler.CreateLink)
	mux.HandleFunc("/api/links/", handler.LinksDetailHandler)
	mux.HandleFunc("/api/limits", handler.Limits)

	// Operational endpoints
	mux.HandleFunc("/healthz", handler.Healthz)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Redirect endpoint (catch-all)
	mux.HandleFunc("/", handler.Redirect)

	// Wrap with middlewares, logging outermost
	var finalHandler http.Handler = mux
	finalHandler = MetricsMiddleware(metrics)(finalHandler)
	finalHandler = LoggingMiddleware(log, verbose)(finalHandler)

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      finalHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		handler: handler,
		server:  server,
		port:    port,
		log:     log,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("port", s.port).Msg("server starting")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("server shutting down")
	return s.server.Shutdown(ctx)
}

// Port returns the server port
func (s *Server) Port() string {
	return s.port
}

// Handler returns the server handler (useful for testing)
func (s *Server) Handler() *Handler {
	return s.handler
}
