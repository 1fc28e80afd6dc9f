package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/jobyojnahub-a11y/websevixof/internal/api/middleware"
	"github.com/jobyojnahub-a11y/websevixof/internal/queue"
)

type RouteRegistrar func(r chi.Router, s *APIServer)

type ServerOptions struct {
	ListenAddr string
	Queue      *queue.RequestQueueManager
	CORS       middleware.CORSConfig
	// Registry defaults to the process-wide Prometheus registry.
	Registry *prometheus.Registry
}

type APIServer struct {
	listenAddr          string
	requestQueueManager *queue.RequestQueueManager
	cors                middleware.CORSConfig
	routeRegistrars     []RouteRegistrar
	metrics             *metrics
	server              *http.Server
}

func NewAPIServer(opts ServerOptions, registrars ...RouteRegistrar) *APIServer {
	s := &APIServer{
		listenAddr:          opts.ListenAddr,
		requestQueueManager: opts.Queue,
		cors:                opts.CORS,
		routeRegistrars:     registrars,
		metrics:             newMetrics(opts.Registry, opts.ListenAddr, opts.Queue),
	}
	s.server = &http.Server{
		Addr:              opts.ListenAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes builds the full handler tree.
func (s *APIServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.metrics.instrument)
	r.Use(s.preflight)

	for _, reg := range s.routeRegistrars {
		reg(r, s)
	}

	r.Handle("/metrics", s.metrics.metricsHandler())

	return r
}

// Run serves until Shutdown is called. A Shutdown that lands before Run
// makes Run return immediately.
func (s *APIServer) Run() error {
	log.Info().Str("addr", s.listenAddr).Msg("server listening")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
