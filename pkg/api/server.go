// Package api assembles the HTTP surface: routes, middleware chain and the
// server lifecycle.
package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/authward/authward/pkg/config"
	"github.com/authward/authward/pkg/middleware"
	"github.com/authward/authward/pkg/observability"
)

// Server is the main API server.
type Server struct {
	httpServer *http.Server
	logger     *observability.Logger
	cfg        config.ServerConfig
}

// NewServer builds the server with the full middleware chain. accessLog is
// the request logger; metrics may be nil to disable instrumentation.
func NewServer(cfg config.ServerConfig, handlers *Handlers, logger *observability.Logger,
	accessLog *logrus.Logger, metrics *observability.Metrics) *Server {
	router := mux.NewRouter()
	handlers.RegisterRoutes(router)

	// Innermost first: handlers, then metrics, CORS, recovery, access log,
	// request ID. Tracing wraps everything so spans cover the whole chain.
	var handler http.Handler = router
	if metrics != nil {
		handler = observability.HTTPMetricsMiddleware(metrics)(handler)
	}
	handler = middleware.CORS(handler)
	handler = middleware.Recovery(accessLog)(handler)
	handler = middleware.AccessLog(accessLog)(handler)
	handler = middleware.RequestID(handler)
	handler = otelhttp.NewHandler(handler, "authward.http")

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		logger: logger,
		cfg:    cfg,
	}
}

// Handler exposes the assembled chain, for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// ListenAndServe blocks until the server stops. http.ErrServerClosed is
// swallowed; it is the normal shutdown path.
func (s *Server) ListenAndServe() error {
	s.logger.WithField("addr", s.cfg.Addr()).Info("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
