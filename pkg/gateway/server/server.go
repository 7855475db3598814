// Package server assembles the gateway's HTTP surface.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codeshark2/freesoft/pkg/gateway/config"
	"github.com/codeshark2/freesoft/pkg/gateway/handlers"
	"github.com/codeshark2/freesoft/pkg/gateway/live/session"
)

// Server is the gateway HTTP server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New builds the routing table and the underlying http.Server.
func New(cfg config.Config, logger *slog.Logger) *Server {
	sessionCfg := session.Config{
		PingInterval:       cfg.PingInterval,
		WriteTimeout:       cfg.WriteTimeout,
		ReadTimeout:        cfg.ReadTimeout,
		MaxSessionDuration: cfg.MaxSessionDuration,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/live", handlers.Live(sessionCfg, logger))
	mux.HandleFunc("/healthz", handlers.Health())
	mux.Handle("/metrics", promhttp.Handler())

	return &Server{
		httpServer: &http.Server{
			Addr:    cfg.Addr,
			Handler: mux,
		},
		logger: logger,
	}
}

// ListenAndServe blocks serving requests until Shutdown or a listener
// error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("gateway listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests. Long-lived websocket sessions are
// closed by their own read loops when clients disconnect.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
