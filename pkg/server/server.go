// Package server provides the HTTP API for the decision core: decision
// evaluation, rule management, load observations, and receipt lookups.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"conductor-hq/tollbooth/pkg/config"
	"conductor-hq/tollbooth/pkg/load"
	"conductor-hq/tollbooth/pkg/policy"
	"conductor-hq/tollbooth/pkg/receipt"
	"conductor-hq/tollbooth/pkg/telemetry/metrics"
)

// Server is the HTTP API server.
type Server struct {
	config    config.ServerConfig
	engine    *policy.Engine
	estimator *load.Estimator
	ledger    *receipt.Ledger
	collector *metrics.Collector
	logger    *slog.Logger

	httpServer   *http.Server
	shutdownOnce sync.Once
}

// NewServer creates the API server. The metrics collector may be nil, in
// which case /metrics is not served and no metrics are recorded.
func NewServer(cfg config.ServerConfig, engine *policy.Engine, estimator *load.Estimator, ledger *receipt.Ledger, collector *metrics.Collector, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("policy engine cannot be nil")
	}
	if estimator == nil {
		return nil, fmt.Errorf("load estimator cannot be nil")
	}
	if ledger == nil {
		return nil, fmt.Errorf("receipt ledger cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		config:    cfg,
		engine:    engine,
		estimator: estimator,
		ledger:    ledger,
		collector: collector,
		logger:    logger.With("component", "server"),
	}, nil
}

// Start runs the server and blocks until the context is canceled or the
// listener fails. Cancellation triggers a graceful shutdown bounded by
// the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		return s.Shutdown()
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully stops the server, waiting for in-flight requests up
// to the configured timeout.
func (s *Server) Shutdown() error {
	var err error
	s.shutdownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		err = s.httpServer.Shutdown(ctx)
	})
	return err
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/decisions", s.handleDecide)

	mux.HandleFunc("GET /v1/rules", s.handleListRules)
	mux.HandleFunc("GET /v1/rules/{key}", s.handleGetRule)
	mux.HandleFunc("PUT /v1/rules/{key}", s.handleSetRule)

	mux.HandleFunc("POST /v1/observations", s.handleObserve)
	mux.HandleFunc("GET /v1/features", s.handleListFeatures)
	mux.HandleFunc("GET /v1/features/{unit...}", s.handleGetFeature)

	mux.HandleFunc("GET /v1/receipts", s.handleQueryReceipts)
	mux.HandleFunc("GET /v1/receipts/{id}", s.handleGetReceipt)
	mux.HandleFunc("GET /v1/receipts/{id}/verify", s.handleVerifyReceipt)

	mux.HandleFunc("GET /healthz", s.handleHealth)

	if s.collector != nil {
		mux.Handle("GET /metrics", s.collector.Handler())
	}

	return mux
}
