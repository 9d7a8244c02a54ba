// internal/server/server.go
package server

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"agentic-assistant/internal/common/logger"
	"agentic-assistant/internal/models"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Processor runs requests through the orchestration pipeline.
type Processor interface {
	Process(ctx context.Context, req *models.Request) *models.Response
	SessionTotal(ctx context.Context, sessionID string) (float64, error)
}

// HealthCheck probes one backing component.
type HealthCheck func(ctx context.Context) error

type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
	Version         string
}

// Server is the HTTP front end of the assistant.
type Server struct {
	config     *Config
	processor  Processor
	checks     map[string]HealthCheck
	logger     logger.Logger
	handler    http.Handler
	httpServer *http.Server
	ready      atomic.Bool
	startedAt  time.Time
}

func New(config *Config, processor Processor, checks map[string]HealthCheck, log logger.Logger) *Server {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = 20 << 20
	}

	s := &Server{
		config:    config,
		processor: processor,
		checks:    checks,
		logger:    log.WithFields(map[string]interface{}{"component": "http"}),
		startedAt: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/process", s.HandleProcess)
	mux.HandleFunc("GET /api/sessions/{id}/cost", s.HandleSessionCost)
	mux.HandleFunc("GET /health", s.HandleHealth)
	mux.HandleFunc("GET /ready", s.HandleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.handler = requestIDMiddleware(recoverMiddleware(s.logger, loggingMiddleware(s.logger, mux)))
	s.httpServer = &http.Server{
		Addr:         config.Address,
		Handler:      s.handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	s.ready.Store(true)
	return s
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", map[string]interface{}{"address": s.config.Address})
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	return s.httpServer.Shutdown(ctx)
}
