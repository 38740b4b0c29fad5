// Package api exposes the assistant over HTTP.
//
// Endpoints:
//
//	POST /api/chat            - ask a question, get rendered message chunks
//	POST /api/chat/style      - set a user's answer style
//	POST /api/chat/clear      - forget a conversation's history
//	POST /api/documents       - upload a supplementary document
//	GET  /api/documents/count - indexed document counts by source type
//	GET  /health              - liveness probe
//	GET  /ready               - readiness probe (pings the knowledge base)
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prepbot/prepbot/internal/log"
	"github.com/prepbot/prepbot/internal/memory"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout guards against slow-header clients.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is generous because one answer may involve several
	// retried model calls.
	WriteTimeout = 120 * time.Second

	// IdleTimeout closes stale keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// Server is the assistant's HTTP server.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger

	health    *HealthHandler
	chat      *ChatHandler
	documents *DocumentsHandler
}

// ServerConfig carries the server's collaborators. Pool and Knowledge
// may be nil when the knowledge base is not connected; readiness then
// reports degraded and the document endpoints answer 503.
type ServerConfig struct {
	Engine       Engine
	Memory       *memory.Store
	MessageLimit int
	Pool         *pgxpool.Pool
	Knowledge    Knowledge
	Logger       log.Logger
}

// NewServer creates an HTTP server with all routes registered.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	mux := http.NewServeMux()
	s := &Server{
		mux:       mux,
		logger:    logger,
		health:    NewHealthHandler(cfg.Pool, logger),
		chat:      NewChatHandler(cfg.Engine, cfg.Memory, cfg.MessageLimit, logger),
		documents: NewDocumentsHandler(cfg.Knowledge, logger),
	}

	s.health.RegisterRoutes(mux)
	s.chat.RegisterRoutes(mux)
	s.documents.RegisterRoutes(mux)
	return s
}

// Handler returns the server's handler with middleware applied.
// Order: recovery, request id, logging, then the mux.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		requestIDMiddleware,
		loggingMiddleware(s.logger),
	)
}

// Run starts the server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
