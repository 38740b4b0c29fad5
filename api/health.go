package api

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prepbot/prepbot/internal/log"
)

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewHealthHandler creates a health handler. pool may be nil when the
// knowledge base is not connected.
func NewHealthHandler(pool *pgxpool.Pool, logger log.Logger) *HealthHandler {
	return &HealthHandler{pool: pool, logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.liveness)
	mux.HandleFunc("GET /ready", h.readiness)
}

func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness reports degraded when the knowledge base is missing or not
// answering. The assistant still serves chat in that state, so this is
// 200 with a body describing the mode rather than a 503.
func (h *HealthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	if h.pool == nil {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready (no knowledge base)"))
		return
	}
	if err := h.pool.Ping(r.Context()); err != nil {
		h.logger.Error("readiness check failed", "error", err)
		http.Error(w, "knowledge base not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
