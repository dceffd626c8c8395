package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/config"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/services"
)

const healthCheckTimeout = 3 * time.Second

// StatusReporter reports the state of the project runtime.
type StatusReporter interface {
	Status(ctx context.Context) services.RuntimeStatus
}

// PingResponse describes the running service and its project runtime.
type PingResponse struct {
	Status      string                 `json:"status"` // ok or degraded
	Version     string                 `json:"version"`
	Service     string                 `json:"service"`
	ProjectID   string                 `json:"project_id"`
	GoVersion   string                 `json:"go_version"`
	Hostname    string                 `json:"hostname"`
	Environment string                 `json:"environment"`
	Runtime     services.RuntimeStatus `json:"runtime"`
}

// HealthHandler serves liveness and status checks.
type HealthHandler struct {
	cfg    *config.Config
	status StatusReporter
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(cfg *config.Config, status StatusReporter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, status: status, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

func (h *HealthHandler) runtimeStatus(r *http.Request) services.RuntimeStatus {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()
	return h.status.Status(ctx)
}

// Health handles GET /health. It answers 503 while the project database is
// unreachable so load balancers stop routing dynamic traffic here.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if !h.runtimeStatus(r).DatabaseReachable {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ping handles GET /ping.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		h.logger.Error("Failed to get hostname", zap.Error(err))
		hostname = "unknown"
	}

	rs := h.runtimeStatus(r)
	status := "ok"
	if !rs.DatabaseReachable {
		status = "degraded"
	}

	response := PingResponse{
		Status:      status,
		Version:     h.cfg.Version,
		Service:     "api-builder",
		ProjectID:   h.cfg.Project.ID.String(),
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
		Runtime:     rs,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
