package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/auth"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/models"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// EndpointListResponse for GET /api/endpoints
type EndpointListResponse struct {
	Endpoints []*models.EndpointDefinition `json:"endpoints"`
}

// EndpointRequest for POST /api/endpoints and PUT /api/endpoints/{id}.
// IsActive defaults to true when omitted.
type EndpointRequest struct {
	Method       string                 `json:"method"`
	Path         string                 `json:"path"`
	SQL          string                 `json:"sql"`
	Description  *string                `json:"description,omitempty"`
	IsActive     *bool                  `json:"is_active,omitempty"`
	IsProtected  bool                   `json:"is_protected"`
	AllowedRoles []string               `json:"allowed_roles,omitempty"`
	Params       []models.ParameterSpec `json:"params,omitempty"`
}

func (req EndpointRequest) definition() *models.EndpointDefinition {
	return &models.EndpointDefinition{
		Method:       req.Method,
		Path:         req.Path,
		SQL:          req.SQL,
		Description:  req.Description,
		IsActive:     req.IsActive == nil || *req.IsActive,
		IsProtected:  req.IsProtected,
		AllowedRoles: req.AllowedRoles,
		Params:       req.Params,
	}
}

// ============================================================================
// Handler
// ============================================================================

// EndpointsHandler serves the endpoint authoring API.
type EndpointsHandler struct {
	endpointService services.EndpointService
	maxBodyBytes    int64
	logger          *zap.Logger
}

// NewEndpointsHandler creates a new endpoints handler.
func NewEndpointsHandler(endpointService services.EndpointService, maxBodyBytes int64, logger *zap.Logger) *EndpointsHandler {
	return &EndpointsHandler{
		endpointService: endpointService,
		maxBodyBytes:    maxBodyBytes,
		logger:          logger,
	}
}

// RegisterRoutes registers the endpoint authoring routes on the given mux.
func (h *EndpointsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	base := "/api/endpoints"

	mux.HandleFunc("GET "+base, authMiddleware.RequireOwner(h.List))
	mux.HandleFunc("POST "+base, authMiddleware.RequireOwner(h.Create))
	mux.HandleFunc("GET "+base+"/export", authMiddleware.RequireOwner(h.Export))
	mux.HandleFunc("GET "+base+"/{id}", authMiddleware.RequireOwner(h.Get))
	mux.HandleFunc("PUT "+base+"/{id}", authMiddleware.RequireOwner(h.Update))
	mux.HandleFunc("DELETE "+base+"/{id}", authMiddleware.RequireOwner(h.Delete))
}

// List handles GET /api/endpoints
func (h *EndpointsHandler) List(w http.ResponseWriter, r *http.Request) {
	response := EndpointListResponse{Endpoints: h.endpointService.List(r.Context())}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/endpoints/{id}
func (h *EndpointsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEndpointID(w, r, h.logger)
	if !ok {
		return
	}

	def, err := h.endpointService.Get(r.Context(), id)
	if err != nil {
		h.logger.Debug("Endpoint lookup failed", zap.String("endpoint_id", id.String()), zap.Error(err))
		WriteError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, def); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/endpoints
func (h *EndpointsHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var req EndpointRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	def, err := h.endpointService.Create(r.Context(), req.definition())
	if err != nil {
		h.logger.Info("Endpoint rejected",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Error(err))
		WriteError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, def); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PUT /api/endpoints/{id}
func (h *EndpointsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEndpointID(w, r, h.logger)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var req EndpointRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	def, err := h.endpointService.Update(r.Context(), id, req.definition())
	if err != nil {
		h.logger.Info("Endpoint update rejected",
			zap.String("endpoint_id", id.String()),
			zap.Error(err))
		WriteError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, def); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/endpoints/{id}
func (h *EndpointsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEndpointID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.endpointService.Delete(r.Context(), id); err != nil {
		h.logger.Info("Endpoint delete failed",
			zap.String("endpoint_id", id.String()),
			zap.Error(err))
		WriteError(w, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Export handles GET /api/endpoints/export
func (h *EndpointsHandler) Export(w http.ResponseWriter, r *http.Request) {
	out, err := h.endpointService.Export(r.Context())
	if err != nil {
		h.logger.Error("Failed to export endpoints", zap.Error(err))
		WriteError(w, err, h.logger)
		return
	}

	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Content-Disposition", `attachment; filename="endpoints.yaml"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
