package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/auth"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/executor"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/models"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// FunctionListResponse for GET /api/functions
type FunctionListResponse struct {
	Functions []*models.FunctionDefinition `json:"functions"`
}

// FunctionDefinitionResponse for GET /api/functions/{schema}/{name}
type FunctionDefinitionResponse struct {
	Definition *models.FunctionDefinition `json:"definition"`
}

// CreateFunctionRequest for POST /api/functions
type CreateFunctionRequest struct {
	SQL          string   `json:"sql"`
	IsProtected  *bool    `json:"is_protected,omitempty"`
	AllowedRoles []string `json:"allowed_roles,omitempty"`
}

// CreateFunctionResponse for POST /api/functions
type CreateFunctionResponse struct {
	Status      string                     `json:"status"`
	Result      *executor.Result           `json:"result"`
	Function    *models.FunctionDefinition `json:"function"`
	WarnReplace bool                       `json:"warnReplace"`
}

// UpdateFunctionAccessRequest for PUT /api/functions/{schema}/{name}/access
type UpdateFunctionAccessRequest struct {
	IsProtected  bool     `json:"is_protected"`
	AllowedRoles []string `json:"allowed_roles"`
}

// ============================================================================
// Handler
// ============================================================================

// FunctionsHandler serves function authoring and invocation.
type FunctionsHandler struct {
	functionService services.FunctionService
	dispatcher      *services.Dispatcher
	maxBodyBytes    int64
	logger          *zap.Logger
}

// NewFunctionsHandler creates a new functions handler.
func NewFunctionsHandler(
	functionService services.FunctionService,
	dispatcher *services.Dispatcher,
	maxBodyBytes int64,
	logger *zap.Logger,
) *FunctionsHandler {
	return &FunctionsHandler{
		functionService: functionService,
		dispatcher:      dispatcher,
		maxBodyBytes:    maxBodyBytes,
		logger:          logger,
	}
}

// RegisterRoutes registers the function routes on the given mux. Running a
// function is governed by the function's own access settings rather than
// owner-only access.
func (h *FunctionsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	base := "/api/functions"

	mux.HandleFunc("GET "+base, authMiddleware.RequireOwner(h.List))
	mux.HandleFunc("POST "+base, authMiddleware.RequireOwner(h.Create))
	mux.HandleFunc("GET "+base+"/{schema}/{name}", authMiddleware.RequireOwner(h.Get))
	mux.HandleFunc("DELETE "+base+"/{schema}/{name}", authMiddleware.RequireOwner(h.Drop))
	mux.HandleFunc("PUT "+base+"/{schema}/{name}/access", authMiddleware.RequireOwner(h.UpdateAccess))
	mux.HandleFunc("POST "+base+"/{schema}/{name}/run", authMiddleware.Authenticate(h.Run))
}

// List handles GET /api/functions
func (h *FunctionsHandler) List(w http.ResponseWriter, r *http.Request) {
	functions, err := h.functionService.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list functions", zap.Error(err))
		WriteError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, FunctionListResponse{Functions: functions}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/functions/{schema}/{name}
func (h *FunctionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	schema, name, ok := ParseFunctionName(w, r, h.logger)
	if !ok {
		return
	}

	def, err := h.functionService.Get(r.Context(), schema, name)
	if err != nil {
		h.logger.Debug("Function lookup failed",
			zap.String("schema", schema),
			zap.String("name", name),
			zap.Error(err))
		WriteError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, FunctionDefinitionResponse{Definition: def}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/functions
func (h *FunctionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var req CreateFunctionRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	res, err := h.functionService.Create(r.Context(), services.CreateFunctionRequest{
		SQL:          req.SQL,
		IsProtected:  req.IsProtected,
		AllowedRoles: req.AllowedRoles,
	})
	if err != nil {
		h.logger.Info("Function create failed", zap.Error(err))
		WriteError(w, err, h.logger)
		return
	}

	response := CreateFunctionResponse{
		Status:      "ok",
		Result:      res.Result,
		Function:    res.Function,
		WarnReplace: res.WarnReplace,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Drop handles DELETE /api/functions/{schema}/{name}
func (h *FunctionsHandler) Drop(w http.ResponseWriter, r *http.Request) {
	schema, name, ok := ParseFunctionName(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.functionService.Drop(r.Context(), schema, name); err != nil {
		h.logger.Info("Function drop failed",
			zap.String("schema", schema),
			zap.String("name", name),
			zap.Error(err))
		WriteError(w, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateAccess handles PUT /api/functions/{schema}/{name}/access
func (h *FunctionsHandler) UpdateAccess(w http.ResponseWriter, r *http.Request) {
	schema, name, ok := ParseFunctionName(w, r, h.logger)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var req UpdateFunctionAccessRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	def, err := h.functionService.UpdateAccess(r.Context(), schema, name, services.FunctionAccessUpdate{
		IsProtected:  req.IsProtected,
		AllowedRoles: req.AllowedRoles,
	})
	if err != nil {
		h.logger.Info("Function access update failed",
			zap.String("schema", schema),
			zap.String("name", name),
			zap.Error(err))
		WriteError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, FunctionDefinitionResponse{Definition: def}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Run handles POST /api/functions/{schema}/{name}/run with body {"args": [...]}.
func (h *FunctionsHandler) Run(w http.ResponseWriter, r *http.Request) {
	schema, name, ok := ParseFunctionName(w, r, h.logger)
	if !ok {
		return
	}

	body, bodyErr := readBody(w, r, h.maxBodyBytes)

	result, err := h.dispatcher.HandleFunction(r.Context(), services.FunctionRequest{
		Schema:   schema,
		Name:     name,
		Body:     body,
		BodyErr:  bodyErr,
		Auth:     auth.GetAuthContext(r.Context()),
		ClientIP: clientIP(r),
	})
	if err != nil {
		h.logger.Debug("Function invocation failed",
			zap.String("schema", schema),
			zap.String("name", name),
			zap.Error(err))
		WriteError(w, err, h.logger)
		return
	}

	writeResult(w, result, h.logger)
}
