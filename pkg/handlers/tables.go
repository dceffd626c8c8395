package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/auth"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/executor"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/services"
)

// ExecuteSQLRequest for POST /api/tables
type ExecuteSQLRequest struct {
	SQL string `json:"sql"`
}

// ExecuteSQLResponse for POST /api/tables
type ExecuteSQLResponse struct {
	Status      string           `json:"status"`
	Result      *executor.Result `json:"result"`
	WarnReplace bool             `json:"warnReplace"`
}

// TablesHandler runs schema and data changes authored by the project owner.
type TablesHandler struct {
	tableService services.TableService
	maxBodyBytes int64
	logger       *zap.Logger
}

// NewTablesHandler creates a new tables handler.
func NewTablesHandler(tableService services.TableService, maxBodyBytes int64, logger *zap.Logger) *TablesHandler {
	return &TablesHandler{
		tableService: tableService,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// RegisterRoutes registers the tables route on the given mux.
func (h *TablesHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/tables", authMiddleware.RequireOwner(h.Execute))
}

// Execute handles POST /api/tables
func (h *TablesHandler) Execute(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var req ExecuteSQLRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	result, err := h.tableService.Execute(r.Context(), req.SQL)
	if err != nil {
		h.logger.Info("Table SQL failed", zap.Error(err))
		WriteError(w, err, h.logger)
		return
	}

	response := ExecuteSQLResponse{Status: "ok", Result: result, WarnReplace: result.WarnReplace}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
