package handlers

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/auth"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/executor"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/services"
)

// RowsAffectedResponse is returned by endpoints whose SQL returns no rows.
type RowsAffectedResponse struct {
	RowsAffected int64 `json:"rowsAffected"`
}

// DynamicHandler serves every registered endpoint. It is mounted on "/" so
// anything the fixed routes do not claim reaches the registry.
type DynamicHandler struct {
	dispatcher   *services.Dispatcher
	maxBodyBytes int64
	logger       *zap.Logger
}

// NewDynamicHandler creates a new dynamic endpoint handler.
func NewDynamicHandler(dispatcher *services.Dispatcher, maxBodyBytes int64, logger *zap.Logger) *DynamicHandler {
	return &DynamicHandler{
		dispatcher:   dispatcher,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// RegisterRoutes mounts the catch-all route.
func (h *DynamicHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("/", authMiddleware.Authenticate(h.Serve))
}

// Serve handles a request to a dynamic endpoint.
func (h *DynamicHandler) Serve(w http.ResponseWriter, r *http.Request) {
	body, bodyErr := readBody(w, r, h.maxBodyBytes)

	result, err := h.dispatcher.Handle(r.Context(), services.Request{
		Method:   r.Method,
		Path:     r.URL.Path,
		Query:    r.URL.Query(),
		Body:     body,
		BodyErr:  bodyErr,
		Auth:     auth.GetAuthContext(r.Context()),
		ClientIP: clientIP(r),
	})
	if err != nil {
		h.logger.Debug("Dynamic endpoint failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		WriteError(w, err, h.logger)
		return
	}

	writeResult(w, result, h.logger)
}

// readBody reads at most limit bytes. The error is not written here: the
// dispatcher reports it after the caller is authorized, so an oversized body
// says nothing about a target the caller may not reach.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	return io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
}

// writeResult renders rows as a JSON array, or the affected row count for
// statements that return no rows.
func writeResult(w http.ResponseWriter, result *executor.Result, logger *zap.Logger) {
	var payload any
	if result.ReturnsRows {
		rows := result.Rows
		if rows == nil {
			rows = []map[string]any{}
		}
		payload = rows
	} else {
		payload = RowsAffectedResponse{RowsAffected: result.RowsAffected}
	}

	if err := WriteJSON(w, http.StatusOK, payload); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}
