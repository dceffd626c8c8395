package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ParseEndpointID extracts and validates the endpoint ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: id
func ParseEndpointID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "id", "invalid_endpoint_id", "Invalid endpoint ID format", logger)
}

// ParseFunctionName reads the schema and name path parameters.
// Expects path parameters: schema, name
func ParseFunctionName(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, string, bool) {
	schema := strings.TrimSpace(r.PathValue("schema"))
	name := strings.TrimSpace(r.PathValue("name"))
	if schema == "" || name == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_function_name", "Schema and function name are required"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return "", "", false
	}
	return schema, name, true
}

func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}
