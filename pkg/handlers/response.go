package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/apperrors"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/logging"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/routing"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	return writeErrorBody(w, statusCode, errorBody{Error: errorCode, Message: message})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

func writeErrorBody(w http.ResponseWriter, statusCode int, body errorBody) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(body)
}

// WriteError maps err onto a status code and a stable error kind. Unknown
// failures are logged in full and answered without detail.
func WriteError(w http.ResponseWriter, err error, logger *zap.Logger) {
	status, body := classifyError(err)
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", zap.String("error", logging.SanitizeError(err)))
	}
	if err := writeErrorBody(w, status, body); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

func classifyError(err error) (int, errorBody) {
	var (
		validationErr *apperrors.ValidationError
		executionErr  *apperrors.ExecutionError
		collisionErr  *apperrors.CollisionError
		maxBytesErr   *http.MaxBytesError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, errorBody{
			Error:   string(validationErr.Kind),
			Message: validationErr.Message,
			Field:   validationErr.Field,
		}
	case errors.As(err, &maxBytesErr):
		return http.StatusBadRequest, errorBody{
			Error:   string(apperrors.InvalidBody),
			Message: "request body is too large",
		}
	case errors.As(err, &executionErr):
		return executionStatus(executionErr.Kind), errorBody{
			Error:   string(executionErr.Kind),
			Message: executionMessage(executionErr),
		}
	case errors.As(err, &collisionErr):
		return http.StatusConflict, errorBody{Error: "collision", Message: collisionErr.Error()}
	case errors.Is(err, routing.ErrNoMatch), errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: "not_found", Message: "Not found"}
	case errors.Is(err, apperrors.ErrUnauthenticated):
		return http.StatusUnauthorized, errorBody{Error: "unauthenticated", Message: "Authentication required"}
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden, errorBody{Error: "forbidden", Message: "Access denied"}
	case errors.Is(err, apperrors.ErrInvalidDefinition):
		return http.StatusBadRequest, errorBody{Error: "invalid_definition", Message: err.Error()}
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, errorBody{Error: "conflict", Message: err.Error()}
	default:
		return http.StatusInternalServerError, errorBody{Error: string(apperrors.Unknown), Message: "Internal server error"}
	}
}

func executionStatus(kind apperrors.ExecutionKind) int {
	switch kind {
	case apperrors.SyntaxError, apperrors.ConstraintViolation:
		return http.StatusBadRequest
	case apperrors.PermissionDenied:
		return http.StatusForbidden
	case apperrors.NotFound:
		return http.StatusNotFound
	case apperrors.Timeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func executionMessage(err *apperrors.ExecutionError) string {
	if err.Kind == apperrors.Unknown {
		return "Internal server error"
	}
	return err.Message
}

// decodeJSON reads a JSON request body into v. Oversized bodies surface as
// *http.MaxBytesError when the body was wrapped with http.MaxBytesReader.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return &apperrors.ValidationError{Kind: apperrors.InvalidBody, Message: "request body is required"}
		}
		return &apperrors.ValidationError{Kind: apperrors.InvalidBody, Message: "request body is not valid JSON"}
	}
	return nil
}

// clientIP returns the host part of the peer address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
