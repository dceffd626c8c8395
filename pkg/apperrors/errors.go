package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrUnauthenticated   = errors.New("authentication required")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidDefinition = errors.New("invalid definition")
	ErrValidation        = errors.New("validation failed")
	ErrExecution         = errors.New("execution failed")
)

// ValidationKind identifies why a request argument was rejected.
type ValidationKind string

const (
	MissingParameter ValidationKind = "missing_parameter"
	TypeMismatch     ValidationKind = "type_mismatch"
	InvalidBody      ValidationKind = "invalid_body"
)

// ValidationError is returned by the parameter binder. Field is empty for
// body-level problems.
type ValidationError struct {
	Kind    ValidationKind
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewMissingParameter reports a required parameter that was absent.
func NewMissingParameter(name string) *ValidationError {
	return &ValidationError{
		Kind:    MissingParameter,
		Field:   name,
		Message: fmt.Sprintf("required parameter '%s' is missing", name),
	}
}

// NewTypeMismatch reports a value that could not be coerced to its declared type.
func NewTypeMismatch(name, expected string) *ValidationError {
	return &ValidationError{
		Kind:    TypeMismatch,
		Field:   name,
		Message: fmt.Sprintf("parameter '%s' must be a %s", name, expected),
	}
}

// ExecutionKind classifies a database failure.
type ExecutionKind string

const (
	SyntaxError         ExecutionKind = "syntax_error"
	ConstraintViolation ExecutionKind = "constraint_violation"
	PermissionDenied    ExecutionKind = "permission_denied"
	NotFound            ExecutionKind = "not_found"
	Timeout             ExecutionKind = "timeout"
	Unknown             ExecutionKind = "unknown"
)

// ExecutionError wraps a classified database error. Message is safe to show
// to the caller; Err keeps the driver error for server-side logging.
type ExecutionError struct {
	Kind    ExecutionKind
	Message string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecution
}

// CollisionError is returned when an active endpoint would overlap an
// existing active endpoint with the same method and specificity.
type CollisionError struct {
	Method     string
	Path       string
	ExistingID string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("route %s %s collides with existing endpoint %s", e.Method, e.Path, e.ExistingID)
}

func (e *CollisionError) Is(target error) bool {
	return target == ErrConflict
}
