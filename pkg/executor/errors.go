package executor

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/apperrors"
)

const unknownMessage = "the statement failed unexpectedly"

// notFoundCodes are undefined-object errors that callers see as missing
// tables, columns, functions or schemas.
var notFoundCodes = map[string]bool{
	"42P01": true, // undefined_table
	"42883": true, // undefined_function
	"42703": true, // undefined_column
	"42704": true, // undefined_object
	"3F000": true, // invalid_schema_name
}

// duplicateCodes are class 42 errors that report an object that already exists.
var duplicateCodes = map[string]bool{
	"42P07": true, // duplicate_table
	"42723": true, // duplicate_function
	"42710": true, // duplicate_object
	"42P06": true, // duplicate_schema
	"42701": true, // duplicate_column
}

// Classify maps a driver error onto an ExecutionError. PostgreSQL errors keep
// their server message; anything unrecognized becomes Unknown with a generic
// message so no internal detail reaches the caller.
func Classify(err error) *apperrors.ExecutionError {
	if err == nil {
		return nil
	}

	var execErr *apperrors.ExecutionError
	if errors.As(err, &execErr) {
		return execErr
	}

	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return &apperrors.ExecutionError{
			Kind:    apperrors.Timeout,
			Message: "the statement exceeded its time limit",
			Err:     err,
		}
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return &apperrors.ExecutionError{Kind: apperrors.Unknown, Message: unknownMessage, Err: err}
	}

	return &apperrors.ExecutionError{
		Kind:    kindForCode(pgErr.Code),
		Message: pgErr.Message,
		Err:     err,
	}
}

func kindForCode(code string) apperrors.ExecutionKind {
	switch {
	case code == "42501" || strings.HasPrefix(code, "28"):
		return apperrors.PermissionDenied
	case notFoundCodes[code]:
		return apperrors.NotFound
	case duplicateCodes[code]:
		return apperrors.ConstraintViolation
	case strings.HasPrefix(code, "42"):
		return apperrors.SyntaxError
	case strings.HasPrefix(code, "23"), strings.HasPrefix(code, "22"), code == "2BP01":
		return apperrors.ConstraintViolation
	case code == "57014" || code == "55P03":
		return apperrors.Timeout
	default:
		return apperrors.Unknown
	}
}
