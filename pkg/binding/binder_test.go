package binding

import (
	"errors"
	"net/url"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/apperrors"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/models"
)

func requireValidationKind(t *testing.T, err error, kind apperrors.ValidationKind, field string) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	var verr *apperrors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, kind, verr.Kind)
	assert.Equal(t, field, verr.Field)
}

func TestBind_PathNumber(t *testing.T) {
	params := []models.ParameterSpec{
		{Name: "id", Location: models.LocationPath, Type: models.TypeNumber, Required: true},
	}

	args, err := Bind(params, Request{PathValues: map[string]string{"id": "42"}})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(42)}, args.Values)
	assert.Equal(t, int64(42), args.ByName["id"])

	_, err = Bind(params, Request{PathValues: map[string]string{"id": "abc"}})
	requireValidationKind(t, err, apperrors.TypeMismatch, "id")
}

func TestBind_EmptyPathCaptureIsMissing(t *testing.T) {
	params := []models.ParameterSpec{
		{Name: "id", Location: models.LocationPath, Required: true},
	}

	_, err := Bind(params, Request{PathValues: map[string]string{}})
	requireValidationKind(t, err, apperrors.MissingParameter, "id")

	_, err = Bind(params, Request{PathValues: map[string]string{"id": ""}})
	requireValidationKind(t, err, apperrors.MissingParameter, "id")
}

func TestBind_OptionalAbsentBindsNil(t *testing.T) {
	params := []models.ParameterSpec{
		{Name: "status", Location: models.LocationQuery},
		{Name: "limit", Location: models.LocationQuery, Type: models.TypeNumber},
	}

	args, err := Bind(params, Request{Query: url.Values{"limit": {"10"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"status", "limit"}, args.Names)
	assert.Equal(t, []any{nil, int64(10)}, args.Values)
	assert.Contains(t, args.ByName, "status")
	assert.Nil(t, args.ByName["status"])
}

func TestBind_QueryValues(t *testing.T) {
	params := []models.ParameterSpec{
		{Name: "q", Location: models.LocationQuery, Required: true},
	}

	args, err := Bind(params, Request{Query: url.Values{"q": {"first", "second"}}})
	require.NoError(t, err)
	assert.Equal(t, "first", args.ByName["q"], "first value wins")

	args, err = Bind(params, Request{Query: url.Values{"q": {""}}})
	require.NoError(t, err)
	assert.Equal(t, "", args.ByName["q"], "an empty query value is present")
}

func TestBind_StringPassthrough(t *testing.T) {
	params := []models.ParameterSpec{
		{Name: "name", Location: models.LocationQuery, Required: true},
	}

	value := "  O'Brien; DROP TABLE users --  "
	args, err := Bind(params, Request{Query: url.Values{"name": {value}}})
	require.NoError(t, err)
	assert.Equal(t, value, args.ByName["name"])
}

func TestBind_Numbers(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected any
		invalid  bool
	}{
		{name: "integer", input: "42", expected: int64(42)},
		{name: "negative integer", input: "-7", expected: int64(-7)},
		{name: "exact fraction", input: "42.5", expected: 42.5},
		{name: "exponent", input: "1e3", expected: float64(1000)},
		{name: "not a number", input: "abc", invalid: true},
		{name: "NaN", input: "NaN", invalid: true},
		{name: "Infinity", input: "Infinity", invalid: true},
		{name: "hex", input: "0x10", invalid: true},
		{name: "empty", input: "", invalid: true},
		{name: "trailing garbage", input: "12abc", invalid: true},
		{name: "huge exponent", input: "1e100000", invalid: true},
	}

	params := []models.ParameterSpec{
		{Name: "n", Location: models.LocationQuery, Type: models.TypeNumber, Required: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := Bind(params, Request{Query: url.Values{"n": {tt.input}}})
			if tt.invalid {
				requireValidationKind(t, err, apperrors.TypeMismatch, "n")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, args.ByName["n"])
		})
	}
}

func TestBind_NumbersNeverRound(t *testing.T) {
	params := []models.ParameterSpec{
		{Name: "n", Location: models.LocationQuery, Type: models.TypeNumber, Required: true},
	}

	for _, input := range []string{"0.1", "9223372036854775809", "123456789.123456789123"} {
		t.Run(input, func(t *testing.T) {
			args, err := Bind(params, Request{Query: url.Values{"n": {input}}})
			require.NoError(t, err)

			n, ok := args.ByName["n"].(pgtype.Numeric)
			require.True(t, ok, "expected numeric, got %T", args.ByName["n"])
			assert.True(t, n.Valid)
		})
	}
}

func TestExpandExponent(t *testing.T) {
	assert.Equal(t, "0.00123", expandExponent("", "1.23", "-3"))
	assert.Equal(t, "-123000", expandExponent("-", "1.23", "5"))
	assert.Equal(t, "12.3", expandExponent("", "1.23", "1"))
	assert.Equal(t, "0.5", expandExponent("", ".5", ""))
	assert.Equal(t, "5", expandExponent("", "5.", ""))
}

func TestBind_Booleans(t *testing.T) {
	params := []models.ParameterSpec{
		{Name: "flag", Location: models.LocationBody, Type: models.TypeBoolean, Required: true},
	}

	tests := []struct {
		body     string
		expected any
		invalid  bool
	}{
		{body: `{"flag": true}`, expected: true},
		{body: `{"flag": false}`, expected: false},
		{body: `{"flag": "TRUE"}`, expected: true},
		{body: `{"flag": "false"}`, expected: false},
		{body: `{"flag": "yes"}`, invalid: true},
		{body: `{"flag": 1}`, invalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			args, err := Bind(params, Request{Body: []byte(tt.body)})
			if tt.invalid {
				requireValidationKind(t, err, apperrors.TypeMismatch, "flag")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, args.ByName["flag"])
		})
	}
}

func TestBind_Body(t *testing.T) {
	params := []models.ParameterSpec{
		{Name: "name", Location: models.LocationBody, Required: true},
		{Name: "price", Location: models.LocationBody, Type: models.TypeNumber, Required: true},
		{Name: "note", Location: models.LocationBody},
	}

	args, err := Bind(params, Request{Body: []byte(`{"name": "bolt", "price": 12, "note": null, "extra": 1}`)})
	require.NoError(t, err)
	assert.Equal(t, []any{"bolt", int64(12), nil}, args.Values)
}

func TestBind_BodyStringTypeMismatch(t *testing.T) {
	params := []models.ParameterSpec{
		{Name: "name", Location: models.LocationBody, Required: true},
	}

	_, err := Bind(params, Request{Body: []byte(`{"name": 5}`)})
	requireValidationKind(t, err, apperrors.TypeMismatch, "name")
}

func TestBind_InvalidBodies(t *testing.T) {
	params := []models.ParameterSpec{
		{Name: "name", Location: models.LocationBody},
	}

	for _, body := range []string{`[1, 2]`, `"text"`, `42`, `{"name":`, `{} {}`} {
		t.Run(body, func(t *testing.T) {
			_, err := Bind(params, Request{Body: []byte(body)})
			requireValidationKind(t, err, apperrors.InvalidBody, "")
		})
	}
}

func TestBind_EmptyBodyWithOptionalParams(t *testing.T) {
	params := []models.ParameterSpec{
		{Name: "name", Location: models.LocationBody},
	}

	args, err := Bind(params, Request{})
	require.NoError(t, err)
	assert.Equal(t, []any{nil}, args.Values)
}

func TestBind_BodyIgnoredWithoutBodyParams(t *testing.T) {
	params := []models.ParameterSpec{
		{Name: "id", Location: models.LocationPath, Required: true},
	}

	args, err := Bind(params, Request{
		PathValues: map[string]string{"id": "x"},
		Body:       []byte(`not json`),
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"x"}, args.Values)
}

func TestBind_MissingRequiredReportsFirstInDeclarationOrder(t *testing.T) {
	params := []models.ParameterSpec{
		{Name: "a", Location: models.LocationQuery, Required: true},
		{Name: "b", Location: models.LocationQuery, Required: true},
	}

	_, err := Bind(params, Request{Query: url.Values{}})
	requireValidationKind(t, err, apperrors.MissingParameter, "a")
}

func TestBoundArgs_Describe(t *testing.T) {
	args := &BoundArgs{ByName: map[string]any{}}
	args.add("id", int64(1))
	args.add("name", "secret")

	assert.Equal(t, "id:int64,name:string", args.Describe())
}
