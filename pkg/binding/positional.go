package binding

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/apperrors"
)

// DecodeArgs parses a function invocation body of the form {"args": [...]}.
// An empty body means no arguments. Numbers are decoded with the same
// precision rules as declared number parameters; objects and arrays are
// passed as JSON text for json/jsonb arguments.
func DecodeArgs(body []byte) ([]any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return []any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload struct {
		Args []any `json:"args"`
	}
	if err := dec.Decode(&payload); err != nil {
		return nil, &apperrors.ValidationError{
			Kind:    apperrors.InvalidBody,
			Message: "request body must be a JSON object with an args array",
		}
	}
	if dec.More() {
		return nil, &apperrors.ValidationError{
			Kind:    apperrors.InvalidBody,
			Message: "request body must contain a single JSON value",
		}
	}

	args := make([]any, len(payload.Args))
	for i, raw := range payload.Args {
		value, err := positionalValue(i, raw)
		if err != nil {
			return nil, err
		}
		args[i] = value
	}
	return args, nil
}

func positionalValue(index int, raw any) (any, error) {
	switch v := raw.(type) {
	case nil, bool, string:
		return v, nil
	case json.Number:
		value, ok := parseNumber(v.String())
		if !ok {
			return nil, apperrors.NewTypeMismatch(fmt.Sprintf("args[%d]", index), "number")
		}
		return value, nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, apperrors.NewTypeMismatch(fmt.Sprintf("args[%d]", index), "JSON value")
		}
		return string(encoded), nil
	}
}
