// Package binding turns request values into typed SQL arguments according to
// an endpoint's declared parameters.
package binding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/apperrors"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/models"
)

// BoundArgs holds coerced argument values. Values follows declaration order
// and is what ordinal ($N) templates bind; ByName serves {{name}} templates.
// An optional parameter that was not supplied binds nil.
type BoundArgs struct {
	Names  []string
	Values []any
	ByName map[string]any
}

// Request carries the raw inputs a binder reads from.
type Request struct {
	PathValues map[string]string
	Query      url.Values
	Body       []byte
}

// Bind reads every declared parameter from its location, checks required-ness
// and coerces it to the declared type. The body is only parsed when a
// body-located parameter is declared.
func Bind(params []models.ParameterSpec, req Request) (*BoundArgs, error) {
	args := &BoundArgs{
		Names:  make([]string, 0, len(params)),
		Values: make([]any, 0, len(params)),
		ByName: make(map[string]any, len(params)),
	}

	var body map[string]any
	if needsBody(params) {
		parsed, err := parseBody(req.Body)
		if err != nil {
			return nil, err
		}
		body = parsed
	}

	for _, p := range params {
		raw, present := lookup(p, req, body)
		if !present {
			if p.Required {
				return nil, apperrors.NewMissingParameter(p.Name)
			}
			args.add(p.Name, nil)
			continue
		}

		value, err := coerce(p, raw)
		if err != nil {
			return nil, err
		}
		args.add(p.Name, value)
	}

	return args, nil
}

func (a *BoundArgs) add(name string, value any) {
	a.Names = append(a.Names, name)
	a.Values = append(a.Values, value)
	a.ByName[name] = value
}

func needsBody(params []models.ParameterSpec) bool {
	for _, p := range params {
		if p.Location == models.LocationBody {
			return true
		}
	}
	return false
}

// parseBody decodes a JSON object. An empty body is an empty object so that
// optional body parameters can be omitted entirely.
func parseBody(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return nil, &apperrors.ValidationError{
			Kind:    apperrors.InvalidBody,
			Message: "request body is not valid JSON",
		}
	}
	if dec.More() {
		return nil, &apperrors.ValidationError{
			Kind:    apperrors.InvalidBody,
			Message: "request body must contain a single JSON value",
		}
	}

	obj, ok := decoded.(map[string]any)
	if !ok {
		return nil, &apperrors.ValidationError{
			Kind:    apperrors.InvalidBody,
			Message: "request body must be a JSON object",
		}
	}
	return obj, nil
}

// lookup returns the raw value for p. A JSON null counts as absent, as does an
// empty path capture. Query parameters use the first value given.
func lookup(p models.ParameterSpec, req Request, body map[string]any) (any, bool) {
	switch p.Location {
	case models.LocationPath:
		v, ok := req.PathValues[p.Name]
		if !ok || v == "" {
			return nil, false
		}
		return v, true
	case models.LocationQuery:
		vs, ok := req.Query[p.Name]
		if !ok || len(vs) == 0 {
			return nil, false
		}
		return vs[0], true
	case models.LocationBody:
		v, ok := body[p.Name]
		if !ok || v == nil {
			return nil, false
		}
		return v, true
	default:
		return nil, false
	}
}

func coerce(p models.ParameterSpec, raw any) (any, error) {
	switch p.EffectiveType() {
	case models.TypeNumber:
		return coerceNumber(p.Name, raw)
	case models.TypeBoolean:
		return coerceBoolean(p.Name, raw)
	default:
		return coerceString(p.Name, raw)
	}
}

// coerceString passes text through unchanged. Body values that are not JSON
// strings are rejected rather than re-rendered.
func coerceString(name string, raw any) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, apperrors.NewTypeMismatch(name, models.TypeString)
	}
	return s, nil
}

func coerceBoolean(name string, raw any) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return nil, apperrors.NewTypeMismatch(name, models.TypeBoolean)
}

var decimalRegex = regexp.MustCompile(`^([+-]?)(\d+\.?\d*|\.\d+)(?:[eE]([+-]?\d+))?$`)

const maxExponent = 1000

// coerceNumber accepts finite decimal numbers. Integers that fit int64 bind as
// int64 and values float64 represents exactly bind as float64. Anything else
// binds as a numeric so that no digits are lost.
func coerceNumber(name string, raw any) (any, error) {
	var text string
	switch v := raw.(type) {
	case json.Number:
		text = v.String()
	case string:
		text = strings.TrimSpace(v)
	default:
		return nil, apperrors.NewTypeMismatch(name, models.TypeNumber)
	}

	value, ok := parseNumber(text)
	if !ok {
		return nil, apperrors.NewTypeMismatch(name, models.TypeNumber)
	}
	return value, nil
}

func parseNumber(text string) (any, bool) {
	match := decimalRegex.FindStringSubmatch(text)
	if match == nil {
		return nil, false
	}
	if match[3] != "" {
		exp, err := strconv.Atoi(match[3])
		if err != nil || exp > maxExponent || exp < -maxExponent {
			return nil, false
		}
	}

	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return i, true
	}

	exact, ok := new(big.Rat).SetString(text)
	if !ok {
		return nil, false
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil && !math.IsInf(f, 0) {
		if new(big.Rat).SetFloat64(f).Cmp(exact) == 0 {
			return f, true
		}
	}

	var n pgtype.Numeric
	if err := n.Scan(expandExponent(match[1], match[2], match[3])); err != nil {
		return nil, false
	}
	return n, true
}

// expandExponent renders sign, mantissa and exponent as a plain decimal
// string, which is the form pgtype.Numeric parses.
func expandExponent(sign, mantissa, exponent string) string {
	if exponent == "" {
		mantissa = strings.TrimSuffix(mantissa, ".")
		if strings.HasPrefix(mantissa, ".") {
			mantissa = "0" + mantissa
		}
		return sign + mantissa
	}
	exp, _ := strconv.Atoi(exponent)

	intPart, fracPart, _ := strings.Cut(mantissa, ".")
	digits := intPart + fracPart
	point := len(intPart) + exp

	var out string
	switch {
	case point <= 0:
		out = "0." + strings.Repeat("0", -point) + digits
	case point >= len(digits):
		out = digits + strings.Repeat("0", point-len(digits))
	default:
		out = digits[:point] + "." + digits[point:]
	}

	out = strings.TrimLeft(out, "0")
	if out == "" || out[0] == '.' {
		out = "0" + out
	}
	return sign + out
}

// Describe summarizes the bound names and Go types for debug logging. Values
// are deliberately omitted.
func (a *BoundArgs) Describe() string {
	parts := make([]string, len(a.Names))
	for i, name := range a.Names {
		parts[i] = fmt.Sprintf("%s:%T", name, a.Values[i])
	}
	return strings.Join(parts, ",")
}
