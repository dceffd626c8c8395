package sql

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractParameters(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		expected []string
	}{
		{
			name:     "no parameters",
			sql:      "SELECT * FROM users",
			expected: nil,
		},
		{
			name:     "single parameter",
			sql:      "SELECT * FROM users WHERE id = {{user_id}}",
			expected: []string{"user_id"},
		},
		{
			name:     "multiple parameters",
			sql:      "SELECT * FROM orders WHERE customer_id = {{customer_id}} AND total > {{min_total}}",
			expected: []string{"customer_id", "min_total"},
		},
		{
			name:     "duplicate parameter appears once",
			sql:      "SELECT * FROM transactions WHERE sender_id = {{user_id}} OR receiver_id = {{user_id}}",
			expected: []string{"user_id"},
		},
		{
			name:     "parameter starting with underscore",
			sql:      "SELECT * FROM temp WHERE value = {{_private}}",
			expected: []string{"_private"},
		},
		{
			name:     "placeholder inside string literal is ignored",
			sql:      "SELECT * FROM logs WHERE message = '{{not_a_param}}' AND user_id = {{user_id}}",
			expected: []string{"user_id"},
		},
		{
			name:     "placeholder inside comment is ignored",
			sql:      "SELECT * FROM users -- WHERE id = {{user_id}}\nWHERE status = {{status}}",
			expected: []string{"status"},
		},
		{
			name:     "malformed placeholder - starts with number",
			sql:      "SELECT * FROM users WHERE id = {{123abc}}",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExtractParameters(tt.sql)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMaxOrdinal(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		expected int
	}{
		{"none", "SELECT 1", 0},
		{"single", "SELECT * FROM widgets WHERE id = $1", 1},
		{"out of order", "SELECT $2, $1, $3", 3},
		{"inside literal ignored", "SELECT '$9' FROM t WHERE a = $1", 1},
		{"dollar quoted body ignored", "SELECT $$ $5 $$, $2", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MaxOrdinal(tt.sql))
		})
	}
}

func TestValidateTemplate(t *testing.T) {
	tests := []struct {
		name          string
		sql           string
		declared      []string
		expectedError string
	}{
		{
			name:     "named parameters all declared",
			sql:      "SELECT * FROM orders WHERE customer_id = {{customer_id}}",
			declared: []string{"customer_id", "limit"},
		},
		{
			name:          "named parameter not declared",
			sql:           "SELECT * FROM orders WHERE customer_id = {{customer_id}} AND total > {{min_total}}",
			declared:      []string{"customer_id"},
			expectedError: "parameter {{min_total}} used in SQL but not defined",
		},
		{
			name:     "ordinal parameters within declared count",
			sql:      "SELECT * FROM widgets WHERE id = $1",
			declared: []string{"id"},
		},
		{
			name:          "ordinal beyond declared count",
			sql:           "SELECT * FROM widgets WHERE id = $1 AND owner = $2",
			declared:      []string{"id"},
			expectedError: "references $2",
		},
		{
			name:          "mixed styles",
			sql:           "SELECT * FROM widgets WHERE id = $1 AND owner = {{owner}}",
			declared:      []string{"id", "owner"},
			expectedError: "mixes",
		},
		{
			name:          "named parameter in string literal",
			sql:           "SELECT 'Hello {{name}}' FROM users",
			declared:      []string{"name"},
			expectedError: "inside a string literal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTemplate(tt.sql, tt.declared)
			if tt.expectedError == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedError)
		})
	}
}

func TestSubstituteParameters(t *testing.T) {
	tests := []struct {
		name           string
		sql            string
		values         map[string]any
		expectedSQL    string
		expectedValues []any
	}{
		{
			name:           "single parameter",
			sql:            "SELECT * FROM users WHERE id = {{user_id}}",
			values:         map[string]any{"user_id": int64(7)},
			expectedSQL:    "SELECT * FROM users WHERE id = $1",
			expectedValues: []any{int64(7)},
		},
		{
			name:           "reused parameter keeps its position",
			sql:            "SELECT * FROM transactions WHERE sender_id = {{user_id}} OR receiver_id = {{user_id}} AND amount > {{min}}",
			values:         map[string]any{"user_id": "u1", "min": 10.5},
			expectedSQL:    "SELECT * FROM transactions WHERE sender_id = $1 OR receiver_id = $1 AND amount > $2",
			expectedValues: []any{"u1", 10.5},
		},
		{
			name:           "nil value binds null",
			sql:            "SELECT * FROM orders WHERE ({{status}}::text IS NULL OR status = {{status}})",
			values:         map[string]any{"status": nil},
			expectedSQL:    "SELECT * FROM orders WHERE ($1::text IS NULL OR status = $1)",
			expectedValues: []any{nil},
		},
		{
			name:           "literal placeholder left untouched",
			sql:            "SELECT '{{x}}' AS raw, {{y}} AS bound",
			values:         map[string]any{"y": true},
			expectedSQL:    "SELECT '{{x}}' AS raw, $1 AS bound",
			expectedValues: []any{true},
		},
		{
			name:        "no placeholders",
			sql:         "SELECT 1",
			values:      map[string]any{},
			expectedSQL: "SELECT 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sqlOut, values, err := SubstituteParameters(tt.sql, tt.values)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedSQL, sqlOut)
			assert.Equal(t, tt.expectedValues, values)
		})
	}
}

func TestSubstituteParameters_MissingValue(t *testing.T) {
	_, _, err := SubstituteParameters("SELECT {{a}}, {{b}}", map[string]any{"a": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "{{b}}")
}

func TestFindParametersInStringLiterals(t *testing.T) {
	assert.Equal(t, []string{"name"}, FindParametersInStringLiterals("SELECT 'Hello {{name}}' FROM users"))
	assert.Empty(t, FindParametersInStringLiterals("SELECT * FROM users WHERE name = {{name}}"))
	assert.Empty(t, FindParametersInStringLiterals("SELECT 'it''s' , {{name}}"))
}
