package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckParameterForInjection(t *testing.T) {
	tests := []struct {
		name            string
		value           any
		expectInjection bool
	}{
		{name: "clean string value", value: "12345"},
		{name: "clean email address", value: "user@example.com"},
		{name: "clean UUID", value: "550e8400-e29b-41d4-a716-446655440000"},
		{name: "integer is never checked", value: int64(42)},
		{name: "boolean is never checked", value: true},
		{name: "nil is never checked", value: nil},
		{name: "classic OR", value: "' OR '1'='1", expectInjection: true},
		{name: "union select", value: "1 UNION SELECT * FROM users", expectInjection: true},
		{name: "drop table", value: "'; DROP TABLE users--", expectInjection: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckParameterForInjection("param", tt.value)
			if !tt.expectInjection {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.Equal(t, "param", result.ParamName)
			assert.NotEmpty(t, result.Fingerprint)
		})
	}
}

func TestCheckParameterForInjection_RealWorldExamples(t *testing.T) {
	cleanValues := []string{
		"/usr/local/bin/app",
		`{"key": "value", "enabled": true}`,
		"user+tag@example.com",
		"+1-555-123-4567",
		"https://example.com/path?query=value&other=123",
		"# Header\n\nThis is **bold** and *italic* text.",
	}

	for _, value := range cleanValues {
		t.Run(value, func(t *testing.T) {
			assert.Nil(t, CheckParameterForInjection("field", value))
		})
	}
}

func TestCheckAllParameters(t *testing.T) {
	names := []string{"id", "search", "limit"}
	values := []any{"12345", "'; DROP TABLE users--", int64(10)}

	results := CheckAllParameters(names, values)

	require.Len(t, results, 1)
	assert.Equal(t, "search", results[0].ParamName)
}

func TestCheckAllParameters_ShortValues(t *testing.T) {
	results := CheckAllParameters([]string{"a", "b"}, []any{"ok"})
	assert.Empty(t, results)
}
