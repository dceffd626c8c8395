package sql

import (
	"errors"
	"regexp"
	"strings"
)

// DefaultSchema is assumed for unqualified function names.
const DefaultSchema = "public"

var (
	// ErrMultipleStatements indicates the template contains more than one statement.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")
	// ErrEmptyStatement indicates the SQL is blank once comments are removed.
	ErrEmptyStatement = errors.New("SQL statement is empty")
	// ErrNotFunctionDefinition indicates the SQL has no CREATE FUNCTION clause.
	ErrNotFunctionDefinition = errors.New("SQL does not contain a CREATE FUNCTION statement")
)

var (
	createOrReplaceRegex = regexp.MustCompile(`(?i)\bCREATE\s+OR\s+REPLACE\b`)

	identPattern      = `("(?:[^"]|"")+"|[A-Za-z_][A-Za-z0-9_$]*)`
	createFuncRegex   = regexp.MustCompile(`(?i)\bCREATE\s+(?:OR\s+REPLACE\s+)?FUNCTION\s+` + identPattern + `(?:\s*\.\s*` + identPattern + `)?\s*\(`)
	trailingTerminals = " \t\r\n;"
)

// Normalize trims whitespace and trailing semicolons from a single-statement
// template and rejects templates that still contain a statement separator.
func Normalize(sqlQuery string) (string, error) {
	trimmed := strings.TrimSpace(sqlQuery)
	masked := strings.TrimRight(mask(trimmed, true), trailingTerminals)
	if strings.TrimSpace(masked) == "" {
		return "", ErrEmptyStatement
	}

	if strings.Contains(masked, ";") {
		return "", ErrMultipleStatements
	}

	return trimmed[:len(masked)], nil
}

// HasCreateOrReplace reports whether the statement contains a CREATE OR
// REPLACE clause outside literals and comments.
func HasCreateOrReplace(sqlText string) bool {
	return createOrReplaceRegex.MatchString(mask(sqlText, true))
}

// ParseFunctionName extracts the schema and name from the first CREATE
// FUNCTION clause. Unquoted identifiers are folded to lower case the way
// PostgreSQL folds them; unqualified names land in DefaultSchema.
func ParseFunctionName(sqlText string) (schema, name string, err error) {
	match := createFuncRegex.FindStringSubmatch(mask(sqlText, false))
	if match == nil {
		return "", "", ErrNotFunctionDefinition
	}

	if match[2] == "" {
		return DefaultSchema, normalizeIdentifier(match[1]), nil
	}
	return normalizeIdentifier(match[1]), normalizeIdentifier(match[2]), nil
}

func normalizeIdentifier(ident string) string {
	if strings.HasPrefix(ident, `"`) && strings.HasSuffix(ident, `"`) && len(ident) >= 2 {
		return strings.ReplaceAll(ident[1:len(ident)-1], `""`, `"`)
	}
	return strings.ToLower(ident)
}
