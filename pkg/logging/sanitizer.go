// Package logging holds helpers that keep credentials and oversized values
// out of log lines.
package logging

import (
	"regexp"
	"strings"
)

const (
	// MaxQueryLogLength is the maximum length of SQL text written to logs.
	MaxQueryLogLength = 200
	// MaxValueLogLength bounds request argument values recorded by the security audit.
	MaxValueLogLength = 256
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	jwtPattern = regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`)

	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`)

	// user:pass@host
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`)

	// PASSWORD 'secret' as written in CREATE/ALTER ROLE statements
	sqlPasswordPattern = regexp.MustCompile(`(?i)(PASSWORD\s+)'(?:[^']|'')*'`)

	whitespacePattern = regexp.MustCompile(`\s+`)
)

// SanitizeConnectionString removes sensitive data from connection strings.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	return connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
}

// SanitizeError sanitizes error messages that might contain sensitive data.
// Use this before logging any error from database operations.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	sanitized = jwtPattern.ReplaceAllString(sanitized, "Bearer "+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = sqlPasswordPattern.ReplaceAllString(sanitized, "${1}'"+RedactedText+"'")
	return connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
}

// SanitizeSQL collapses whitespace, redacts role passwords and truncates
// SQL text so a whole endpoint template fits on one log line.
func SanitizeSQL(sqlText string) string {
	if sqlText == "" {
		return ""
	}

	sanitized := strings.TrimSpace(whitespacePattern.ReplaceAllString(sqlText, " "))
	sanitized = sqlPasswordPattern.ReplaceAllString(sanitized, "${1}'"+RedactedText+"'")
	return TruncateString(sanitized, MaxQueryLogLength)
}

// SanitizeValue bounds an argument value before it is written to the audit log.
func SanitizeValue(value string) string {
	return TruncateString(value, MaxValueLogLength)
}

// TruncateString truncates a string to maxLen bytes and adds ellipsis if needed.
// It never splits a multi-byte character.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
