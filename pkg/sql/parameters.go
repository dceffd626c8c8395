package sql

import (
	"fmt"
	"regexp"
	"strconv"
)

// parameterRegex matches {{parameter_name}} placeholders in SQL templates.
// Parameter names must start with a letter or underscore, followed by any
// number of alphanumeric characters or underscores.
var parameterRegex = regexp.MustCompile(`\{\{([a-zA-Z_]\w*)\}\}`)

// ordinalRegex matches PostgreSQL positional parameters ($1, $2, ...).
var ordinalRegex = regexp.MustCompile(`\$(\d+)`)

// ExtractParameters finds all {{param}} placeholders in SQL and returns
// a deduplicated list of parameter names in order of first appearance.
// Placeholders inside string literals and comments are not parameters.
//
// Example:
//
//	sql := "SELECT * FROM orders WHERE customer_id = {{customer_id}} AND total > {{min_total}}"
//	params := ExtractParameters(sql)
//	// params == []string{"customer_id", "min_total"}
func ExtractParameters(sqlQuery string) []string {
	matches := parameterRegex.FindAllStringSubmatch(mask(sqlQuery, true), -1)
	seen := make(map[string]bool)
	var params []string

	for _, match := range matches {
		name := match[1]
		if !seen[name] {
			seen[name] = true
			params = append(params, name)
		}
	}

	return params
}

// HasNamedParameters reports whether the template binds values by name.
func HasNamedParameters(sqlQuery string) bool {
	return len(ExtractParameters(sqlQuery)) > 0
}

// MaxOrdinal returns the highest $N placeholder used outside literals and
// comments, or 0 when the template has none.
func MaxOrdinal(sqlQuery string) int {
	highest := 0
	for _, match := range ordinalRegex.FindAllStringSubmatch(mask(sqlQuery, true), -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest
}

// ValidateTemplate checks a template against the declared parameter names.
//
// Returns an error if:
//   - the template mixes {{name}} and $N placeholders
//   - a {{param}} placeholder is used in SQL but not declared
//   - a {{param}} placeholder sits inside a string literal
//   - an ordinal template references more positions than parameters declared
func ValidateTemplate(sqlQuery string, declared []string) error {
	named := ExtractParameters(sqlQuery)
	maxOrdinal := MaxOrdinal(sqlQuery)

	if len(named) > 0 && maxOrdinal > 0 {
		return fmt.Errorf("SQL mixes {{name}} and $N placeholders; use one style")
	}

	if problems := FindParametersInStringLiterals(sqlQuery); len(problems) > 0 {
		return fmt.Errorf("parameter {{%s}} is inside a string literal and would not be bound", problems[0])
	}

	declaredSet := make(map[string]bool, len(declared))
	for _, name := range declared {
		declaredSet[name] = true
	}

	for _, name := range named {
		if !declaredSet[name] {
			return fmt.Errorf("parameter {{%s}} used in SQL but not defined", name)
		}
	}

	if len(named) == 0 && maxOrdinal > len(declared) {
		return fmt.Errorf("SQL references $%d but only %d parameters are declared", maxOrdinal, len(declared))
	}

	return nil
}

// FindParametersInStringLiterals checks for {{param}} placeholders that appear
// inside SQL string literals (single quotes). Parameters inside string literals
// won't work as expected because PostgreSQL will treat $1 as literal text, not
// as a parameter placeholder.
//
// Example:
//
//	sql := "SELECT 'Hello {{name}}' FROM users"
//	problems := FindParametersInStringLiterals(sql)
//	// problems == []string{"name"}
func FindParametersInStringLiterals(sqlQuery string) []string {
	var problems []string
	seen := make(map[string]bool)

	inString := false
	stringStart := 0
	i := 0

	for i < len(sqlQuery) {
		ch := sqlQuery[i]

		if ch == '\'' {
			if inString {
				// Escaped quote ('')
				if i+1 < len(sqlQuery) && sqlQuery[i+1] == '\'' {
					i += 2
					continue
				}
				stringContent := sqlQuery[stringStart+1 : i]
				for _, match := range parameterRegex.FindAllStringSubmatch(stringContent, -1) {
					name := match[1]
					if !seen[name] {
						seen[name] = true
						problems = append(problems, name)
					}
				}
				inString = false
			} else {
				inString = true
				stringStart = i
			}
		}
		i++
	}

	return problems
}

// SubstituteParameters replaces {{param}} placeholders with PostgreSQL positional
// parameters ($1, $2, etc.) and returns the prepared SQL along with ordered
// values for binding. A name used several times reuses its position.
//
// Example:
//
//	sql := "SELECT * FROM orders WHERE customer_id = {{customer_id}} AND total > {{min_total}}"
//	values := map[string]any{"customer_id": "550e8400-e29b-41d4-a716-446655440000", "min_total": nil}
//
//	preparedSQL, orderedValues, err := SubstituteParameters(sql, values)
//	// preparedSQL == "SELECT * FROM orders WHERE customer_id = $1 AND total > $2"
//	// orderedValues == []any{"550e8400-e29b-41d4-a716-446655440000", nil}
//
// Every placeholder must have an entry in values (nil binds SQL NULL).
func SubstituteParameters(sqlQuery string, values map[string]any) (string, []any, error) {
	masked := mask(sqlQuery, true)
	locations := parameterRegex.FindAllStringSubmatchIndex(masked, -1)
	if len(locations) == 0 {
		return sqlQuery, nil, nil
	}

	var orderedValues []any
	positions := make(map[string]int)
	out := make([]byte, 0, len(sqlQuery))
	last := 0

	for _, loc := range locations {
		name := masked[loc[2]:loc[3]]

		pos, exists := positions[name]
		if !exists {
			value, supplied := values[name]
			if !supplied {
				return "", nil, fmt.Errorf("no value bound for parameter {{%s}}", name)
			}
			orderedValues = append(orderedValues, value)
			pos = len(orderedValues)
			positions[name] = pos
		}

		out = append(out, sqlQuery[last:loc[0]]...)
		out = append(out, '$')
		out = strconv.AppendInt(out, int64(pos), 10)
		last = loc[1]
	}
	out = append(out, sqlQuery[last:]...)

	return string(out), orderedValues, nil
}
