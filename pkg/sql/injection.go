package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a bound value that looks like SQL.
// Bound values never reach statement text, so a hit is a signal for the
// security audit log rather than a reason to refuse the request.
type InjectionCheckResult struct {
	ParamName   string
	Fingerprint string // libinjection fingerprint of the detected pattern
	ParamValue  string
}

// CheckParameterForInjection runs libinjection over a string value.
// Non-string values cannot carry SQL and always return nil.
//
// Example:
//
//	result := CheckParameterForInjection("search", "'; DROP TABLE users--")
//	// result.ParamName == "search", result.Fingerprint == "s&1c" (or similar)
func CheckParameterForInjection(paramName string, value any) *InjectionCheckResult {
	strValue, ok := value.(string)
	if !ok {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(strValue)
	if !isSQLi {
		return nil
	}

	return &InjectionCheckResult{
		ParamName:   paramName,
		Fingerprint: string(fingerprint),
		ParamValue:  strValue,
	}
}

// CheckAllParameters checks every named value and returns the suspicious ones
// in the order given.
func CheckAllParameters(names []string, values []any) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for i, name := range names {
		if i >= len(values) {
			break
		}
		if result := CheckParameterForInjection(name, values[i]); result != nil {
			results = append(results, result)
		}
	}
	return results
}
