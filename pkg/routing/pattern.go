package routing

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidPattern is returned for route patterns that cannot be parsed.
var ErrInvalidPattern = errors.New("invalid route pattern")

var placeholderNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type segment struct {
	literal string
	param   string // set for placeholder segments
}

func (s segment) isParam() bool {
	return s.param != ""
}

// Pattern is a parsed route such as /widgets/:id. Literal segments compare
// case-sensitively; a :name segment captures one path segment.
type Pattern struct {
	raw          string
	segments     []segment
	placeholders int
}

// ParsePattern parses and normalizes a route pattern. A single trailing slash
// is dropped, so /widgets/ and /widgets are the same pattern.
func ParsePattern(path string) (Pattern, error) {
	if !strings.HasPrefix(path, "/") {
		return Pattern{}, fmt.Errorf("%w: %q must start with '/'", ErrInvalidPattern, path)
	}
	if strings.ContainsAny(path, "?# \t") {
		return Pattern{}, fmt.Errorf("%w: %q contains a query, fragment or whitespace", ErrInvalidPattern, path)
	}

	trimmed := strings.TrimSuffix(path, "/")
	if trimmed == "" {
		return Pattern{raw: "/"}, nil
	}

	parts := strings.Split(trimmed[1:], "/")
	p := Pattern{raw: trimmed, segments: make([]segment, 0, len(parts))}
	seen := make(map[string]bool)

	for _, part := range parts {
		if part == "" {
			return Pattern{}, fmt.Errorf("%w: %q has an empty segment", ErrInvalidPattern, path)
		}
		if !strings.HasPrefix(part, ":") {
			p.segments = append(p.segments, segment{literal: part})
			continue
		}

		name := part[1:]
		if !placeholderNameRegex.MatchString(name) {
			return Pattern{}, fmt.Errorf("%w: placeholder %q is not a valid name", ErrInvalidPattern, part)
		}
		if seen[name] {
			return Pattern{}, fmt.Errorf("%w: placeholder %q appears twice", ErrInvalidPattern, part)
		}
		seen[name] = true
		p.segments = append(p.segments, segment{param: name})
		p.placeholders++
	}

	return p, nil
}

// String returns the normalized pattern text.
func (p Pattern) String() string {
	return p.raw
}

// Placeholders returns the number of placeholder segments.
func (p Pattern) Placeholders() int {
	return p.placeholders
}

// Params returns placeholder names in path order.
func (p Pattern) Params() []string {
	var names []string
	for _, s := range p.segments {
		if s.isParam() {
			names = append(names, s.param)
		}
	}
	return names
}

// HasParam reports whether name is one of the pattern's placeholders.
func (p Pattern) HasParam(name string) bool {
	for _, s := range p.segments {
		if s.param == name {
			return true
		}
	}
	return false
}

// splitPath turns a request path into segments. The root path has none; a
// trailing slash yields a final empty segment.
func splitPath(rawPath string) []string {
	if rawPath == "" || rawPath == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(rawPath, "/"), "/")
}

// match compares request segments against the pattern. Placeholders match any
// non-empty segment, except that the last placeholder also matches an empty
// trailing segment; that capture is left out so the binder sees the value as
// absent.
func (p Pattern) match(parts []string) (map[string]string, bool) {
	if len(parts) != len(p.segments) {
		return nil, false
	}

	values := make(map[string]string, p.placeholders)
	last := len(parts) - 1
	for i, s := range p.segments {
		part := parts[i]
		if !s.isParam() {
			if part != s.literal {
				return nil, false
			}
			continue
		}
		if part == "" {
			if i != last {
				return nil, false
			}
			continue
		}
		values[s.param] = part
	}
	return values, true
}

// overlaps reports whether some request path could match both patterns with
// equal specificity.
func (p Pattern) overlaps(other Pattern) bool {
	if len(p.segments) != len(other.segments) || p.placeholders != other.placeholders {
		return false
	}
	for i, s := range p.segments {
		o := other.segments[i]
		if s.isParam() || o.isParam() {
			continue
		}
		if s.literal != o.literal {
			return false
		}
	}
	return true
}
