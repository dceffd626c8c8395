package sql

import "bytes"

// mask returns a copy of sqlText of identical length in which the contents of
// string literals, dollar-quoted bodies and comments are blanked out. Quoted
// identifiers are blanked too when maskIdentifiers is set. Offsets into the
// result are valid offsets into sqlText.
func mask(sqlText string, maskIdentifiers bool) string {
	b := []byte(sqlText)
	out := make([]byte, len(b))
	copy(out, b)

	blank := func(from, to int) {
		for k := from; k < to && k < len(out); k++ {
			if out[k] != '\n' {
				out[k] = ' '
			}
		}
	}

	i := 0
	for i < len(b) {
		c := b[i]
		switch {
		case c == '-' && i+1 < len(b) && b[i+1] == '-':
			end := bytes.IndexByte(b[i:], '\n')
			if end < 0 {
				end = len(b)
			} else {
				end += i
			}
			blank(i, end)
			i = end

		case c == '/' && i+1 < len(b) && b[i+1] == '*':
			depth := 1
			j := i + 2
			for j < len(b) && depth > 0 {
				switch {
				case b[j] == '/' && j+1 < len(b) && b[j+1] == '*':
					depth++
					j += 2
				case b[j] == '*' && j+1 < len(b) && b[j+1] == '/':
					depth--
					j += 2
				default:
					j++
				}
			}
			blank(i, j)
			i = j

		case c == '\'':
			// E'...' strings allow backslash escapes.
			escapes := i > 0 && (b[i-1] == 'E' || b[i-1] == 'e') && (i < 2 || !isIdentByte(b[i-2]))
			j := i + 1
			for j < len(b) {
				if escapes && b[j] == '\\' {
					j += 2
					continue
				}
				if b[j] == '\'' {
					if j+1 < len(b) && b[j+1] == '\'' {
						j += 2
						continue
					}
					break
				}
				j++
			}
			blank(i+1, j)
			i = j + 1

		case c == '"':
			j := i + 1
			for j < len(b) {
				if b[j] == '"' {
					if j+1 < len(b) && b[j+1] == '"' {
						j += 2
						continue
					}
					break
				}
				j++
			}
			if maskIdentifiers {
				blank(i+1, j)
			}
			i = j + 1

		case c == '$' && (i == 0 || !isIdentByte(b[i-1])):
			tagEnd := dollarTagEnd(b, i)
			if tagEnd < 0 {
				i++
				continue
			}
			tag := b[i : tagEnd+1]
			end := len(b)
			if idx := bytes.Index(b[tagEnd+1:], tag); idx >= 0 {
				end = tagEnd + 1 + idx
			}
			blank(tagEnd+1, end)
			i = end + len(tag)

		default:
			i++
		}
	}

	return string(out)
}

// dollarTagEnd returns the index of the closing '$' of a dollar-quote tag that
// starts at b[start], or -1 if b[start:] does not open a dollar quote.
func dollarTagEnd(b []byte, start int) int {
	j := start + 1
	if j >= len(b) {
		return -1
	}
	if b[j] == '$' {
		return j
	}
	if !isIdentStart(b[j]) {
		return -1
	}
	for j < len(b) && isIdentByte(b[j]) {
		j++
	}
	if j < len(b) && b[j] == '$' {
		return j
	}
	return -1
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
