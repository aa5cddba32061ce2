package engine

import "strings"

// preprocessSource rewrites DSL source into a form zygomys reads. The source
// is split into atoms, string literals and comments; only atoms change:
//
//	:one-vertex-culled  ->  "__kw_one-vertex-culled"
//	clip-deform         ->  clip_deform
//	; comment           ->  // comment
//
// Keywords become strings so they never collide with user symbols, and
// hyphens between letters would otherwise read as subtraction.
func preprocessSource(source string) string {
	var out strings.Builder
	out.Grow(len(source) + len(source)/4)

	for rest := source; rest != ""; {
		var n int
		switch c := rest[0]; {
		case c == '"':
			n = quotedLen(rest, true)
			out.WriteString(rest[:n])
		case c == '`':
			n = quotedLen(rest, false)
			out.WriteString(rest[:n])
		case c == ';':
			n = strings.IndexByte(rest, '\n')
			if n < 0 {
				n = len(rest)
			}
			out.WriteString("//")
			out.WriteString(strings.TrimLeft(rest[:n], ";"))
		case isDelimiter(c):
			n = 1
			out.WriteByte(c)
		default:
			n = strings.IndexAny(rest, delimiters)
			if n < 0 {
				n = len(rest)
			}
			out.WriteString(rewriteAtom(rest[:n]))
		}
		rest = rest[n:]
	}
	return out.String()
}

// delimiters end an atom.
const delimiters = " \t\r\n()[]{}\"`;'"

func isDelimiter(c byte) bool {
	return strings.IndexByte(delimiters, c) >= 0
}

// quotedLen returns the length of the string literal at the start of s,
// closing quote included. An unterminated literal runs to the end of s.
func quotedLen(s string, escapes bool) int {
	quote := s[0]
	for i := 1; i < len(s); i++ {
		switch {
		case escapes && s[i] == '\\':
			i++
		case s[i] == quote:
			return i + 1
		}
	}
	return len(s)
}

// rewriteAtom converts one atom. Numbers, operators and := are left alone.
func rewriteAtom(a string) string {
	if len(a) > 1 && a[0] == ':' && isLetter(a[1]) {
		return `"` + kwPrefix + a[1:] + `"`
	}
	if !isLetter(a[0]) || strings.IndexByte(a, '-') < 0 {
		return a
	}
	b := []byte(a)
	for i := 1; i+1 < len(b); i++ {
		if b[i] == '-' && isLetter(b[i+1]) {
			b[i] = '_'
		}
	}
	return string(b)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
