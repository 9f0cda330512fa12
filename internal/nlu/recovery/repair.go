// internal/nlu/recovery/repair.go
package recovery

import "strings"

// RepairSeparators inserts the commas a generator tends to drop: after a
// string, a bare literal, '}' or ']' when the next token opens a string.
// Bytes inside string literals are never touched, so valid JSON passes
// through unchanged.
func RepairSeparators(s string) string {
	var (
		b         strings.Builder
		ws        strings.Builder
		inString  bool
		escaped   bool
		inLiteral bool
		pending   bool
	)
	b.Grow(len(s) + 8)

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
				pending = true
			}
			continue
		}

		switch c {
		case ' ', '\t', '\n', '\r':
			if inLiteral {
				inLiteral = false
				pending = true
			}
			ws.WriteByte(c)
			continue
		case '"':
			if inLiteral || pending {
				b.WriteByte(',')
			}
			b.WriteString(ws.String())
			ws.Reset()
			b.WriteByte(c)
			inString, inLiteral, pending = true, false, false
			continue
		}

		b.WriteString(ws.String())
		ws.Reset()
		b.WriteByte(c)

		switch c {
		case '}', ']':
			inLiteral, pending = false, true
		case ',', ':', '{', '[':
			inLiteral, pending = false, false
		default:
			inLiteral, pending = true, false
		}
	}
	b.WriteString(ws.String())
	return b.String()
}

// endsInString reports whether s stops inside an unterminated string.
func endsInString(s string) bool {
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			continue
		}
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			inString = false
		}
	}
	return inString
}
