package util

import "strings"

// SanitizeText strips NUL bytes and other non-printing control characters
// that PDF extractors leak and Postgres text columns reject. Newlines, tabs
// and carriage returns are kept.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		switch {
		case ch == '\n' || ch == '\r' || ch == '\t':
			b.WriteRune(ch)
		case ch < 0x20:
			// drop NUL and the rest of the C0 range
		default:
			b.WriteRune(ch)
		}
	}
	return strings.TrimSpace(b.String())
}
