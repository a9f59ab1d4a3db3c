package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeString trims input, drops control characters and caps the result
// at maxLen bytes without splitting a multi-byte character. Customer names
// end up on kitchen tickets and in gateway descriptions, so newlines and tabs
// become single spaces.
func SanitizeString(input string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(input))
	lastSpace := false
	for _, r := range strings.TrimSpace(input) {
		if r == utf8.RuneError {
			continue
		}
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteByte(' ')
			}
			lastSpace = true
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		lastSpace = false
		b.WriteRune(r)
	}

	out := b.String()
	if maxLen <= 0 || len(out) <= maxLen {
		return out
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(out[cut]) {
		cut--
	}
	return strings.TrimSpace(out[:cut])
}
