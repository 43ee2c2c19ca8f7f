// Package header turns raw CSV header text into the canonical keys the rest of
// the pipeline operates on, and guarantees that duplicate headers survive
// parsing as distinct columns.
package header

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// deaccent decomposes to NFD, drops combining marks, and recomposes to NFC.
// "Resolución" and "Resolucion" sanitize to the same key.
var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Sanitize converts free-form header text into a canonical identifier:
// lowercase ASCII letters and digits with single underscores between runs,
// no leading or trailing underscore.
//
// Sanitize is pure and deterministic. An empty result means the header is
// unusable (e.g. it was all punctuation); callers record those instead of
// guessing a name.
func Sanitize(text string) string {
	s := strings.TrimSpace(text)
	if s == "" {
		return ""
	}

	if out, _, err := transform.String(deaccent, s); err == nil {
		s = out
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		// Any run of other characters collapses to one separator.
		pendingSep = true
	}
	return b.String()
}
