package fees

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripDiacritics removes combining marks ("é" becomes "e").
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeLabel lower-cases s, strips diacritics and collapses whitespace.
// Punctuation is kept so that labels like "P&L" stay recognisable.
func NormalizeLabel(s string) string {
	s = strings.ToLower(StripDiacritics(s))
	return strings.Join(strings.Fields(s), " ")
}
