package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripMarks decomposes text (NFKD) and drops combining marks, so "Æther"
// stays intact while "Séance" becomes "Seance". Case is preserved.
func StripMarks(text string) string {
	if text == "" {
		return ""
	}
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}

// Normalize prepares a name for comparison: marks stripped, lowercased,
// punctuation replaced with spaces, and whitespace collapsed.
func Normalize(text string) string {
	stripped := strings.ToLower(StripMarks(text))
	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
