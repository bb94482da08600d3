package blocks

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var deburrer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Deburr strips diacritical marks from a string ("média" -> "media")
func Deburr(s string) string {
	out, _, err := transform.String(deburrer, s)
	if err != nil {
		return s
	}
	return out
}

// Slugify converts a title into a URL-safe slug: diacritics stripped,
// lowercased, non-alphanumeric runs collapsed to single hyphens.
func Slugify(title string) string {
	s := strings.ToLower(Deburr(title))

	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	return strings.TrimSuffix(b.String(), "-")
}
