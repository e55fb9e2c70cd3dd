package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// unicodeNormalize is S0.5: NFC-normalize every unprotected run and turn
// non-breaking spaces into ordinary spaces so later whitespace-sensitive
// stages see one consistent space character.
func unicodeNormalize(text string) string {
	return mapUnprotected(text, func(s string) string {
		s = strings.ReplaceAll(s, " ", " ")
		return norm.NFC.String(s)
	})
}

var multiSpace = regexp.MustCompile(`[ \t]{2,}`)

// preprocess is S1: pad separator characters that sit directly between two
// digits with a space on each side, then collapse resulting whitespace
// runs. Operating per-unprotected-run keeps a protected word's own
// separators (if any) untouched.
func preprocess(text string, separators map[rune]struct{}) string {
	return mapUnprotected(text, func(s string) string {
		runes := []rune(s)
		var b strings.Builder
		for i, r := range runes {
			if _, isSep := separators[r]; isSep &&
				i > 0 && i < len(runes)-1 &&
				unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]) {
				b.WriteByte(' ')
				b.WriteRune(r)
				b.WriteByte(' ')
				continue
			}
			b.WriteRune(r)
		}
		return multiSpace.ReplaceAllString(b.String(), " ")
	})
}
