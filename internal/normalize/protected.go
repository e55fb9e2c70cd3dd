package normalize

import (
	"sort"
	"strings"
)

// wrapProtected is S0: every occurrence of a protected word, matched
// case-insensitively on word boundaries, is wrapped in sentinels so later
// stages leave it untouched. Longer words are matched first so a protected
// phrase is never partially shadowed by a shorter protected substring.
func wrapProtected(text string, words []string) string {
	if len(words) == 0 {
		return text
	}
	sorted := append([]string(nil), words...)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	runes := []rune(text)
	var b strings.Builder
	i := 0
	for i < len(runes) {
		if matched, n := matchProtected(runes, i, sorted); matched {
			b.WriteRune(sentinelOpen)
			b.WriteString(string(runes[i : i+n]))
			b.WriteRune(sentinelClose)
			i += n
			continue
		}
		b.WriteRune(runes[i])
		i++
	}
	return b.String()
}

func matchProtected(runes []rune, i int, sorted []string) (bool, int) {
	for _, w := range sorted {
		wr := []rune(w)
		n := len(wr)
		if n == 0 || i+n > len(runes) {
			continue
		}
		if !strings.EqualFold(string(runes[i:i+n]), w) {
			continue
		}
		if i > 0 && isWordRune(runes[i-1]) {
			continue
		}
		if i+n < len(runes) && isWordRune(runes[i+n]) {
			continue
		}
		return true, n
	}
	return false, 0
}

// unwrapProtected is S7: sentinels are stripped, leaving the original
// protected text in place.
func unwrapProtected(text string) string {
	segs := splitProtected(text)
	var b strings.Builder
	for _, s := range segs {
		if !s.protected {
			b.WriteString(s.text)
			continue
		}
		inner := []rune(s.text)
		if len(inner) >= 2 {
			b.WriteString(string(inner[1 : len(inner)-1]))
		} else {
			b.WriteString(s.text)
		}
	}
	return b.String()
}
