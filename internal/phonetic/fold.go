package phonetic

import (
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// FoldRune case-folds and accent-folds a single rune by NFD-decomposing
// it and dropping any trailing combining marks, per spec §4.2's "fixed
// table derived from NFD + combining-mark removal". Dutch diacritics
// (é, ë, ï, ü, ...) decompose to exactly one base rune plus one combining
// mark, so this is rune-count preserving — callers rely on that to keep
// byte-offset bookkeeping simple when mapping folded matches back onto
// the original text.
func FoldRune(r rune) rune {
	decomposed := norm.NFD.String(string(r))
	for _, d := range decomposed {
		if !unicode.Is(unicode.Mn, d) {
			return unicode.ToLower(d)
		}
	}
	return unicode.ToLower(r)
}

// Fold case-folds and accent-folds every rune in s, preserving rune count.
func Fold(s string) string {
	rs := []rune(s)
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[i] = FoldRune(r)
	}
	return string(out)
}
