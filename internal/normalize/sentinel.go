// Package normalize implements the deterministic dental text-normalization
// pipeline (spec §4.1): S0 through S7, run in order against a
// lexicon.Snapshot.
package normalize

import (
	"strings"
	"unicode"
)

// Sentinel code points wrap protected spans during S0-S7 so every later
// stage can skip them untouched (spec §3, §9).
const (
	sentinelOpen  = '￰'
	sentinelClose = '￱'
)

type segment struct {
	text      string
	protected bool
}

// splitProtected breaks text into alternating protected/unprotected runs.
// Protected runs include their bounding sentinels.
func splitProtected(text string) []segment {
	runes := []rune(text)
	var segs []segment
	start := 0
	i := 0
	for i < len(runes) {
		if runes[i] == sentinelOpen {
			if start < i {
				segs = append(segs, segment{text: string(runes[start:i])})
			}
			j := i + 1
			for j < len(runes) && runes[j] != sentinelClose {
				j++
			}
			end := j
			if j < len(runes) {
				end = j + 1
			}
			segs = append(segs, segment{text: string(runes[i:end]), protected: true})
			i = end
			start = i
			continue
		}
		i++
	}
	if start < len(runes) {
		segs = append(segs, segment{text: string(runes[start:])})
	}
	return segs
}

// mapUnprotected applies f to every unprotected run of text, leaving
// protected runs (sentinels included) byte-for-byte intact.
func mapUnprotected(text string, f func(string) string) string {
	segs := splitProtected(text)
	var b strings.Builder
	for _, s := range segs {
		if s.protected {
			b.WriteString(s.text)
		} else {
			b.WriteString(f(s.text))
		}
	}
	return b.String()
}

func isWordRune(r rune) bool {
	return r == '\'' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
