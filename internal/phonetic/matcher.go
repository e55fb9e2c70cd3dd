// Package phonetic computes similarity between a token and a set of
// canonical terms using the folded-Levenshtein/Soundex blend from spec
// §4.2. It never consults a Snapshot directly — the pipeline supplies the
// candidate set.
package phonetic

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Result is a single scored candidate.
type Result struct {
	Candidate string
	Score     float64
}

// soundexBonusBand is how far below threshold the base score may sit and
// still earn the Soundex bonus (spec §4.1 S5).
const soundexBonusBand = 0.06

// soundexBonus is the fixed bonus magnitude (spec §4.1 S5).
const soundexBonus = 0.05

// Score computes the base Levenshtein similarity between token and
// candidate after folding both, then applies the gated Soundex bonus.
func Score(token, candidate string, threshold float64) float64 {
	ft, fc := Fold(token), Fold(candidate)
	dist := levenshtein.ComputeDistance(ft, fc)

	maxLen := utf8.RuneCountInString(ft)
	if n := utf8.RuneCountInString(fc); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 0
	}

	base := 1 - float64(dist)/float64(maxLen)
	if base >= threshold-soundexBonusBand && Soundex(ft) == Soundex(fc) {
		base += soundexBonus
		if base > 1.0 {
			base = 1.0
		}
	}
	return base
}

// Best returns the highest-scoring candidate at or above threshold,
// breaking ties by longer candidate then lexicographic order (spec §4.1
// S5's final acceptance rule). The second return is false if nothing
// reaches threshold.
func Best(token string, candidates []string, threshold float64) (Result, bool) {
	var best Result
	found := false
	for _, c := range candidates {
		s := Score(token, c, threshold)
		if s < threshold {
			continue
		}
		if !found || betterTie(c, s, best.Candidate, best.Score) {
			best = Result{Candidate: c, Score: s}
			found = true
		}
	}
	return best, found
}

func betterTie(candidate string, score float64, currentBest string, currentScore float64) bool {
	if score != currentScore {
		return score > currentScore
	}
	lc, lb := utf8.RuneCountInString(candidate), utf8.RuneCountInString(currentBest)
	if lc != lb {
		return lc > lb
	}
	return candidate < currentBest
}
