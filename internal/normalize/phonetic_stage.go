package normalize

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"dentalgw/internal/lexicon"
	"dentalgw/internal/phonetic"
)

// genericDentalPrefixes are prefixes common enough across canonical dental
// terms that matching them alone must not carry a fuzzy match -- the core
// after the prefix still has to agree (spec §4.1 S5 generic-prefix guard).
var genericDentalPrefixes = []string{
	"inter", "mesio", "disto", "sub", "supra", "peri", "pre", "post",
	"extra", "intra", "re", "co",
}

// perWordMinimum is S5's per-word floor inside a multi-word window.
const perWordMinimum = 0.60

// windowAverageMinimum is S5's average-score floor for a window of the
// given word count: bigrams need 0.70, three or more words need 0.75.
func windowAverageMinimum(words int) float64 {
	if words >= 3 {
		return 0.75
	}
	return 0.70
}

// phoneticNormalize is S5: every unprotected, non-numeric token or
// multi-token window not already a known canonical is scored against the
// canonical set with phonetic.Score/Best, subject to the
// per-word/average-score window gates plus two guards that reject a
// nominally-passing score: the morphology guard (a bare Latin-suffix
// swap must leave an exact core behind) and the generic-prefix guard (a
// shared generic prefix whose remaining core is at least 5 characters
// needs that core within 20% edit distance).
func phoneticNormalize(text string, snap *lexicon.Snapshot) string {
	if len(snap.Canonicals) == 0 {
		return text
	}
	candidates := make([]string, 0, len(snap.Canonicals))
	byWordCount := map[int][][]string{}
	for c := range snap.Canonicals {
		candidates = append(candidates, c)
		if words := strings.Fields(c); len(words) >= 2 {
			byWordCount[len(words)] = append(byWordCount[len(words)], words)
		}
	}
	return mapUnprotected(text, func(seg string) string {
		return phoneticNormalizeSegment(seg, snap, candidates, byWordCount)
	})
}

func phoneticNormalizeSegment(seg string, snap *lexicon.Snapshot, candidates []string, byWordCount map[int][][]string) string {
	atoms := tokenizeAtoms(seg)
	var out []atom
	i := 0
	for i < len(atoms) {
		if atoms[i].space || !isLetters(atoms[i].text) {
			out = append(out, atoms[i])
			i++
			continue
		}

		if replacement, span, ok := bestWindowMatch(atoms, i, snap, byWordCount); ok {
			out = append(out, atom{text: replacement})
			i += span
			continue
		}

		if replacement, ok := bestTokenMatch(atoms[i].text, snap, candidates); ok {
			out = append(out, atom{text: replacement})
			i++
			continue
		}

		out = append(out, atoms[i])
		i++
	}
	return joinAtoms(out)
}

// bestTokenMatch is S5's single-token path.
func bestTokenMatch(tok string, snap *lexicon.Snapshot, candidates []string) (string, bool) {
	if utf8.RuneCountInString(tok) < 3 {
		return "", false
	}
	folded := phonetic.Fold(tok)
	if _, ok := snap.Canonicals[tok]; ok {
		return "", false
	}
	if _, ok := snap.Canonicals[folded]; ok {
		return "", false
	}
	res, ok := phonetic.Best(tok, candidates, snap.PhoneticThreshold)
	if !ok {
		return "", false
	}
	if !passesMorphologyGuard(tok, res.Candidate) || !passesGenericPrefixGuard(tok, res.Candidate) {
		return "", false
	}
	return res.Candidate, true
}

// bestWindowMatch tries every multi-word canonical, longest word count
// first (mirroring S4's collectWordWindow greediness), scoring each
// candidate phrase word-by-word against the window starting at i (spec
// §4.1 S5 "multi-token window"). A candidate only qualifies if its word
// count matches the window exactly (require_all_words), every word
// clears the per-word minimum, and the average clears the window's
// average minimum and the snapshot's phonetic_threshold. It returns the
// winning candidate phrase and how many atoms (words and interleaved
// spaces) the window spans.
func bestWindowMatch(atoms []atom, i int, snap *lexicon.Snapshot, byWordCount map[int][][]string) (string, int, bool) {
	for w := snap.MaxVariantWords; w >= 2; w-- {
		candWordLists, ok := byWordCount[w]
		if !ok {
			continue
		}
		window, span, ok := collectWordWindow(atoms, i, w)
		if !ok {
			continue
		}
		tokens := make([]string, len(window))
		for k, a := range window {
			tokens[k] = a.text
		}

		var best string
		bestScore := -1.0
		found := false
		for _, candWords := range candWordLists {
			score, ok := scoreWindow(tokens, candWords, snap.PhoneticThreshold)
			if !ok {
				continue
			}
			candidate := strings.Join(candWords, " ")
			if !found || windowBetterTie(candidate, score, best, bestScore) {
				best, bestScore, found = candidate, score, true
			}
		}
		if found {
			return best, span, true
		}
	}
	return "", 0, false
}

// scoreWindow scores tokens against candWords position by position,
// enforcing S5's per-word minimum, the guard clauses (applied per
// position, same as the single-token path), the window's average
// minimum, and the same phonetic_threshold acceptance gate a single
// token uses.
func scoreWindow(tokens, candWords []string, threshold float64) (float64, bool) {
	if len(tokens) != len(candWords) {
		return 0, false
	}
	sum := 0.0
	for i, tok := range tokens {
		cand := candWords[i]
		s := phonetic.Score(tok, cand, threshold)
		if s < perWordMinimum {
			return 0, false
		}
		if !passesMorphologyGuard(tok, cand) || !passesGenericPrefixGuard(tok, cand) {
			return 0, false
		}
		sum += s
	}
	avg := sum / float64(len(tokens))
	if avg < windowAverageMinimum(len(tokens)) || avg < threshold {
		return 0, false
	}
	return avg, true
}

// windowBetterTie breaks ties between window candidates the same way
// phonetic.Best breaks ties between single-token candidates: higher
// score first, then longer candidate, then lexicographic order.
func windowBetterTie(candidate string, score float64, currentBest string, currentScore float64) bool {
	if score != currentScore {
		return score > currentScore
	}
	lc, lb := utf8.RuneCountInString(candidate), utf8.RuneCountInString(currentBest)
	if lc != lb {
		return lc > lb
	}
	return candidate < currentBest
}

// passesMorphologyGuard rejects a match that is carried only by a
// Latin-suffix swap (-eer/-air/-aal -> -um/-us): the remainder of the
// word, with the suffix stripped from each side, must match exactly.
func passesMorphologyGuard(token, candidate string) bool {
	ft, fc := phonetic.Fold(token), phonetic.Fold(candidate)
	for _, ts := range [...]string{"eer", "air", "aal"} {
		if !strings.HasSuffix(ft, ts) {
			continue
		}
		for _, cs := range [...]string{"um", "us"} {
			if strings.HasSuffix(fc, cs) {
				return strings.TrimSuffix(ft, ts) == strings.TrimSuffix(fc, cs)
			}
		}
	}
	return true
}

// passesGenericPrefixGuard rejects a match where a shared generic prefix
// does the work: if both token and candidate share one of
// genericDentalPrefixes, the core after the prefix must independently be
// within 20% edit distance once it's at least 5 characters long.
func passesGenericPrefixGuard(token, candidate string) bool {
	ft, fc := phonetic.Fold(token), phonetic.Fold(candidate)
	for _, p := range genericDentalPrefixes {
		if !strings.HasPrefix(fc, p) || !strings.HasPrefix(ft, p) {
			continue
		}
		tokCore := strings.TrimPrefix(ft, p)
		candCore := strings.TrimPrefix(fc, p)
		if utf8.RuneCountInString(candCore) < 5 {
			return true
		}
		dist := levenshtein.ComputeDistance(tokCore, candCore)
		maxLen := utf8.RuneCountInString(candCore)
		if n := utf8.RuneCountInString(tokCore); n > maxLen {
			maxLen = n
		}
		return float64(dist)/float64(maxLen) <= 0.2
	}
	return true
}
