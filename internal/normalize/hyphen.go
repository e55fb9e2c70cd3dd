package normalize

import (
	"regexp"
	"strings"

	"dentalgw/internal/lexicon"
	"dentalgw/internal/phonetic"
)

// numericRangePattern matches a bare digit-hyphen-digit span (spec
// §4.1 S4.5 "numeric ranges are left intact"), e.g. "14-16".
var numericRangePattern = regexp.MustCompile(`^\d+-\d+$`)

// hyphenPrepass is S4.5. It runs two independent rewrites over
// unprotected text:
//
//   - a word written solid where the lexicon's canonical form is
//     hyphenated (dictation frequently drops the hyphen, e.g.
//     "periapicaal" for "peri-apicaal") is rewritten to the hyphenated
//     canonical, so S5 scores against the already-correct form instead
//     of having to bridge the hyphen itself;
//   - conversely, a token that already carries a hyphen but is not
//     itself a known canonical and is not a numeric range is split on
//     the hyphen into two space-separated tokens, per the stage's
//     literal contract.
func hyphenPrepass(text string, snap *lexicon.Snapshot) string {
	return mapUnprotected(text, func(seg string) string {
		return hyphenPrepassSegment(seg, snap)
	})
}

func hyphenPrepassSegment(seg string, snap *lexicon.Snapshot) string {
	atoms := tokenizeAtoms(seg)
	var out []atom
	for _, a := range atoms {
		if a.space {
			out = append(out, a)
			continue
		}
		if isLetters(a.text) {
			if canon, ok := solidToHyphenatedCanonical(a.text, snap); ok {
				out = append(out, atom{text: canon})
				continue
			}
			out = append(out, a)
			continue
		}
		if split, ok := splitNonCanonicalHyphenated(a.text, snap); ok {
			out = append(out, split...)
			continue
		}
		out = append(out, a)
	}
	return joinAtoms(out)
}

// solidToHyphenatedCanonical looks for a hyphenated canonical whose
// letters, with the hyphen removed, match tok's folded form.
func solidToHyphenatedCanonical(tok string, snap *lexicon.Snapshot) (string, bool) {
	folded := phonetic.Fold(tok)
	if _, ok := snap.Canonicals[folded]; ok {
		return "", false
	}
	for canon := range snap.Canonicals {
		foldedCanon := phonetic.Fold(canon)
		if !strings.Contains(foldedCanon, "-") {
			continue
		}
		if strings.ReplaceAll(foldedCanon, "-", "") == folded {
			return canon, true
		}
	}
	return "", false
}

// splitNonCanonicalHyphenated implements S4.5's literal contract: a
// hyphenated token not present in canonicals and not a numeric range is
// split on the hyphen into two tokens separated by a space.
func splitNonCanonicalHyphenated(tok string, snap *lexicon.Snapshot) ([]atom, bool) {
	if !strings.Contains(tok, "-") {
		return nil, false
	}
	if numericRangePattern.MatchString(tok) {
		return nil, false
	}
	if _, ok := snap.Canonicals[tok]; ok {
		return nil, false
	}
	folded := phonetic.Fold(tok)
	if _, ok := snap.Canonicals[folded]; ok {
		return nil, false
	}
	for c := range snap.Canonicals {
		if phonetic.Fold(c) == folded {
			return nil, false
		}
	}
	left, right, ok := strings.Cut(tok, "-")
	if !ok || left == "" || right == "" {
		return nil, false
	}
	return []atom{{text: left}, {text: " ", space: true}, {text: right}}, true
}
