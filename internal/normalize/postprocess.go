package normalize

import (
	"regexp"
	"strings"

	"dentalgw/internal/lexicon"
)

var (
	unitSpacing        = regexp.MustCompile(`(?i)(\d+)\s+(mm|cm|ml|%)\b`)
	leadingArticleWord = regexp.MustCompile(`(?i)\b(de|het)\s+(element)\b`)
	repeatedDots       = regexp.MustCompile(`\.{2,}`)
	whitespaceRun      = regexp.MustCompile(`[ \t]+`)
	spaceBeforePunct   = regexp.MustCompile(`[ \t]+([;,.])`)
)

// postprocess is S6: the final cleanup pass over the fully normalized
// text, gated per-rule by the snapshot's postprocess flags.
func postprocess(text string, flags lexicon.PostprocessFlags) string {
	if flags.CompactUnits {
		text = mapUnprotected(text, func(s string) string {
			return unitSpacing.ReplaceAllString(s, "$1$2")
		})
	}
	if flags.DedupeElements {
		text = mapUnprotected(text, dedupeElements)
	}
	if flags.StripLeadingArticle {
		text = mapUnprotected(text, func(s string) string {
			return leadingArticleWord.ReplaceAllString(s, "$2")
		})
	}
	if flags.RemoveSentenceDots {
		text = mapUnprotected(text, func(s string) string {
			return repeatedDots.ReplaceAllString(s, ".")
		})
	}
	return mapUnprotected(text, func(s string) string {
		s = whitespaceRun.ReplaceAllString(s, " ")
		return spaceBeforePunct.ReplaceAllString(s, "$1")
	})
}

// dedupeElements collapses a run of identical "element DD" references
// (whitespace-separated repeats) to a single occurrence, per spec §4.1 S6.
func dedupeElements(seg string) string {
	atoms := tokenizeAtoms(seg)
	var out []atom
	i := 0
	for i < len(atoms) {
		if isElementAtom(atoms, i) {
			code := atoms[i+2].text
			out = append(out, atoms[i], atoms[i+1], atoms[i+2])
			i += 3
			for {
				j := i
				for j < len(atoms) && atoms[j].space {
					j++
				}
				if isElementAtom(atoms, j) && strings.EqualFold(atoms[j+2].text, code) {
					i = j + 3
					continue
				}
				break
			}
			continue
		}
		out = append(out, atoms[i])
		i++
	}
	return joinAtoms(out)
}

func isElementAtom(atoms []atom, i int) bool {
	return i+2 < len(atoms) &&
		!atoms[i].space && strings.EqualFold(atoms[i].text, "element") &&
		atoms[i+1].space &&
		!atoms[i+2].space && isDigits(atoms[i+2].text) && len(atoms[i+2].text) == 2
}
