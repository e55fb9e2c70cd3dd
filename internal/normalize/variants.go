package normalize

import (
	"strings"

	"dentalgw/internal/lexicon"
	"dentalgw/internal/phonetic"
)

// variantReplace is S4: consecutive word-token windows (longest first, up
// to the snapshot's longest known phrase) are folded, joined on a single
// space, and looked up in the variant table. A hit replaces the whole
// window with its canonical form.
func variantReplace(text string, snap *lexicon.Snapshot) string {
	if snap.MaxVariantWords <= 0 || len(snap.Variants) == 0 {
		return text
	}
	return mapUnprotected(text, func(seg string) string {
		return variantReplaceSegment(seg, snap)
	})
}

func variantReplaceSegment(seg string, snap *lexicon.Snapshot) string {
	atoms := tokenizeAtoms(seg)
	var out []atom
	i := 0
	for i < len(atoms) {
		if atoms[i].space || !isLetters(atoms[i].text) {
			out = append(out, atoms[i])
			i++
			continue
		}

		matched := false
		for w := snap.MaxVariantWords; w >= 1; w-- {
			window, span, ok := collectWordWindow(atoms, i, w)
			if !ok {
				continue
			}
			folded := make([]string, len(window))
			for k, a := range window {
				folded[k] = phonetic.Fold(a.text)
			}
			key := strings.Join(folded, " ")
			canon, found := snap.Variants[key]
			if !found {
				continue
			}
			out = append(out, atom{text: canon})
			i += span
			matched = true
			break
		}
		if matched {
			continue
		}
		out = append(out, atoms[i])
		i++
	}
	return joinAtoms(out)
}

// collectWordWindow gathers the next w letter-atoms starting at i,
// allowing single whitespace atoms between them, and reports how many
// atoms (words and interleaved spaces) the window spans.
func collectWordWindow(atoms []atom, i, w int) ([]atom, int, bool) {
	var words []atom
	j := i
	for len(words) < w {
		if j >= len(atoms) {
			return nil, 0, false
		}
		if atoms[j].space {
			j++
			continue
		}
		if !isLetters(atoms[j].text) {
			return nil, 0, false
		}
		words = append(words, atoms[j])
		j++
	}
	return words, j - i, true
}
