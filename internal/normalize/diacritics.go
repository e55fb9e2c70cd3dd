package normalize

import (
	"dentalgw/internal/lexicon"
	"dentalgw/internal/phonetic"
)

// diacriticsRestore is S5.5: build fold(c) -> c over canonicals, then
// rewrite any single word left untouched by S4/S5 whose fold equals
// fold(c) for exactly one c to that exact, correctly-accented form. A
// word whose fold is a variant key is first replaced by that variant's
// canonical instead. This catches
// single-word accent drift (e.g. a dictation engine dropping a
// diaeresis) that the multi-word variant lookup in S4 does not target.
func diacriticsRestore(text string, snap *lexicon.Snapshot) string {
	byFold := foldedCanonicals(snap)
	return mapUnprotected(text, func(seg string) string {
		return diacriticsRestoreSegment(seg, snap, byFold)
	})
}

// foldedCanonicals builds fold(c) -> c over snap.Canonicals once per
// call. A fold collision (two distinct canonicals folding to the same
// key) removes that key entirely, since S5.5 only promotes a fold match
// that resolves to exactly one canonical.
func foldedCanonicals(snap *lexicon.Snapshot) map[string]string {
	byFold := make(map[string]string, len(snap.Canonicals))
	collided := map[string]bool{}
	for c := range snap.Canonicals {
		folded := phonetic.Fold(c)
		if collided[folded] {
			continue
		}
		if existing, ok := byFold[folded]; ok && existing != c {
			delete(byFold, folded)
			collided[folded] = true
			continue
		}
		byFold[folded] = c
	}
	return byFold
}

func diacriticsRestoreSegment(seg string, snap *lexicon.Snapshot, byFold map[string]string) string {
	atoms := tokenizeAtoms(seg)
	for i, a := range atoms {
		if a.space || !isLetters(a.text) {
			continue
		}
		folded := phonetic.Fold(a.text)
		if canon, ok := snap.Variants[folded]; ok {
			atoms[i] = atom{text: canon}
			continue
		}
		if canon, ok := byFold[folded]; ok {
			atoms[i] = atom{text: canon}
		}
	}
	return joinAtoms(atoms)
}
