package normalize

import (
	"regexp"
	"strings"

	"dentalgw/internal/lexicon"
)

// atom is one run of non-whitespace, or one run of whitespace, from a
// whitespace-preserving tokenization of a segment. Concatenating every
// atom's text reproduces the segment exactly.
type atom struct {
	text  string
	space bool
}

var atomPattern = regexp.MustCompile(`\S+|\s+`)

func tokenizeAtoms(s string) []atom {
	matches := atomPattern.FindAllString(s, -1)
	atoms := make([]atom, 0, len(matches))
	for _, m := range matches {
		atoms = append(atoms, atom{text: m, space: m[0] == ' ' || m[0] == '\t' || m[0] == '\n'})
	}
	return atoms
}

func joinAtoms(atoms []atom) string {
	var b strings.Builder
	for _, a := range atoms {
		b.WriteString(a.text)
	}
	return b.String()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isLetters(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false
		}
	}
	return true
}

func validElementDigits(d1, d2 byte) bool {
	return d1 >= '1' && d1 <= '8' && d2 >= '1' && d2 <= '8'
}

func isUnitWord(s string) bool {
	switch strings.ToLower(s) {
	case "mm", "cm", "%", "ml":
		return true
	}
	return false
}

// elementParse is S2: detect tooth-element references written as a bare
// two-digit number, two single digits joined by a separator, an article
// plus a number ("de 11"), or two Dutch number-words ("een vier"), and
// rewrite them to "element DD" -- unless a unit follows (unit guard), the
// digits are part of a comma-separated list (comma-list guard), or the
// reference is already preceded by a dental context word, in which case
// only the bare digit pair is emitted.
func elementParse(text string, snap *lexicon.Snapshot) string {
	return mapUnprotected(text, func(s string) string {
		return elementParseSegment(s, snap)
	})
}

func elementParseSegment(s string, snap *lexicon.Snapshot) string {
	atoms := tokenizeAtoms(s)
	var out []atom
	i := 0
	for i < len(atoms) {
		if !atoms[i].space {
			if _, _, ok := digitCommaCore(atoms[i].text); ok {
				if run, consumed := commaListRun(atoms, i); run != nil {
					out = append(out, run...)
					i += consumed
					continue
				}
			}
		}

		if dd, span, ok := matchElementCandidate(atoms, i, snap); ok {
			nextIdx := i + span
			if followedByUnit(atoms, nextIdx) {
				out = append(out, atoms[i:nextIdx]...)
				i = nextIdx
				continue
			}

			precededByContext := precededByContextWord(out)
			precededByDe, deLen := precededByArticleDe(out)

			switch {
			case precededByContext:
				out = append(out, atom{text: dd})
			case precededByDe:
				out = out[:len(out)-deLen]
				out = append(out, atom{text: "element"}, atom{text: " ", space: true}, atom{text: dd})
			default:
				out = append(out, atom{text: "element"}, atom{text: " ", space: true}, atom{text: dd})
			}
			i = nextIdx
			continue
		}

		out = append(out, atoms[i])
		i++
	}
	return joinAtoms(out)
}

// digitCommaCore recognizes a token that is a single digit, optionally
// with a trailing comma glued directly to it (e.g. "1" or "1,").
func digitCommaCore(s string) (digit string, hasComma bool, ok bool) {
	switch {
	case len(s) == 1 && isDigits(s):
		return s, false, true
	case len(s) == 2 && isDigits(s[:1]) && s[1] == ',':
		return s[:1], true, true
	default:
		return "", false, false
	}
}

// commaListRun recognizes a run of single digits joined by ", " (comma
// guard, spec §4.1 S2) and returns it untouched if found, so pattern/
// pair-form matching never fires inside it. At least two digits are
// required, and every digit but the last must carry the trailing comma.
func commaListRun(atoms []atom, i int) ([]atom, int) {
	j := i
	count := 0
	var run []atom
	for j < len(atoms) {
		_, hasComma, ok := digitCommaCore(atoms[j].text)
		if !ok {
			break
		}
		run = append(run, atoms[j])
		count++
		j++
		if !hasComma {
			break
		}
		if j < len(atoms) && atoms[j].space {
			run = append(run, atoms[j])
			j++
		} else {
			break
		}
	}
	if count < 2 {
		return nil, 0
	}
	return run, j - i
}

// matchElementCandidate tries, at atoms[i], the three element-digit-pair
// shapes in priority order: a bare two-digit token, a single-digit/
// separator/single-digit triple, and a two-Dutch-number-word pair. It
// returns the canonical "DD" string and how many atoms it spans.
func matchElementCandidate(atoms []atom, i int, snap *lexicon.Snapshot) (dd string, span int, ok bool) {
	if i >= len(atoms) || atoms[i].space {
		return "", 0, false
	}

	// Shape A: bare two-digit token.
	if isDigits(atoms[i].text) && len(atoms[i].text) == 2 {
		d1, d2 := atoms[i].text[0], atoms[i].text[1]
		if validElementDigits(d1, d2) {
			return atoms[i].text, 1, true
		}
	}

	// Shape B: digit SEP digit.
	if isDigits(atoms[i].text) && len(atoms[i].text) == 1 && i+2 < len(atoms) {
		sepIdx := i + 1
		if atoms[sepIdx].space && sepIdx+1 < len(atoms) {
			sepIdx++
		}
		if sepIdx < len(atoms) && len([]rune(atoms[sepIdx].text)) == 1 {
			sr := []rune(atoms[sepIdx].text)[0]
			if _, isSep := snap.Separators[sr]; isSep {
				numIdx := sepIdx + 1
				if numIdx < len(atoms) && atoms[numIdx].space && numIdx+1 < len(atoms) {
					numIdx++
				}
				if numIdx < len(atoms) && isDigits(atoms[numIdx].text) && len(atoms[numIdx].text) == 1 {
					d1, d2 := atoms[i].text[0], atoms[numIdx].text[0]
					if validElementDigits(d1, d2) {
						return string([]byte{d1, d2}), numIdx - i + 1, true
					}
				}
			}
		}
	}

	// Shape C: two Dutch number-words.
	if isLetters(atoms[i].text) {
		d1, ok1 := resolveDigitWord(atoms, i, snap)
		if ok1 {
			nextIdx := i + 1
			if nextIdx < len(atoms) && atoms[nextIdx].space {
				nextIdx++
			}
			if nextIdx < len(atoms) && isLetters(atoms[nextIdx].text) {
				d2, ok2 := resolveDigitWord(atoms, nextIdx, snap)
				if ok2 && validElementDigits(d1, d2) {
					return string([]byte{d1, d2}), nextIdx - i + 1, true
				}
			}
		}
	}

	return "", 0, false
}

// resolveDigitWord maps a Dutch number word atom to its digit. "een" only
// resolves in context: adjacent to a dental context word, or flanked by
// separator atoms.
func resolveDigitWord(atoms []atom, i int, snap *lexicon.Snapshot) (byte, bool) {
	word := strings.ToLower(atoms[i].text)
	if d, ok := snap.DigitWords[word]; ok && len(d) == 1 {
		return d[0], true
	}
	if word == "een" {
		if eenHasContext(atoms, i, snap) {
			return '1', true
		}
	}
	return 0, false
}

func eenHasContext(atoms []atom, i int, snap *lexicon.Snapshot) bool {
	before := i - 1
	if before >= 0 && atoms[before].space {
		before--
	}
	after := i + 1
	if after < len(atoms) && atoms[after].space {
		after++
	}
	if before >= 0 && isLetters(atoms[before].text) {
		if _, isCtx := lexicon.DentalContextWords[strings.ToLower(atoms[before].text)]; isCtx {
			return true
		}
	}
	if after < len(atoms) && isLetters(atoms[after].text) {
		if _, isCtx := lexicon.DentalContextWords[strings.ToLower(atoms[after].text)]; isCtx {
			return true
		}
	}
	beforeIsSep := before >= 0 && len([]rune(atoms[before].text)) == 1 && isSeparatorAtom(atoms[before], snap)
	afterIsSep := after < len(atoms) && len([]rune(atoms[after].text)) == 1 && isSeparatorAtom(atoms[after], snap)
	return beforeIsSep && afterIsSep
}

func isSeparatorAtom(a atom, snap *lexicon.Snapshot) bool {
	rs := []rune(a.text)
	if len(rs) != 1 {
		return false
	}
	_, ok := snap.Separators[rs[0]]
	return ok
}

func followedByUnit(atoms []atom, idx int) bool {
	if idx < len(atoms) && atoms[idx].space {
		idx++
	}
	return idx < len(atoms) && isUnitWord(atoms[idx].text)
}

// precededByContextWord reports whether the last non-space atom already
// emitted is a dental context word (spec §4.1 S2 negative lookbehind).
func precededByContextWord(out []atom) bool {
	j := len(out) - 1
	if j >= 0 && out[j].space {
		j--
	}
	if j < 0 {
		return false
	}
	_, isCtx := lexicon.DentalContextWords[strings.ToLower(out[j].text)]
	return isCtx
}

// precededByArticleDe reports whether the last emitted atoms are the bare
// word "de" (spec §4.1 S2 article cleanup), returning how many trailing
// atoms (the article plus any separating space) to drop on substitution.
func precededByArticleDe(out []atom) (bool, int) {
	j := len(out) - 1
	n := 0
	if j >= 0 && out[j].space {
		j--
		n++
	}
	if j < 0 {
		return false, 0
	}
	if strings.ToLower(out[j].text) == "de" {
		return true, n + 1
	}
	return false, 0
}
