package normalize

import (
	"unicode/utf8"

	"dentalgw/internal/lexicon"
	"dentalgw/internal/phonetic"
)

// patternReplace is S3: each configured pattern is matched against an
// accent-folded view of the text (so "periapicaal"/"periapicáál" match the
// same rule) and the matched span of the ORIGINAL text is replaced with
// the pattern's literal replacement. Patterns apply in snapshot order,
// each re-folding the result before the next runs.
func patternReplace(text string, patterns []lexicon.Pattern) string {
	if len(patterns) == 0 {
		return text
	}
	return mapUnprotected(text, func(seg string) string {
		return applyPatterns(seg, patterns)
	})
}

func applyPatterns(seg string, patterns []lexicon.Pattern) string {
	runes := []rune(seg)
	for _, p := range patterns {
		folded, offsets := foldWithOffsets(runes)
		locs := p.Regex.FindAllStringIndex(folded, -1)
		if len(locs) == 0 {
			continue
		}
		var out []rune
		last := 0
		for _, loc := range locs {
			start := byteOffsetToRune(offsets, loc[0])
			end := byteOffsetToRune(offsets, loc[1])
			if start < last {
				continue
			}
			out = append(out, runes[last:start]...)
			out = append(out, []rune(p.Replacement)...)
			last = end
		}
		out = append(out, runes[last:]...)
		runes = out
	}
	return string(runes)
}

// foldWithOffsets folds every rune and records, for each rune index, the
// byte offset where it begins in the folded string -- letting a byte-range
// regexp match on the folded text be mapped back onto rune positions in
// the original.
func foldWithOffsets(runes []rune) (string, []int) {
	folded := make([]rune, len(runes))
	for i, r := range runes {
		folded[i] = phonetic.FoldRune(r)
	}
	offsets := make([]int, len(runes)+1)
	pos := 0
	for i, r := range folded {
		offsets[i] = pos
		pos += utf8.RuneLen(r)
	}
	offsets[len(runes)] = pos
	return string(folded), offsets
}

func byteOffsetToRune(offsets []int, b int) int {
	for i, o := range offsets {
		if o == b {
			return i
		}
	}
	for i := len(offsets) - 1; i >= 0; i-- {
		if offsets[i] <= b {
			return i
		}
	}
	return 0
}
