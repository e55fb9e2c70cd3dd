package phonetic

// Soundex computes the classical American Soundex code (a letter followed
// by three digits) over an already-folded (lowercase, unaccented) token.
// Spec §9 leaves the exact dialect unpinned and only contracts the gating
// rule and bonus magnitude (§4.1 S5), so this is the one hand-rolled
// algorithm in the pipeline; no library in the retrieval pack implements
// a Dutch-tuned variant.
func Soundex(folded string) string {
	if folded == "" {
		return ""
	}

	code := func(b byte) byte {
		switch b {
		case 'b', 'f', 'p', 'v':
			return '1'
		case 'c', 'g', 'j', 'k', 'q', 's', 'x', 'z':
			return '2'
		case 'd', 't':
			return '3'
		case 'l':
			return '4'
		case 'm', 'n':
			return '5'
		case 'r':
			return '6'
		default:
			return 0
		}
	}

	first := folded[0]
	out := make([]byte, 0, 4)
	out = append(out, first)

	last := code(first)
	for i := 1; i < len(folded) && len(out) < 4; i++ {
		c := code(folded[i])
		if c != 0 && c != last {
			out = append(out, c)
		}
		if folded[i] != 'h' && folded[i] != 'w' {
			last = c
		}
	}
	for len(out) < 4 {
		out = append(out, '0')
	}
	return string(out)
}
