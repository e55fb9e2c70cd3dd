package phonetic

import "testing"

func TestFoldRemovesAccentsAndCase(t *testing.T) {
	cases := map[string]string{
		"Periapicaal": "periapicaal",
		"café":        "cafe",
		"MOLAAR":      "molaar",
	}
	for in, want := range cases {
		if got := Fold(in); got != want {
			t.Errorf("Fold(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSoundexKnownPairs(t *testing.T) {
	if Soundex("molaar") != Soundex("mollaar") {
		t.Errorf("expected molaar and mollaar to share a soundex code")
	}
	if Soundex("kies") == Soundex("element") {
		t.Errorf("unrelated words should not share a soundex code")
	}
}

func TestScoreIdenticalIsOne(t *testing.T) {
	if s := Score("molaar", "molaar", 0.84); s != 1.0 {
		t.Errorf("Score(molaar, molaar) = %v, want 1.0", s)
	}
}

func TestBestPicksHighestAboveThreshold(t *testing.T) {
	candidates := []string{"molaar", "premolaar", "element"}
	res, ok := Best("molaar", candidates, 0.84)
	if !ok {
		t.Fatalf("expected a match")
	}
	if res.Candidate != "molaar" || res.Score != 1.0 {
		t.Errorf("got %+v", res)
	}
}

func TestBestReturnsFalseBelowThreshold(t *testing.T) {
	_, ok := Best("xyzzyqq", []string{"molaar"}, 0.84)
	if ok {
		t.Errorf("expected no match above threshold")
	}
}

func TestBestTieBreaksByLexOrderWhenSameLength(t *testing.T) {
	// "cab" is equidistant (1 edit) from both "cat" and "car", and none of
	// the three share a soundex code, so the scores tie exactly and the
	// lexicographically smaller candidate must win.
	res, ok := Best("cab", []string{"cat", "car"}, 0.0)
	if !ok {
		t.Fatalf("expected a match")
	}
	if res.Candidate != "car" {
		t.Errorf("expected lexicographically smaller candidate to win tie, got %q", res.Candidate)
	}
}
