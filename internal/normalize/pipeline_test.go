package normalize

import (
	"regexp"
	"testing"

	"dentalgw/internal/lexicon"
)

func testSnapshot(t *testing.T) *lexicon.Snapshot {
	t.Helper()
	snap := &lexicon.Snapshot{
		Canonicals:        map[string]struct{}{"molaar": {}, "peri-apicaal": {}},
		Variants:          map[string]string{},
		ProtectedWords:    []string{"Invisalign"},
		Separators:        lexicon.DefaultSeparators(),
		DigitWords:        lexicon.DefaultDigitWords(),
		PhoneticThreshold: 0.84,
		Postprocess: lexicon.PostprocessFlags{
			RemoveSentenceDots:  true,
			CompactUnits:        true,
			DedupeElements:      true,
			StripLeadingArticle: true,
		},
		Stages:          lexicon.DefaultStageSwitches(),
		MaxVariantWords: 1,
	}
	re, err := regexp.Compile(`\bcirca\b`)
	if err != nil {
		t.Fatalf("compiling test pattern: %v", err)
	}
	snap.Patterns = []lexicon.Pattern{{Regex: re, Replacement: "ca."}}
	return snap
}

func runText(t *testing.T, text string) string {
	t.Helper()
	res, err := Run(text, "nl", testSnapshot(t))
	if err != nil {
		t.Fatalf("Run(%q) returned error: %v", text, err)
	}
	return res.NormalizedText
}

func TestElementListFromSemicolons(t *testing.T) {
	got := runText(t, "14;15;16")
	want := "element 14; element 15; element 16"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestArticleBeforeElementNumber(t *testing.T) {
	got := runText(t, "de 11")
	want := "element 11"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNumberWordPairWithContextWord(t *testing.T) {
	got := runText(t, "tand een vier")
	want := "tand 14"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNumberWordPairAfterElementContext(t *testing.T) {
	got := runText(t, "element een vier")
	want := "element 14"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCommaListGuardLeavesDigitsIntact(t *testing.T) {
	got := runText(t, "1, 2, 3")
	want := "1, 2, 3"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestUnitGuardPreventsElementRewrite(t *testing.T) {
	got := runText(t, "15 mm")
	want := "15mm"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDuplicateElementReferenceIsDeduped(t *testing.T) {
	got := runText(t, "element 14 element 14")
	want := "element 14"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPatternReplacesAbbreviation(t *testing.T) {
	got := runText(t, "circa")
	want := "ca."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestHyphenPrepassRestoresCanonicalHyphen(t *testing.T) {
	got := runText(t, "periapicaal")
	want := "peri-apicaal"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestHyphenSplitsNonCanonicalHyphenatedToken(t *testing.T) {
	got := runText(t, "mesio-distaal")
	want := "mesio distaal"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestHyphenLeavesNumericRangeIntact(t *testing.T) {
	got := runText(t, "element 14-16")
	want := "element 14-16"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPhoneticFuzzyMatchCorrectsTypo(t *testing.T) {
	got := runText(t, "mollaar")
	want := "molaar"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPhoneticWindowCorrectsTypoInMultiWordCanonical(t *testing.T) {
	snap := testSnapshot(t)
	snap.Canonicals["wortel kanaal"] = struct{}{}
	snap.MaxVariantWords = 2

	res, err := Run("wortel kanal ontsteking", "nl", snap)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	want := "wortel kanaal ontsteking"
	if res.NormalizedText != want {
		t.Errorf("got %q, want %q", res.NormalizedText, want)
	}
}

func TestPhoneticWindowRejectsBelowPerWordMinimum(t *testing.T) {
	snap := testSnapshot(t)
	snap.Canonicals["wortel kanaal"] = struct{}{}
	snap.MaxVariantWords = 2

	// "xy" shares almost nothing with "kanaal": the per-word minimum
	// (0.60) must reject the window even though the other word matches
	// exactly.
	res, err := Run("wortel xy ontsteking", "nl", snap)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	want := "wortel xy ontsteking"
	if res.NormalizedText != want {
		t.Errorf("got %q, want %q", res.NormalizedText, want)
	}
}

func TestProtectedWordSurvivesUntouched(t *testing.T) {
	got := runText(t, "Ik draag Invisalign 14")
	want := "Ik draag Invisalign element 14"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestIdempotence(t *testing.T) {
	once := runText(t, "de 11 en tand een vier, circa 15 mm")
	snap := testSnapshot(t)
	res, err := Run(once, "nl", snap)
	if err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}
	if res.NormalizedText != once {
		t.Errorf("normalize is not idempotent: first=%q second=%q", once, res.NormalizedText)
	}
}

func TestNoSentinelLeaksIntoOutput(t *testing.T) {
	got := runText(t, "Ik gebruik Invisalign voor tand een vier")
	if got == "" {
		t.Fatal("expected non-empty result")
	}
	for _, r := range got {
		if r == sentinelOpen || r == sentinelClose {
			t.Fatalf("sentinel leaked into output: %q", got)
		}
	}
}

func TestValidateRejectsMissingSeparators(t *testing.T) {
	snap := testSnapshot(t)
	snap.Separators = nil
	if _, err := Run("14", "nl", snap); err == nil {
		t.Fatal("expected CONFIG_MISSING error for nil separators")
	}
}
