package normalize

import (
	"strings"

	"dentalgw/internal/lexicon"
)

// Result is the outcome of one Run: the normalized text, its language,
// and a stage-by-stage trace for debugging. DebugOrder lists Debug's keys
// in the order the stages ran, since map iteration order is not stable.
type Result struct {
	NormalizedText string
	Language       string
	Debug          map[string]string
	DebugOrder     []string
}

func (r *Result) record(stage, text string) {
	if r.Debug == nil {
		r.Debug = make(map[string]string)
	}
	if _, seen := r.Debug[stage]; !seen {
		r.DebugOrder = append(r.DebugOrder, stage)
	}
	r.Debug[stage] = text
}

// Run executes the full S0-S7 pipeline against text using snap. It is
// pure: the same (text, language, snap) always produces the same Result.
// The only error it can return is snap.Validate's CONFIG_MISSING; every
// other internal condition is swallowed and the corresponding stage is
// skipped, per spec §7's propagation policy.
func Run(text, language string, snap *lexicon.Snapshot) (*Result, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	res := &Result{Language: language}
	out := text
	res.record("input", out)

	if snap.Stages.ProtectedWrap {
		out = wrapProtected(out, snap.ProtectedWords)
		res.record("s0_protected_wrap", out)
	}
	if snap.Stages.UnicodeNormalization {
		out = unicodeNormalize(out)
		res.record("s0_5_unicode_normalize", out)
	}
	if snap.Stages.Preprocessing {
		out = preprocess(out, snap.Separators)
		res.record("s1_preprocess", out)
	}
	if snap.Stages.ElementParsing {
		out = elementParse(out, snap)
		res.record("s2_element_parse", out)
	}
	if snap.Stages.PatternReplacement {
		out = patternReplace(out, snap.Patterns)
		res.record("s3_pattern_replace", out)
	}
	if snap.Stages.VariantGeneration {
		out = variantReplace(out, snap)
		res.record("s4_variant_replace", out)
	}
	if snap.Stages.HyphenPrepass {
		out = hyphenPrepass(out, snap)
		res.record("s4_5_hyphen_prepass", out)
	}
	if snap.Stages.PhoneticNormalization {
		out = phoneticNormalize(out, snap)
		res.record("s5_phonetic_normalize", out)
	}
	if snap.Stages.DiacriticsRestore {
		out = diacriticsRestore(out, snap)
		res.record("s5_5_diacritics_restore", out)
	}
	if snap.Stages.Postprocessing {
		out = postprocess(out, snap.Postprocess)
		res.record("s6_postprocess", out)
	}
	if snap.Stages.ProtectedWrap {
		out = unwrapProtected(out)
		res.record("s7_unwrap", out)
	}

	res.NormalizedText = strings.TrimSpace(out)
	return res, nil
}
