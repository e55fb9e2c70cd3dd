// Package lexicon builds the immutable Snapshot the normalization
// pipeline runs against, and caches one per user.
package lexicon

import "regexp"

// Pattern is a single ordered accent-agnostic rewrite rule (S3).
type Pattern struct {
	Regex       *regexp.Regexp
	Replacement string
}

// PostprocessFlags gate the S6 cleanup rules. All default true.
type PostprocessFlags struct {
	RemoveSentenceDots  bool
	CompactUnits        bool
	DedupeElements      bool
	StripLeadingArticle bool
}

// StageSwitches enable or disable individual pipeline stages. All default
// true; a Snapshot with every switch on runs the full S0-S7 pipeline.
type StageSwitches struct {
	ProtectedWrap         bool
	UnicodeNormalization  bool
	Preprocessing         bool
	ElementParsing        bool
	PatternReplacement    bool
	VariantGeneration     bool
	HyphenPrepass         bool
	PhoneticNormalization bool
	DiacriticsRestore     bool
	Postprocessing        bool
}

// DefaultStageSwitches returns every stage enabled.
func DefaultStageSwitches() StageSwitches {
	return StageSwitches{
		ProtectedWrap:         true,
		UnicodeNormalization:  true,
		Preprocessing:         true,
		ElementParsing:        true,
		PatternReplacement:    true,
		VariantGeneration:     true,
		HyphenPrepass:         true,
		PhoneticNormalization: true,
		DiacriticsRestore:     true,
		Postprocessing:        true,
	}
}

// DefaultSeparators is the element-number separator set from spec §3.
func DefaultSeparators() map[rune]struct{} {
	return map[rune]struct{}{'-': {}, ' ': {}, ',': {}, ';': {}, '/': {}}
}

// DefaultDigitWords maps the Dutch number words the element-parsing stage
// understands. "een" is intentionally absent here: it is resolved only in
// dental context by the element-parsing stage itself (spec §3, §4.1 rule 6).
func DefaultDigitWords() map[string]string {
	return map[string]string{
		"twee":  "2",
		"drie":  "3",
		"vier":  "4",
		"vijf":  "5",
		"zes":   "6",
		"zeven": "7",
		"acht":  "8",
	}
}

// DentalContextWords enable number-word aggregation for "een" per spec's
// glossary definition of "Dental context word".
var DentalContextWords = map[string]struct{}{
	"element":   {},
	"tand":      {},
	"kies":      {},
	"molaar":    {},
	"premolaar": {},
}

// Snapshot is the immutable bundle of lexicon + config a normalize.Run
// call consumes. Construct one via Loader.Load; never mutate a Snapshot
// in place — build a new one instead (spec §3 invariant).
type Snapshot struct {
	Canonicals        map[string]struct{}
	Variants          map[string]string // folded variant -> canonical
	Patterns          []Pattern
	ProtectedWords    []string
	Separators        map[rune]struct{}
	DigitWords        map[string]string
	PhoneticThreshold float64
	Postprocess       PostprocessFlags
	Stages            StageSwitches

	// MaxVariantWords is the longest variant key or canonical term in
	// tokens, bounding the S4 and S5 multi-token window searches.
	MaxVariantWords int
}
