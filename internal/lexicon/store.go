package lexicon

import "context"

// CategoryLexicon maps a canonical term to its accepted variant spellings,
// e.g. {"element": ["elementje"]}. A category whose name ends in "_abbr"
// holds abbreviations: the loader adds its variants but promotes none of
// its canonicals on their own (spec §4.3).
type CategoryLexicon map[string][]string

// PatternDoc is one custom rewrite rule as stored externally.
type PatternDoc struct {
	Match   string `json:"match"`
	Replace string `json:"replace"`
}

// PhoneticConfig carries the S5 threshold override.
type PhoneticConfig struct {
	Threshold *float64 `json:"threshold,omitempty"`
}

// PostprocessConfig carries the S6 flag overrides; nil means "use default
// (true)" for that flag.
type PostprocessConfig struct {
	RemoveSentenceDots  *bool `json:"remove_sentence_dots,omitempty"`
	CompactUnits        *bool `json:"compact_units,omitempty"`
	DedupeElements       *bool `json:"dedupe_elements,omitempty"`
	StripLeadingArticle *bool `json:"strip_leading_article,omitempty"`
}

// NormalizationConfig carries separators, digit words, and per-stage
// enable switches.
type NormalizationConfig struct {
	Separators string          `json:"separators,omitempty"` // one rune each, e.g. "-,;/ "
	DigitWords map[string]string `json:"digit_words,omitempty"`
	Stages     map[string]bool `json:"stages,omitempty"`
}

// ConfigDoc is the "config" sub-object of a user document (spec §6).
type ConfigDoc struct {
	VariantGeneration *bool                `json:"variant_generation,omitempty"`
	Phonetic          *PhoneticConfig      `json:"phonetic,omitempty"`
	Postprocess       *PostprocessConfig   `json:"postprocess,omitempty"`
	Normalization     *NormalizationConfig `json:"normalization,omitempty"`
}

// UserDocument is the per-user document the loader reads (spec §6): the
// user's lexicon overlay, their custom patterns, their protected words,
// and their pipeline config.
type UserDocument struct {
	Lexicon        map[string]CategoryLexicon `json:"lexicon"`
	CustomPatterns []PatternDoc               `json:"custom_patterns"`
	ProtectedWords []string                   `json:"protected_words"`
	Config         ConfigDoc                  `json:"config"`
}

// Store is the external collaborator spec §1 calls "persistent
// configuration/lexicon storage": a key-value store returning JSON
// documents per user, consumed exclusively through this interface.
type Store interface {
	// UserDocument returns the per-user document.
	UserDocument(ctx context.Context, userID string) (UserDocument, error)
	// GlobalLexicon returns the shared base lexicon every user inherits;
	// the user's own Lexicon overlays it, winning on conflict.
	GlobalLexicon(ctx context.Context) (map[string]CategoryLexicon, error)
}
