package lexicon

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"dentalgw/internal/phonetic"
)

// abbrSuffix marks a category as contributing abbreviations: its entries
// feed Variants unconditionally, but only promote to Canonicals when the
// abbreviated canonical already appears among the main categories (spec
// §4.3).
const abbrSuffix = "_abbr"

// Stats reports cache effectiveness for the admin control plane.
type Stats struct {
	Hits   int64
	Misses int64
}

// Loader builds Snapshots from a Store and caches one per user, per spec
// §3's "created on first request per user and cached" lifecycle.
type Loader struct {
	store Store
	cache *lru.Cache[string, *Snapshot]
	hits  atomic.Int64
	miss  atomic.Int64
}

// NewLoader builds a Loader backed by an LRU cache of the given size.
func NewLoader(store Store, cacheSize int) (*Loader, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New[string, *Snapshot](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("lexicon: building cache: %w", err)
	}
	return &Loader{store: store, cache: cache}, nil
}

// Load returns the cached Snapshot for userID, building and caching one
// on a miss.
func (l *Loader) Load(ctx context.Context, userID string) (*Snapshot, error) {
	if snap, ok := l.cache.Get(userID); ok {
		l.hits.Add(1)
		return snap, nil
	}
	l.miss.Add(1)

	doc, err := l.store.UserDocument(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lexicon: loading user document for %s: %w", userID, err)
	}
	global, err := l.store.GlobalLexicon(ctx)
	if err != nil {
		return nil, fmt.Errorf("lexicon: loading global lexicon: %w", err)
	}

	snap, err := build(doc, global)
	if err != nil {
		return nil, err
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	l.cache.Add(userID, snap)
	return snap, nil
}

// Invalidate drops the cached Snapshot for userID, forcing the next Load
// to rebuild it. Called when the admin control stream receives an
// invalidate_snapshot message — the "external signal" spec §3 leaves out
// of scope.
func (l *Loader) Invalidate(userID string) {
	l.cache.Remove(userID)
}

// Stats reports cumulative hit/miss counts since process start.
func (l *Loader) Stats() Stats {
	return Stats{Hits: l.hits.Load(), Misses: l.miss.Load()}
}

func build(doc UserDocument, global map[string]CategoryLexicon) (*Snapshot, error) {
	merged := map[string]CategoryLexicon{}
	for cat, lex := range global {
		merged[cat] = lex
	}
	for cat, lex := range doc.Lexicon {
		if existing, ok := merged[cat]; ok {
			combined := CategoryLexicon{}
			for k, v := range existing {
				combined[k] = v
			}
			for k, v := range lex {
				combined[k] = v
			}
			merged[cat] = combined
		} else {
			merged[cat] = lex
		}
	}

	canonicals := map[string]struct{}{}
	variants := map[string]string{}
	abbrCanonicals := map[string]struct{}{}

	for cat, lex := range merged {
		isAbbr := strings.HasSuffix(cat, abbrSuffix)
		for canonical, vs := range lex {
			if !isAbbr {
				canonicals[canonical] = struct{}{}
			} else {
				abbrCanonicals[canonical] = struct{}{}
			}
			for _, v := range vs {
				variants[phonetic.Fold(v)] = canonical
			}
		}
	}
	for canonical := range abbrCanonicals {
		if _, ok := canonicals[canonical]; ok {
			canonicals[canonical] = struct{}{}
		}
	}

	patterns := make([]Pattern, 0, len(doc.CustomPatterns))
	for _, p := range doc.CustomPatterns {
		re, err := regexp.Compile(p.Match)
		if err != nil {
			return nil, fmt.Errorf("lexicon: compiling custom pattern %q: %w", p.Match, err)
		}
		patterns = append(patterns, Pattern{Regex: re, Replacement: p.Replace})
	}

	separators := DefaultSeparators()
	digitWords := DefaultDigitWords()
	stages := DefaultStageSwitches()
	if nc := doc.Config.Normalization; nc != nil {
		if nc.Separators != "" {
			separators = map[rune]struct{}{}
			for _, r := range nc.Separators {
				separators[r] = struct{}{}
			}
		}
		for word, digit := range nc.DigitWords {
			digitWords[word] = digit
		}
		applyStageOverrides(&stages, nc.Stages)
	}

	threshold := 0.84
	if pc := doc.Config.Phonetic; pc != nil && pc.Threshold != nil {
		threshold = *pc.Threshold
	}

	post := PostprocessFlags{RemoveSentenceDots: true, CompactUnits: true, DedupeElements: true, StripLeadingArticle: true}
	if pp := doc.Config.Postprocess; pp != nil {
		if pp.RemoveSentenceDots != nil {
			post.RemoveSentenceDots = *pp.RemoveSentenceDots
		}
		if pp.CompactUnits != nil {
			post.CompactUnits = *pp.CompactUnits
		}
		if pp.DedupeElements != nil {
			post.DedupeElements = *pp.DedupeElements
		}
		if pp.StripLeadingArticle != nil {
			post.StripLeadingArticle = *pp.StripLeadingArticle
		}
	}
	if doc.Config.VariantGeneration != nil {
		stages.VariantGeneration = *doc.Config.VariantGeneration
	}

	maxWords := 1
	for canonical := range canonicals {
		if n := len(strings.Fields(canonical)); n > maxWords {
			maxWords = n
		}
	}
	for variant := range variants {
		if n := len(strings.Fields(variant)); n > maxWords {
			maxWords = n
		}
	}

	return &Snapshot{
		Canonicals:        canonicals,
		Variants:          variants,
		Patterns:          patterns,
		ProtectedWords:    append([]string{}, doc.ProtectedWords...),
		Separators:        separators,
		DigitWords:        digitWords,
		PhoneticThreshold: threshold,
		Postprocess:       post,
		Stages:            stages,
		MaxVariantWords:   maxWords,
	}, nil
}

func applyStageOverrides(s *StageSwitches, overrides map[string]bool) {
	for name, enabled := range overrides {
		switch name {
		case "protected_wrap":
			s.ProtectedWrap = enabled
		case "unicode_normalization":
			s.UnicodeNormalization = enabled
		case "preprocessing":
			s.Preprocessing = enabled
		case "element_parsing":
			s.ElementParsing = enabled
		case "pattern_replacement":
			s.PatternReplacement = enabled
		case "variant_generation":
			s.VariantGeneration = enabled
		case "hyphen_prepass":
			s.HyphenPrepass = enabled
		case "phonetic_normalization":
			s.PhoneticNormalization = enabled
		case "diacritics_restore":
			s.DiacriticsRestore = enabled
		case "postprocessing":
			s.Postprocessing = enabled
		}
	}
}
