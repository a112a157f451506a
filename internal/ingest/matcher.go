package ingest

// matcher.go scores raw CSV headers against the canonical schema.
//
// Matching is deterministic: identical header text against an identical
// schema always yields identical output, regardless of column order.
// Candidate scoring iterates Fields(), which has a fixed sort order, and
// ties between fields fall inside the tie margin so they surface as
// NeedsMapping rather than resolving arbitrarily.

import (
	"math"
	"strings"

	"github.com/agext/levenshtein"
)

// Matcher defaults. Both are tunable per ingestion via MatcherConfig.
const (
	DefaultThreshold = 70 // minimum confidence for an automatic match
	DefaultTieMargin = 5  // top-two gap below which a match is ambiguous
)

// MatcherConfig tunes automatic header matching.
type MatcherConfig struct {
	// Threshold is the minimum confidence (0-100) for an automatic match.
	Threshold int

	// TieMargin flags a header as ambiguous when the top two candidate
	// fields score within this many points of each other.
	TieMargin int
}

// DefaultMatcherConfig returns the production matcher settings.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		Threshold: DefaultThreshold,
		TieMargin: DefaultTieMargin,
	}
}

// HeaderMatch is the automatic matching result for one raw header column.
type HeaderMatch struct {
	// OriginalHeader is the header text exactly as it appeared in the file.
	OriginalHeader string `json:"originalHeader"`

	// MatchedField is the canonical key of the best candidate, or empty
	// when nothing scored above zero.
	MatchedField string `json:"matchedField,omitempty"`

	// Confidence is the match certainty, 0-100.
	Confidence int `json:"confidence"`

	// NeedsMapping is true when the match requires user review: the score
	// fell below the threshold or the top two candidates were too close.
	NeedsMapping bool `json:"needsMapping"`
}

var levParams = levenshtein.NewParams()

// MatchHeaders scores every raw header against the canonical schema.
// The result is ordered by column position.
func MatchHeaders(headers []string, cfg MatcherConfig) []HeaderMatch {
	matches := make([]HeaderMatch, len(headers))
	for i, h := range headers {
		matches[i] = matchHeader(h, cfg)
	}
	return matches
}

// matchHeader scores a single raw header.
//
// An exact normalized synonym is confidence 100, no review needed.
// Otherwise every synonym of every field is scored and the best field
// becomes the candidate, flagged for review when below the threshold or
// within the tie margin of the runner-up.
func matchHeader(header string, cfg MatcherConfig) HeaderMatch {
	m := HeaderMatch{OriginalHeader: header}

	normalized := NormalizeLabel(header)
	if normalized == "" {
		m.NeedsMapping = true
		return m
	}

	if key, ok := synonymOwner(normalized); ok {
		m.MatchedField = key
		m.Confidence = 100
		return m
	}

	best, second := 0, 0
	bestKey := ""
	for _, f := range Fields() {
		score := fieldScore(normalized, f)
		if score > best {
			second = best
			best = score
			bestKey = f.Key
		} else if score > second {
			second = score
		}
	}

	if best > 0 {
		m.MatchedField = bestKey
		m.Confidence = best
	}
	m.NeedsMapping = best < cfg.Threshold || best-second < cfg.TieMargin
	return m
}

// fieldScore is the best similarity between a normalized header and any
// synonym of the field, scaled to 0-100.
func fieldScore(normalized string, f CanonicalField) int {
	best := 0.0
	for _, syn := range f.Synonyms {
		if s := similarity(normalized, syn); s > best {
			best = s
		}
	}
	return int(math.Round(best * 100))
}

// similarity blends normalized edit distance with token-set overlap.
//
// Edit distance rewards near-identical spellings ("comission"), token
// overlap rewards reordered or partially shared labels ("price sale" vs
// "sale price"). Taking the max keeps the metric monotonic in both.
func similarity(a, b string) float64 {
	lev := levenshtein.Similarity(a, b, levParams)
	if overlap := tokenOverlap(a, b); overlap > lev {
		return overlap
	}
	return lev
}

// tokenOverlap is the Sørensen–Dice coefficient over whitespace tokens.
func tokenOverlap(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for tok := range ta {
		if tb[tok] {
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(ta)+len(tb))
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}

// OverallConfidence aggregates per-column confidences into the single
// percentage surfaced to the mapping UI. Columns matched to required
// fields weigh double: a shaky match on "Sale Price" matters more than
// one on "Tags".
func OverallConfidence(matches []HeaderMatch) int {
	if len(matches) == 0 {
		return 0
	}

	sum, weights := 0, 0
	for _, m := range matches {
		weight := 1
		if f, ok := FieldByKey(m.MatchedField); ok && f.Required {
			weight = 2
		}
		sum += weight * m.Confidence
		weights += weight
	}
	return sum / weights
}
