package usecase

import (
	"github.com/casewise/precedent-retrieval/internal/core/domain"
)

// Uncertainty reasons surfaced to callers when the confidence score
// falls under the threshold.
const (
	reasonNoResults      = "No matching cases found."
	reasonNoSimilarCases = "No sufficiently similar cases found. Your situation may be novel or the query needs refinement."
	reasonFewGoodMatches = "Few relevant cases found. Results should be interpreted with caution."
	reasonLowConfidence  = "Low confidence in results. Consider consulting a legal professional."
)

// ScoreBucket maps a signal value at or above Min to Value. Bucket
// slices are evaluated in order, so they must be sorted descending
// by Min.
type ScoreBucket struct {
	Min   float64
	Value float64
}

// SpreadBucket maps a score spread strictly under Max to Value,
// evaluated in order of ascending Max.
type SpreadBucket struct {
	Max   float64
	Value float64
}

// CountBucket maps a result count at or above Min to Value, evaluated
// in order of descending Min.
type CountBucket struct {
	Min   int
	Value float64
}

// ConfidenceConfig tunes the cite-or-abstain decision. Every bucket
// ladder is tunable; zero-valued fields fall back to the defaults.
type ConfidenceConfig struct {
	// Threshold under which an outcome is flagged uncertain.
	Threshold float64
	// GoodMatchSimilarity is the semantic score a result needs to
	// count as a good match.
	GoodMatchSimilarity float64

	// SimilarityBuckets map the top result's semantic score to the
	// similarity signal; SimilarityFloor applies below every bucket.
	SimilarityBuckets []ScoreBucket
	SimilarityFloor   float64

	// SpreadBuckets map the fused-score spread of the top three
	// results to the coherence signal. SpreadFloor applies to wider
	// spreads; NeutralSpread is used with fewer than three results.
	SpreadBuckets []SpreadBucket
	SpreadFloor   float64
	NeutralSpread float64

	// CoverageBuckets map the good-match count to the coverage
	// signal; CoverageFloor applies when no result qualifies.
	CoverageBuckets []CountBucket
	CoverageFloor   float64
}

func DefaultConfidenceConfig() ConfidenceConfig {
	return ConfidenceConfig{
		Threshold:           0.5,
		GoodMatchSimilarity: 0.4,
		SimilarityBuckets: []ScoreBucket{
			{Min: 0.7, Value: 1.0},
			{Min: 0.5, Value: 0.7},
			{Min: 0.3, Value: 0.4},
		},
		SimilarityFloor: 0.2,
		SpreadBuckets: []SpreadBucket{
			{Max: 0.1, Value: 0.8},
			{Max: 0.2, Value: 0.6},
		},
		SpreadFloor:   0.4,
		NeutralSpread: 0.5,
		CoverageBuckets: []CountBucket{
			{Min: 4, Value: 1.0},
			{Min: 2, Value: 0.7},
			{Min: 1, Value: 0.4},
		},
		CoverageFloor: 0.1,
	}
}

// ConfidenceCalculator implements the cite-or-abstain policy: rather
// than presenting weak matches as authoritative, low-signal result
// sets are flagged uncertain with a human-readable reason.
type ConfidenceCalculator struct {
	cfg ConfidenceConfig
}

func NewConfidenceCalculator(cfg ConfidenceConfig) *ConfidenceCalculator {
	defaults := DefaultConfidenceConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaults.Threshold
	}
	if cfg.GoodMatchSimilarity <= 0 {
		cfg.GoodMatchSimilarity = defaults.GoodMatchSimilarity
	}
	if len(cfg.SimilarityBuckets) == 0 {
		cfg.SimilarityBuckets = defaults.SimilarityBuckets
	}
	if cfg.SimilarityFloor <= 0 {
		cfg.SimilarityFloor = defaults.SimilarityFloor
	}
	if len(cfg.SpreadBuckets) == 0 {
		cfg.SpreadBuckets = defaults.SpreadBuckets
	}
	if cfg.SpreadFloor <= 0 {
		cfg.SpreadFloor = defaults.SpreadFloor
	}
	if cfg.NeutralSpread <= 0 {
		cfg.NeutralSpread = defaults.NeutralSpread
	}
	if len(cfg.CoverageBuckets) == 0 {
		cfg.CoverageBuckets = defaults.CoverageBuckets
	}
	if cfg.CoverageFloor <= 0 {
		cfg.CoverageFloor = defaults.CoverageFloor
	}
	return &ConfidenceCalculator{cfg: cfg}
}

// Score combines three signals, each mapped to [0,1], into their
// mean: the top result's semantic similarity, the score spread across
// the top three results, and the count of good matches. The reason,
// present only when uncertain, names the weakest signal.
func (c *ConfidenceCalculator) Score(results []domain.RerankedResult) (float64, bool, string) {
	if len(results) == 0 {
		return 0.0, true, reasonNoResults
	}

	topSemantic := results[0].SemanticScore
	similarity := c.similaritySignal(topSemantic)
	spread := c.spreadSignal(results)

	goodMatches := 0
	for _, r := range results {
		if r.SemanticScore >= c.cfg.GoodMatchSimilarity {
			goodMatches++
		}
	}
	coverage := c.coverageSignal(goodMatches)

	confidence := (similarity + spread + coverage) / 3

	if confidence >= c.cfg.Threshold {
		return confidence, false, ""
	}

	var reason string
	switch {
	case topSemantic < c.noveltySimilarity():
		reason = reasonNoSimilarCases
	case goodMatches < 2:
		reason = reasonFewGoodMatches
	default:
		reason = reasonLowConfidence
	}
	return confidence, true, reason
}

func (c *ConfidenceCalculator) similaritySignal(topSemantic float64) float64 {
	for _, b := range c.cfg.SimilarityBuckets {
		if topSemantic >= b.Min {
			return b.Value
		}
	}
	return c.cfg.SimilarityFloor
}

func (c *ConfidenceCalculator) spreadSignal(results []domain.RerankedResult) float64 {
	if len(results) < 3 {
		return c.cfg.NeutralSpread
	}
	lo, hi := results[0].FusedScore, results[0].FusedScore
	for _, r := range results[1:3] {
		if r.FusedScore < lo {
			lo = r.FusedScore
		}
		if r.FusedScore > hi {
			hi = r.FusedScore
		}
	}
	for _, b := range c.cfg.SpreadBuckets {
		if hi-lo < b.Max {
			return b.Value
		}
	}
	return c.cfg.SpreadFloor
}

func (c *ConfidenceCalculator) coverageSignal(goodMatches int) float64 {
	for _, b := range c.cfg.CoverageBuckets {
		if goodMatches >= b.Min {
			return b.Value
		}
	}
	return c.cfg.CoverageFloor
}

// noveltySimilarity is the lowest configured similarity bucket
// boundary; a top score under it signals a likely novel situation.
func (c *ConfidenceCalculator) noveltySimilarity() float64 {
	return c.cfg.SimilarityBuckets[len(c.cfg.SimilarityBuckets)-1].Min
}
