package usecase

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/casewise/precedent-retrieval/internal/core/domain"
)

// RerankWeights are the relative factor weights. They are normalized
// to sum to 1 at construction, so callers may pass any positive
// values.
type RerankWeights struct {
	Issue    float64
	Temporal float64
	Region   float64
	Evidence float64
	Original float64
}

func DefaultRerankWeights() RerankWeights {
	return RerankWeights{Issue: 0.4, Temporal: 0.2, Region: 0.1, Evidence: 0.2, Original: 0.1}
}

func (w RerankWeights) normalize() RerankWeights {
	total := w.Issue + w.Temporal + w.Region + w.Evidence + w.Original
	if total <= 0 {
		return DefaultRerankWeights()
	}
	return RerankWeights{
		Issue:    w.Issue / total,
		Temporal: w.Temporal / total,
		Region:   w.Region / total,
		Evidence: w.Evidence / total,
		Original: w.Original / total,
	}
}

// Reranker reorders fused candidates by domain relevance: issue-type
// overlap with the query, recency of the decision, tribunal region,
// evidence-type overlap and the original fusion score. It is a pure
// function of its inputs.
type Reranker struct {
	weights RerankWeights
	lexicon *Lexicon
	nowYear func() int
}

func NewReranker(weights RerankWeights, lexicon *Lexicon) *Reranker {
	if lexicon == nil {
		lexicon = DefaultLexicon()
	}
	return &Reranker{
		weights: weights.normalize(),
		lexicon: lexicon,
		nowYear: func() int { return time.Now().Year() },
	}
}

// Weights returns the normalized factor weights.
func (r *Reranker) Weights() RerankWeights {
	return r.weights
}

type factorScores struct {
	issue    float64
	temporal float64
	region   float64
	evidence float64
	original float64
}

// Rerank scores every candidate, sorts by combined score descending
// and returns at most topK results with relevance explanations.
func (r *Reranker) Rerank(candidates []domain.FusedResult, query, queryRegion string, topK int) []domain.RerankedResult {
	if len(candidates) == 0 {
		return nil
	}

	queryIssues := r.lexicon.DetectIssues(query)
	queryEvidence := r.lexicon.DetectEvidence(query)

	results := make([]domain.RerankedResult, 0, len(candidates))
	for _, c := range candidates {
		scores := r.factorScores(c, queryIssues, queryEvidence, queryRegion)
		final := scores.issue*r.weights.Issue +
			scores.temporal*r.weights.Temporal +
			scores.region*r.weights.Region +
			scores.evidence*r.weights.Evidence +
			scores.original*r.weights.Original

		results = append(results, domain.RerankedResult{
			FusedResult: c,
			FinalScore:  final,
			Explanation: r.explain(c, queryIssues, scores),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FinalScore > results[j].FinalScore
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

func (r *Reranker) factorScores(c domain.FusedResult, queryIssues, queryEvidence map[string]bool, queryRegion string) factorScores {
	var s factorScores

	s.issue = jaccard(queryIssues, r.lexicon.DetectIssues(c.Text))
	s.evidence = jaccard(queryEvidence, r.lexicon.DetectEvidence(c.Text))

	age := r.nowYear() - c.Year
	switch {
	case age <= 0:
		s.temporal = 1.0
	case age <= 2:
		s.temporal = 0.9
	case age <= 5:
		s.temporal = 0.7
	default:
		s.temporal = max(0.3, 1.0-float64(age)*0.05)
	}

	s.region = 0.5
	if queryRegion != "" && c.Region != "" && strings.EqualFold(queryRegion, c.Region) {
		s.region = 1.0
	}

	// Fused RRF scores live in a narrow band near zero; rescale into
	// [0,1] before weighting.
	s.original = min(1.0, c.FusedScore*10)

	return s
}

func (r *Reranker) explain(c domain.FusedResult, queryIssues map[string]bool, scores factorScores) string {
	var parts []string

	resultIssues := r.lexicon.DetectIssues(c.Text)
	var matched []string
	for issue := range queryIssues {
		if resultIssues[issue] {
			matched = append(matched, strings.ReplaceAll(issue, "_", " "))
		}
	}
	if len(matched) > 0 {
		sort.Strings(matched)
		parts = append(parts, "Matches issues: "+strings.Join(matched, ", "))
	}

	if scores.temporal >= 0.9 {
		parts = append(parts, fmt.Sprintf("Recent case (%d)", c.Year))
	} else if scores.temporal >= 0.7 {
		parts = append(parts, fmt.Sprintf("Relatively recent (%d)", c.Year))
	}

	if scores.region >= 0.9 && c.Region != "" {
		parts = append(parts, fmt.Sprintf("Same region (%s)", c.Region))
	}

	if c.SemanticScore >= 0.7 {
		parts = append(parts, "Strong semantic similarity")
	} else if c.SemanticScore >= 0.5 {
		parts = append(parts, "Good semantic match")
	}

	if c.KeywordScore > 0 && c.KeywordRank <= 5 {
		parts = append(parts, "Strong keyword match")
	}

	if len(parts) == 0 {
		return "General relevance"
	}
	return strings.Join(parts, "; ")
}
