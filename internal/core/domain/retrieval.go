package domain

import "time"

// AbsentRank is the rank assigned to a chunk missing from one retrieval
// path. It is far beyond any real result, so its reciprocal-rank
// contribution is negligible.
const AbsentRank = 999

// SearchFilter restricts retrieval to chunks matching the given
// metadata. Zero values mean "no restriction".
type SearchFilter struct {
	Year     int
	Region   string
	CaseType string
}

// IsZero reports whether the filter restricts nothing.
func (f SearchFilter) IsZero() bool {
	return f.Year == 0 && f.Region == "" && f.CaseType == ""
}

// RetrievalCandidate is one chunk as scored by a single retrieval path.
// Text and metadata are denormalized so callers need no second lookup.
type RetrievalCandidate struct {
	ChunkID       string      `json:"chunk_id"`
	CaseReference string      `json:"case_reference"`
	Text          string      `json:"text"`
	Section       SectionType `json:"section_type"`

	Year     int    `json:"year"`
	Region   string `json:"region,omitempty"`
	CaseType string `json:"case_type,omitempty"`

	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// FusedResult carries both paths' raw scores and ranks plus the single
// reciprocal-rank-fused score. A path that did not return the chunk
// contributes score 0 at AbsentRank.
type FusedResult struct {
	ChunkID       string      `json:"chunk_id"`
	CaseReference string      `json:"case_reference"`
	Text          string      `json:"text"`
	Section       SectionType `json:"section_type"`

	Year     int    `json:"year"`
	Region   string `json:"region,omitempty"`
	CaseType string `json:"case_type,omitempty"`

	SemanticScore float64 `json:"semantic_score"`
	SemanticRank  int     `json:"semantic_rank"`
	KeywordScore  float64 `json:"keyword_score"`
	KeywordRank   int     `json:"keyword_rank"`
	FusedScore    float64 `json:"fused_score"`
}

// RerankedResult is the terminal per-chunk artifact: a fused result plus
// the blended domain score and a short relevance explanation.
type RerankedResult struct {
	FusedResult

	FinalScore  float64 `json:"final_score"`
	Explanation string  `json:"explanation"`
}

// QueryOutcome is the end-to-end result of one query, including the
// cite-or-abstain confidence verdict. Constructed fresh per query and
// never persisted by the core.
type QueryOutcome struct {
	Query   string           `json:"query"`
	Results []RerankedResult `json:"results"`

	Confidence        float64 `json:"confidence"`
	IsUncertain       bool    `json:"is_uncertain"`
	UncertaintyReason string  `json:"uncertainty_reason,omitempty"`

	TotalCandidates int           `json:"total_candidates"`
	RetrievalTime   time.Duration `json:"retrieval_time"`
}

// IngestStats summarizes one ingestion run. Per-document failures are
// recorded here instead of aborting the batch.
type IngestStats struct {
	Processed      int `json:"processed"`
	Skipped        int `json:"skipped"`
	Failed         int `json:"failed"`
	ChunksCreated  int `json:"chunks_created"`
	ChunksEmbedded int `json:"chunks_embedded"`

	EmbeddingTokens int `json:"embedding_tokens"`

	// Failures maps case reference to the error that sank it.
	Failures map[string]string `json:"failures,omitempty"`
}

// RecordFailure notes a per-document error without failing the batch.
func (s *IngestStats) RecordFailure(caseReference string, err error) {
	if s.Failures == nil {
		s.Failures = make(map[string]string)
	}
	s.Failures[caseReference] = err.Error()
	s.Failed++
}
