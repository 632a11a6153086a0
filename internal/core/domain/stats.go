package domain

// EmbeddingUsage accumulates remote embedding cost accounting.
type EmbeddingUsage struct {
	Requests int `json:"requests"`
	Tokens   int `json:"tokens"`
}

// VectorStats describes the remote vector collection.
type VectorStats struct {
	TotalChunks       int `json:"total_chunks"`
	DistinctDocuments int `json:"distinct_documents"`
}

// KeywordStats describes the in-process keyword index.
type KeywordStats struct {
	IndexedChunks     int     `json:"indexed_chunks"`
	DistinctCases     int     `json:"distinct_cases"`
	TotalTokens       int     `json:"total_tokens"`
	AvgTokensPerChunk float64 `json:"avg_tokens_per_chunk"`
	LiteMode          bool    `json:"lite_mode"`
}

// PipelineStats aggregates the state of every retrieval backend.
type PipelineStats struct {
	Vector    VectorStats    `json:"vector"`
	Keyword   KeywordStats   `json:"keyword"`
	Embedding EmbeddingUsage `json:"embedding"`
}
