package ports

import (
	"context"

	"github.com/casewise/precedent-retrieval/internal/core/domain"
)

// Embedder converts text into fixed-dimension vectors via a remote
// provider. EmbedBatch preserves input order and returns one vector per
// input text plus the provider-reported token usage for the call.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, int, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Usage() domain.EmbeddingUsage
}

// VectorIndex stores chunk vectors and answers nearest-neighbour
// queries with optional metadata filters, ordered by similarity
// descending.
type VectorIndex interface {
	Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
	Query(ctx context.Context, vector []float32, topK int, filter domain.SearchFilter) ([]domain.RetrievalCandidate, error)
	Exists(ctx context.Context, chunkID string) (bool, error)
	Stats(ctx context.Context) (domain.VectorStats, error)
}

// Retrier runs an operation with retry and circuit-breaking applied.
// Implementations decide which failures are worth retrying.
type Retrier interface {
	Execute(ctx context.Context, operation string, fn func(context.Context) error) error
}

// Chunker splits a case document into section-aware, token-bounded
// chunks. Chunking is deterministic for a fixed configuration.
type Chunker interface {
	Chunk(doc domain.CaseDocument) []domain.Chunk
	CountTokens(text string) int
}

// KeywordIndex is the in-process BM25 index. Build is a full rebuild;
// Search is read-only and deterministic. Build and reads must be
// serialized by the caller.
type KeywordIndex interface {
	Build(chunks []domain.Chunk)
	Search(query string, topK int) []domain.RetrievalCandidate
	ChunkByID(chunkID string) (domain.Chunk, bool)
	All() []domain.Chunk
	IsBuilt() bool
	Stats() domain.KeywordStats
	Save(path string) error
	Load(path string) error
}
