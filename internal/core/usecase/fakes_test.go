package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/casewise/precedent-retrieval/internal/core/domain"
)

// fakeEmbedder returns a fixed vector for every input and can be
// forced to fail, either permanently or for the first N query calls.
type fakeEmbedder struct {
	err           error
	queryErr      error
	queryFailures int
	batches       [][]string
	usage         domain.EmbeddingUsage
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, int, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	f.batches = append(f.batches, texts)
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = []float32{0.1, 0.2}
	}
	tokens := 3 * len(texts)
	f.usage.Requests++
	f.usage.Tokens += tokens
	return vectors, tokens, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.queryFailures > 0 {
		f.queryFailures--
		return nil, domain.WrapError(domain.ErrEmbedding, "embed_query", errors.New("rate limited"))
	}
	vectors, _, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (f *fakeEmbedder) Usage() domain.EmbeddingUsage { return f.usage }

// fakeVectorIndex serves canned query results and records upserts.
type fakeVectorIndex struct {
	results   []domain.RetrievalCandidate
	queryErr  error
	existing  map[string]bool
	existsErr error
	upserted  []domain.Chunk
}

func (f *fakeVectorIndex) Upsert(_ context.Context, chunks []domain.Chunk, _ [][]float32) error {
	f.upserted = append(f.upserted, chunks...)
	return nil
}

func (f *fakeVectorIndex) Query(_ context.Context, _ []float32, topK int, _ domain.SearchFilter) ([]domain.RetrievalCandidate, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if len(f.results) > topK {
		return f.results[:topK], nil
	}
	return f.results, nil
}

func (f *fakeVectorIndex) Exists(_ context.Context, chunkID string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.existing[chunkID], nil
}

func (f *fakeVectorIndex) Stats(context.Context) (domain.VectorStats, error) {
	return domain.VectorStats{TotalChunks: len(f.upserted)}, nil
}

// fakeKeywordIndex does whole-word matching over stored chunk texts,
// enough to drive the fusion and pipeline paths.
type fakeKeywordIndex struct {
	chunks []domain.Chunk
	built  bool
	saved  string
}

func (f *fakeKeywordIndex) Build(chunks []domain.Chunk) {
	f.chunks = append([]domain.Chunk(nil), chunks...)
	f.built = true
}

func (f *fakeKeywordIndex) Search(query string, topK int) []domain.RetrievalCandidate {
	if !f.built {
		return nil
	}
	var out []domain.RetrievalCandidate
	for _, c := range f.chunks {
		if strings.Contains(strings.ToLower(c.Text), strings.ToLower(query)) {
			out = append(out, domain.RetrievalCandidate{
				ChunkID:       c.ID,
				CaseReference: c.CaseReference,
				Text:          c.Text,
				Section:       c.Section,
				Year:          c.Year,
				Region:        c.Region,
				CaseType:      c.CaseType,
				Score:         float64(10 - len(out)),
				Rank:          len(out) + 1,
			})
			if len(out) == topK {
				break
			}
		}
	}
	return out
}

func (f *fakeKeywordIndex) ChunkByID(chunkID string) (domain.Chunk, bool) {
	for _, c := range f.chunks {
		if c.ID == chunkID {
			return c, true
		}
	}
	return domain.Chunk{}, false
}

func (f *fakeKeywordIndex) All() []domain.Chunk { return append([]domain.Chunk(nil), f.chunks...) }

func (f *fakeKeywordIndex) IsBuilt() bool { return f.built }

func (f *fakeKeywordIndex) Stats() domain.KeywordStats {
	return domain.KeywordStats{IndexedChunks: len(f.chunks)}
}

func (f *fakeKeywordIndex) Save(path string) error {
	f.saved = path
	return nil
}

func (f *fakeKeywordIndex) Load(string) error { return nil }

// passthroughRetrier runs the operation once without retry.
type passthroughRetrier struct{}

func (passthroughRetrier) Execute(ctx context.Context, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}

// fixedChunker returns preset chunks per case reference.
type fixedChunker struct {
	byCase map[string][]domain.Chunk
}

func (f *fixedChunker) Chunk(doc domain.CaseDocument) []domain.Chunk {
	return f.byCase[doc.CaseReference]
}

func (f *fixedChunker) CountTokens(text string) int { return len(strings.Fields(text)) }
