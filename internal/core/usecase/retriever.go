package usecase

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/casewise/precedent-retrieval/internal/core/domain"
	"github.com/casewise/precedent-retrieval/internal/core/ports"
)

// RetrieverConfig tunes reciprocal rank fusion.
type RetrieverConfig struct {
	RRFK           int
	SemanticWeight float64
}

func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{RRFK: 60, SemanticWeight: 0.7}
}

// HybridRetriever combines the semantic and keyword retrieval paths
// with weighted reciprocal rank fusion. Either path returning nothing
// degrades fusion to single-path ranking instead of failing the query.
type HybridRetriever struct {
	embedder ports.Embedder
	vectors  ports.VectorIndex
	keyword  ports.KeywordIndex
	retrier  ports.Retrier
	cfg      RetrieverConfig
	logger   *slog.Logger

	// Serializes keyword reads against wholesale index rebuilds.
	indexMu *sync.RWMutex
}

func NewHybridRetriever(
	embedder ports.Embedder,
	vectors ports.VectorIndex,
	keyword ports.KeywordIndex,
	retrier ports.Retrier,
	indexMu *sync.RWMutex,
	cfg RetrieverConfig,
	logger *slog.Logger,
) *HybridRetriever {
	if cfg.RRFK <= 0 {
		cfg.RRFK = 60
	}
	if cfg.SemanticWeight < 0 || cfg.SemanticWeight > 1 {
		cfg.SemanticWeight = 0.7
	}
	if logger == nil {
		logger = slog.Default()
	}
	if indexMu == nil {
		indexMu = &sync.RWMutex{}
	}
	if retrier == nil {
		retrier = singleAttemptRetrier{}
	}
	return &HybridRetriever{
		embedder: embedder,
		vectors:  vectors,
		keyword:  keyword,
		retrier:  retrier,
		cfg:      cfg,
		indexMu:  indexMu,
		logger:   logger,
	}
}

// Retrieve runs both paths concurrently with top_k*2 candidates each,
// fuses the union by RRF score and returns the best topK.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string, topK int, filter domain.SearchFilter) ([]domain.FusedResult, error) {
	if topK <= 0 {
		return nil, nil
	}

	var (
		wg       sync.WaitGroup
		semantic []domain.RetrievalCandidate
		keyword  []domain.RetrievalCandidate
		semErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		semantic, semErr = r.semanticSearch(ctx, query, topK*2, filter)
	}()
	go func() {
		defer wg.Done()
		keyword = r.keywordSearch(query, topK*2)
	}()
	wg.Wait()

	if semErr != nil {
		if len(keyword) == 0 {
			return nil, semErr
		}
		r.logger.Warn("semantic_path_degraded", "error", semErr)
		semantic = nil
	}

	fused := r.fuse(semantic, keyword, topK)

	r.logger.Debug("hybrid_retrieval_complete",
		"query_preview", preview(query, 50),
		"semantic_hits", len(semantic),
		"keyword_hits", len(keyword),
		"fused_results", len(fused),
	)

	return fused, nil
}

// semanticSearch embeds the query and searches the vector index. Both
// remote calls run under the retrier so a transient failure does not
// degrade the query to keyword-only before retries are exhausted.
func (r *HybridRetriever) semanticSearch(ctx context.Context, query string, topK int, filter domain.SearchFilter) ([]domain.RetrievalCandidate, error) {
	var vector []float32
	err := r.retrier.Execute(ctx, "embed_query", func(callCtx context.Context) error {
		var embedErr error
		vector, embedErr = r.embedder.EmbedQuery(callCtx, query)
		return embedErr
	})
	if err != nil {
		return nil, err
	}

	var candidates []domain.RetrievalCandidate
	err = r.retrier.Execute(ctx, "vector_query", func(callCtx context.Context) error {
		var queryErr error
		candidates, queryErr = r.vectors.Query(callCtx, vector, topK, filter)
		return queryErr
	})
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

// singleAttemptRetrier is the fallback when no executor is injected.
type singleAttemptRetrier struct{}

func (singleAttemptRetrier) Execute(ctx context.Context, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}

func (r *HybridRetriever) keywordSearch(query string, topK int) []domain.RetrievalCandidate {
	r.indexMu.RLock()
	defer r.indexMu.RUnlock()
	if !r.keyword.IsBuilt() {
		return nil
	}
	return r.keyword.Search(query, topK)
}

// fuse merges the two ranked lists. A chunk missing from one list
// keeps the absent-rank sentinel so that list contributes a
// negligible share of the fused score.
func (r *HybridRetriever) fuse(semantic, keyword []domain.RetrievalCandidate, topK int) []domain.FusedResult {
	merged := make(map[string]*domain.FusedResult)
	order := make([]string, 0, len(semantic)+len(keyword))

	entry := func(c domain.RetrievalCandidate) *domain.FusedResult {
		if f, ok := merged[c.ChunkID]; ok {
			return f
		}
		f := &domain.FusedResult{
			ChunkID:       c.ChunkID,
			CaseReference: c.CaseReference,
			Text:          c.Text,
			Section:       c.Section,
			Year:          c.Year,
			Region:        c.Region,
			CaseType:      c.CaseType,
			SemanticRank:  domain.AbsentRank,
			KeywordRank:   domain.AbsentRank,
		}
		merged[c.ChunkID] = f
		order = append(order, c.ChunkID)
		return f
	}

	for _, c := range semantic {
		f := entry(c)
		f.SemanticScore = c.Score
		f.SemanticRank = c.Rank
	}
	for _, c := range keyword {
		f := entry(c)
		f.KeywordScore = c.Score
		f.KeywordRank = c.Rank
		if f.Text == "" {
			f.Text = c.Text
		}
	}

	k := float64(r.cfg.RRFK)
	keywordWeight := 1.0 - r.cfg.SemanticWeight
	for _, f := range merged {
		f.FusedScore = r.cfg.SemanticWeight/(k+float64(f.SemanticRank)) +
			keywordWeight/(k+float64(f.KeywordRank))
	}

	results := make([]domain.FusedResult, 0, len(merged))
	for _, id := range order {
		results = append(results, *merged[id])
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FusedScore > results[j].FusedScore
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// preview truncates log attributes on rune boundaries so multi-byte
// text never yields mangled UTF-8 in log output.
func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
