package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/casewise/precedent-retrieval/internal/core/domain"
	"github.com/casewise/precedent-retrieval/internal/core/ports"
	"github.com/casewise/precedent-retrieval/internal/observability/metrics"
)

const reasonIndexNotBuilt = "Index not built. Run ingest first."

// PipelineConfig tunes ingestion batching and query candidate depth.
type PipelineConfig struct {
	// EmbedBatchSize is the number of chunk texts per embedding call.
	EmbedBatchSize int
	// BatchInterval paces successive embedding batches to respect
	// provider rate limits.
	BatchInterval time.Duration
	// RetrievalK is the candidate count fetched before reranking.
	RetrievalK int
	// IndexPath is where the keyword index blob is persisted after
	// ingestion. Empty disables persistence.
	IndexPath string
	// SkipExisting skips embedding chunks already present in the
	// vector index, keyed by chunk identifier.
	SkipExisting bool
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		EmbedBatchSize: 50,
		BatchInterval:  100 * time.Millisecond,
		RetrievalK:     20,
		SkipExisting:   true,
	}
}

func (c PipelineConfig) normalize() PipelineConfig {
	if c.EmbedBatchSize <= 0 {
		c.EmbedBatchSize = 50
	}
	if c.RetrievalK <= 0 {
		c.RetrievalK = 20
	}
	return c
}

// Pipeline owns the full retrieval flow: chunk, embed, index on the
// ingestion side; hybrid retrieve, rerank and score on the query
// side. It holds explicit references to every collaborator instead of
// shared global state.
type Pipeline struct {
	cfg        PipelineConfig
	chunker    ports.Chunker
	embedder   ports.Embedder
	vectors    ports.VectorIndex
	keyword    ports.KeywordIndex
	retriever  *HybridRetriever
	reranker   *Reranker
	confidence *ConfidenceCalculator
	retrier    ports.Retrier
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    *metrics.PipelineMetrics

	// Guards keyword index rebuilds against concurrent reads. Shared
	// with the retriever so queries take the read side.
	indexMu *sync.RWMutex
}

type PipelineDeps struct {
	Chunker    ports.Chunker
	Embedder   ports.Embedder
	Vectors    ports.VectorIndex
	Keyword    ports.KeywordIndex
	Retriever  *HybridRetriever
	Reranker   *Reranker
	Confidence *ConfidenceCalculator
	Retrier    ports.Retrier
	IndexMu    *sync.RWMutex
	Logger     *slog.Logger
	Metrics    *metrics.PipelineMetrics
}

func NewPipeline(cfg PipelineConfig, deps PipelineDeps) *Pipeline {
	cfg = cfg.normalize()
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.IndexMu == nil {
		deps.IndexMu = &sync.RWMutex{}
	}
	var limiter *rate.Limiter
	if cfg.BatchInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.BatchInterval), 1)
	}
	return &Pipeline{
		cfg:        cfg,
		chunker:    deps.Chunker,
		embedder:   deps.Embedder,
		vectors:    deps.Vectors,
		keyword:    deps.Keyword,
		retriever:  deps.Retriever,
		reranker:   deps.Reranker,
		confidence: deps.Confidence,
		retrier:    deps.Retrier,
		limiter:    limiter,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		indexMu:    deps.IndexMu,
	}
}

// Ingest chunks each document, embeds the chunks not yet present in
// the vector index and rebuilds the keyword index over the combined
// corpus. Failures are recorded per document and never abort the
// whole batch; documents whose chunks all exist already are counted
// as skipped.
func (p *Pipeline) Ingest(ctx context.Context, docs []domain.CaseDocument) (domain.IngestStats, error) {
	stats := domain.IngestStats{}

	corpus := p.existingCorpus()
	seen := make(map[string]bool, len(corpus))
	for _, c := range corpus {
		seen[c.ID] = true
	}
	indexDirty := false

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		chunks := p.chunker.Chunk(doc)
		if len(chunks) == 0 {
			err := domain.WrapError(domain.ErrExtraction, "chunk document", fmt.Errorf("no usable text"))
			stats.RecordFailure(doc.CaseReference, err)
			p.metrics.DocumentIngested("failed")
			p.logger.Warn("document_skipped", "case_reference", doc.CaseReference, "error", err)
			continue
		}
		stats.ChunksCreated += len(chunks)

		pending, err := p.pendingChunks(ctx, chunks)
		if err != nil {
			stats.RecordFailure(doc.CaseReference, err)
			p.metrics.DocumentIngested("failed")
			p.logger.Error("existence_check_failed", "case_reference", doc.CaseReference, "error", err)
			continue
		}

		if len(pending) > 0 {
			if err := p.embedAndStore(ctx, pending, &stats); err != nil {
				stats.RecordFailure(doc.CaseReference, err)
				p.metrics.DocumentIngested("failed")
				p.logger.Error("document_ingest_failed", "case_reference", doc.CaseReference, "error", err)
				continue
			}
		}

		// The keyword corpus covers every chunk of the document,
		// embedded or skipped, so lexical search stays complete.
		for _, c := range chunks {
			if !seen[c.ID] {
				seen[c.ID] = true
				corpus = append(corpus, c)
				indexDirty = true
			}
		}

		if len(pending) == 0 {
			stats.Skipped++
			p.metrics.DocumentIngested("skipped")
		} else {
			stats.Processed++
			p.metrics.DocumentIngested("processed")
		}
	}

	if indexDirty {
		p.rebuildKeywordIndex(corpus)
		if p.cfg.IndexPath != "" {
			if err := p.keyword.Save(p.cfg.IndexPath); err != nil {
				p.logger.Error("keyword_index_save_failed", "path", p.cfg.IndexPath, "error", err)
			}
		}
	}

	p.logger.Info("ingest_complete",
		"processed", stats.Processed,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"chunks_created", stats.ChunksCreated,
		"chunks_embedded", stats.ChunksEmbedded,
	)

	return stats, nil
}

// Query runs hybrid retrieval, reranks the candidates and attaches a
// confidence verdict. A cold index yields an explicit uncertain
// outcome rather than an error.
func (p *Pipeline) Query(ctx context.Context, text string, topK int, filter domain.SearchFilter, queryRegion string) (domain.QueryOutcome, error) {
	start := time.Now()

	if !p.indexReady() {
		p.logger.Warn("query_before_ingest")
		return domain.QueryOutcome{
			Query:             text,
			Confidence:        0.0,
			IsUncertain:       true,
			UncertaintyReason: reasonIndexNotBuilt,
		}, nil
	}

	candidates, err := p.retriever.Retrieve(ctx, text, p.cfg.RetrievalK, filter)
	if err != nil {
		return domain.QueryOutcome{}, fmt.Errorf("hybrid retrieval: %w", err)
	}

	if len(candidates) == 0 {
		outcome := domain.QueryOutcome{
			Query:             text,
			Confidence:        0.0,
			IsUncertain:       true,
			UncertaintyReason: "No matching cases found in the database.",
			RetrievalTime:     time.Since(start),
		}
		p.metrics.QueryObserved(outcome.RetrievalTime, true)
		return outcome, nil
	}

	reranked := p.reranker.Rerank(candidates, text, queryRegion, topK)
	confidence, uncertain, reason := p.confidence.Score(reranked)

	outcome := domain.QueryOutcome{
		Query:             text,
		Results:           reranked,
		Confidence:        confidence,
		IsUncertain:       uncertain,
		UncertaintyReason: reason,
		TotalCandidates:   len(candidates),
		RetrievalTime:     time.Since(start),
	}

	p.metrics.QueryObserved(outcome.RetrievalTime, uncertain)
	p.logger.Info("retrieval_complete",
		"query_preview", preview(text, 50),
		"num_results", len(reranked),
		"confidence", confidence,
		"is_uncertain", uncertain,
		"duration", outcome.RetrievalTime,
	)

	return outcome, nil
}

// Stats aggregates index and usage counters from every backend.
func (p *Pipeline) Stats(ctx context.Context) (domain.PipelineStats, error) {
	vector, err := p.vectors.Stats(ctx)
	if err != nil {
		return domain.PipelineStats{}, fmt.Errorf("vector stats: %w", err)
	}

	p.indexMu.RLock()
	keyword := p.keyword.Stats()
	p.indexMu.RUnlock()

	return domain.PipelineStats{
		Vector:    vector,
		Keyword:   keyword,
		Embedding: p.embedder.Usage(),
	}, nil
}

// RestoreIndex loads a previously persisted keyword index blob.
func (p *Pipeline) RestoreIndex() error {
	if p.cfg.IndexPath == "" {
		return nil
	}
	p.indexMu.Lock()
	defer p.indexMu.Unlock()
	return p.keyword.Load(p.cfg.IndexPath)
}

func (p *Pipeline) indexReady() bool {
	p.indexMu.RLock()
	defer p.indexMu.RUnlock()
	return p.keyword.IsBuilt()
}

func (p *Pipeline) existingCorpus() []domain.Chunk {
	p.indexMu.RLock()
	defer p.indexMu.RUnlock()
	if !p.keyword.IsBuilt() {
		return nil
	}
	return p.keyword.All()
}

func (p *Pipeline) rebuildKeywordIndex(corpus []domain.Chunk) {
	p.indexMu.Lock()
	defer p.indexMu.Unlock()
	p.keyword.Build(corpus)
}

func (p *Pipeline) pendingChunks(ctx context.Context, chunks []domain.Chunk) ([]domain.Chunk, error) {
	if !p.cfg.SkipExisting {
		return chunks, nil
	}
	pending := make([]domain.Chunk, 0, len(chunks))
	for _, c := range chunks {
		exists, err := p.vectors.Exists(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("check chunk %s: %w", c.ID, err)
		}
		if !exists {
			pending = append(pending, c)
		}
	}
	return pending, nil
}

// embedAndStore embeds chunks in rate-limited batches and upserts
// them into the vector index. Both remote calls go through the
// retrier.
func (p *Pipeline) embedAndStore(ctx context.Context, chunks []domain.Chunk, stats *domain.IngestStats) error {
	for offset := 0; offset < len(chunks); offset += p.cfg.EmbedBatchSize {
		end := min(offset+p.cfg.EmbedBatchSize, len(chunks))
		batch := chunks[offset:end]

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		var (
			vectors [][]float32
			tokens  int
		)
		err := p.retrier.Execute(ctx, "embed_batch", func(callCtx context.Context) error {
			var embedErr error
			vectors, tokens, embedErr = p.embedder.EmbedBatch(callCtx, texts)
			return embedErr
		})
		if err != nil {
			return fmt.Errorf("embed batch at %d: %w", offset, err)
		}

		err = p.retrier.Execute(ctx, "vector_upsert", func(callCtx context.Context) error {
			return p.vectors.Upsert(callCtx, batch, vectors)
		})
		if err != nil {
			return fmt.Errorf("upsert batch at %d: %w", offset, err)
		}

		stats.ChunksEmbedded += len(batch)
		stats.EmbeddingTokens += tokens
		p.metrics.ChunksEmbedded(len(batch), tokens)
	}
	return nil
}
