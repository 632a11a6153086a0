// Package bootstrap wires configuration, adapters and use cases into
// a runnable application. Construction is explicit so alternate
// embedding or vector backends can be swapped in tests.
package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/casewise/precedent-retrieval/internal/config"
	"github.com/casewise/precedent-retrieval/internal/core/usecase"
	"github.com/casewise/precedent-retrieval/internal/infrastructure/chunking"
	"github.com/casewise/precedent-retrieval/internal/infrastructure/embedding/openai"
	"github.com/casewise/precedent-retrieval/internal/infrastructure/keyword"
	"github.com/casewise/precedent-retrieval/internal/infrastructure/resilience"
	"github.com/casewise/precedent-retrieval/internal/infrastructure/vector/qdrant"
	"github.com/casewise/precedent-retrieval/internal/observability/metrics"
)

type App struct {
	Config   config.Config
	Pipeline *usecase.Pipeline
	Metrics  *metrics.PipelineMetrics
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	chunker, err := chunking.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("init chunker: %w", err)
	}

	lexicon := usecase.DefaultLexicon()
	if cfg.LexiconPath != "" {
		lexicon, err = usecase.LoadLexicon(cfg.LexiconPath)
		if err != nil {
			return nil, fmt.Errorf("load lexicon: %w", err)
		}
	}

	embedder := openai.New(cfg.EmbeddingURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel)
	vectors := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)

	indexOpts := []keyword.Option{keyword.WithLogger(logger)}
	if cfg.KeywordLiteMode {
		indexOpts = append(indexOpts, keyword.WithLiteMode())
	}
	keywordIndex := keyword.New(indexOpts...)

	indexMu := &sync.RWMutex{}
	executor := resilience.NewExecutor(resilience.DefaultConfig(), logger)
	retriever := usecase.NewHybridRetriever(
		embedder,
		vectors,
		keywordIndex,
		executor,
		indexMu,
		usecase.RetrieverConfig{RRFK: cfg.RRFK, SemanticWeight: cfg.SemanticWeight},
		logger,
	)

	pipelineMetrics := metrics.NewPipelineMetrics()

	pipeline := usecase.NewPipeline(
		usecase.PipelineConfig{
			EmbedBatchSize: cfg.EmbedBatchSize,
			BatchInterval:  cfg.BatchInterval(),
			RetrievalK:     cfg.RetrievalK,
			IndexPath:      cfg.KeywordIndexPath,
			SkipExisting:   cfg.SkipExisting,
		},
		usecase.PipelineDeps{
			Chunker:  chunker,
			Embedder: embedder,
			Vectors:  vectors,
			Keyword:  keywordIndex,
			Retriever: retriever,
			Reranker: usecase.NewReranker(usecase.RerankWeights{
				Issue:    cfg.IssueWeight,
				Temporal: cfg.TemporalWeight,
				Region:   cfg.RegionWeight,
				Evidence: cfg.EvidenceWeight,
				Original: cfg.OriginalWeight,
			}, lexicon),
			Confidence: usecase.NewConfidenceCalculator(usecase.ConfidenceConfig{
				Threshold: cfg.ConfidenceThreshold,
			}),
			Retrier: executor,
			IndexMu: indexMu,
			Logger:  logger,
			Metrics: pipelineMetrics,
		},
	)

	if cfg.KeywordIndexPath != "" {
		if _, statErr := os.Stat(cfg.KeywordIndexPath); statErr == nil {
			if err := pipeline.RestoreIndex(); err != nil {
				logger.Warn("keyword_index_restore_failed", "path", cfg.KeywordIndexPath, "error", err)
			}
		}
	}

	return &App{
		Config:   cfg,
		Pipeline: pipeline,
		Metrics:  pipelineMetrics,
	}, nil
}
