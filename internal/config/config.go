package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	LogLevel string

	EmbeddingURL    string
	EmbeddingAPIKey string
	EmbeddingModel  string
	EmbedBatchSize  int
	BatchIntervalMS int

	QdrantURL        string
	QdrantCollection string

	KeywordIndexPath string
	KeywordLiteMode  bool
	LexiconPath      string

	ChunkSize    int
	ChunkOverlap int

	RetrievalK     int
	TopK           int
	RRFK           int
	SemanticWeight float64

	IssueWeight    float64
	TemporalWeight float64
	RegionWeight   float64
	EvidenceWeight float64
	OriginalWeight float64

	ConfidenceThreshold float64

	SkipExisting bool

	MetricsPort string
}

func Load() Config {
	return Config{
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		EmbeddingURL:    mustEnv("EMBEDDING_URL", "https://api.openai.com"),
		EmbeddingAPIKey: mustEnv("EMBEDDING_API_KEY", ""),
		EmbeddingModel:  mustEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbedBatchSize:  mustEnvInt("EMBED_BATCH_SIZE", 50),
		BatchIntervalMS: mustEnvInt("EMBED_BATCH_INTERVAL_MS", 100),

		QdrantURL:        mustEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: mustEnv("QDRANT_COLLECTION", "tribunal_cases"),

		KeywordIndexPath: mustEnv("KEYWORD_INDEX_PATH", "./data/bm25_index.gob"),
		KeywordLiteMode:  mustEnvBool("KEYWORD_LITE_MODE", false),
		LexiconPath:      mustEnv("LEXICON_PATH", ""),

		ChunkSize:    mustEnvInt("CHUNK_SIZE", 500),
		ChunkOverlap: mustEnvInt("CHUNK_OVERLAP", 50),

		RetrievalK:     mustEnvInt("INITIAL_RETRIEVAL_K", 20),
		TopK:           mustEnvInt("FINAL_TOP_K", 5),
		RRFK:           mustEnvInt("RRF_K", 60),
		SemanticWeight: mustEnvFloat("SEMANTIC_WEIGHT", 0.7),

		IssueWeight:    mustEnvFloat("RERANK_ISSUE_WEIGHT", 0.4),
		TemporalWeight: mustEnvFloat("RERANK_TEMPORAL_WEIGHT", 0.2),
		RegionWeight:   mustEnvFloat("RERANK_REGION_WEIGHT", 0.1),
		EvidenceWeight: mustEnvFloat("RERANK_EVIDENCE_WEIGHT", 0.2),
		OriginalWeight: mustEnvFloat("RERANK_ORIGINAL_WEIGHT", 0.1),

		ConfidenceThreshold: mustEnvFloat("MIN_CONFIDENCE_THRESHOLD", 0.5),

		SkipExisting: mustEnvBool("SKIP_EXISTING_CHUNKS", true),

		MetricsPort: mustEnv("METRICS_PORT", "9090"),
	}
}

// BatchInterval returns the pause between embedding batches.
func (c Config) BatchInterval() time.Duration {
	return time.Duration(c.BatchIntervalMS) * time.Millisecond
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
