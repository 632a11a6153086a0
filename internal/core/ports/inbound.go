package ports

import (
	"context"

	"github.com/casewise/precedent-retrieval/internal/core/domain"
)

// CaseIngestor is the inbound contract for indexing extracted case
// documents.
type CaseIngestor interface {
	Ingest(ctx context.Context, docs []domain.CaseDocument) (domain.IngestStats, error)
}

// PrecedentSearcher is the inbound contract for retrieving ranked,
// confidence-scored precedent passages.
type PrecedentSearcher interface {
	Query(ctx context.Context, text string, topK int, filter domain.SearchFilter, queryRegion string) (domain.QueryOutcome, error)
}
