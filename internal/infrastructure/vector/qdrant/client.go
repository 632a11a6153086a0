// Package qdrant adapts a Qdrant collection to the core VectorIndex
// port. Point IDs are derived deterministically from chunk IDs so
// re-ingesting an unchanged document overwrites rather than duplicates.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/casewise/precedent-retrieval/internal/core/domain"
)

// pointNamespace seeds the UUIDv5 derivation of point IDs from chunk
// IDs. Changing it orphans every stored point.
var pointNamespace = uuid.MustParse("8f2f9f3e-4c1a-4b58-9c44-1d2b7a6a9e01")

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// PointID returns the deterministic Qdrant point ID for a chunk.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

// Upsert writes chunk vectors and denormalized metadata. Chunks and
// vectors correspond positionally.
func (c *Client) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors))
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(chunks))
	for i, chunk := range chunks {
		points = append(points, point{
			ID:     PointID(chunk.ID),
			Vector: vectors[i],
			Payload: map[string]any{
				"chunk_id":       chunk.ID,
				"case_reference": chunk.CaseReference,
				"chunk_index":    chunk.Index,
				"section_type":   string(chunk.Section),
				"year":           chunk.Year,
				"region":         chunk.Region,
				"case_type":      chunk.CaseType,
				"text":           chunk.Text,
			},
		})
	}

	body, err := json.Marshal(map[string]any{"points": points})
	if err != nil {
		return fmt.Errorf("marshal upsert body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	resp, err := c.do(ctx, http.MethodPut, url, body)
	if err != nil {
		return fmt.Errorf("qdrant upsert request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return domain.WrapError(domain.ErrTemporary, "qdrant upsert", fmt.Errorf("status %s", resp.Status))
	}
	return nil
}

// Query returns the nearest neighbours of the query vector, honoring
// the metadata filter, ordered by similarity descending with 1-based
// ranks assigned.
func (c *Client) Query(
	ctx context.Context,
	queryVector []float32,
	topK int,
	filter domain.SearchFilter,
) ([]domain.RetrievalCandidate, error) {
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        topK,
		"with_payload": true,
	}
	if must := filterMust(filter); len(must) > 0 {
		reqBody["filter"] = map[string]any{"must": must}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	resp, err := c.do(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "qdrant search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, domain.WrapError(domain.ErrTemporary, "qdrant search", fmt.Errorf("status %s", resp.Status))
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.RetrievalCandidate, 0, len(searchResp.Result))
	for i, r := range searchResp.Result {
		out = append(out, domain.RetrievalCandidate{
			ChunkID:       payloadString(r.Payload, "chunk_id"),
			CaseReference: payloadString(r.Payload, "case_reference"),
			Text:          payloadString(r.Payload, "text"),
			Section:       domain.SectionType(payloadString(r.Payload, "section_type")),
			Year:          payloadInt(r.Payload, "year"),
			Region:        payloadString(r.Payload, "region"),
			CaseType:      payloadString(r.Payload, "case_type"),
			Score:         r.Score,
			Rank:          i + 1,
		})
	}
	return out, nil
}

// Exists reports whether the chunk's point is already stored.
func (c *Client) Exists(ctx context.Context, chunkID string) (bool, error) {
	body, err := json.Marshal(map[string]any{"ids": []string{PointID(chunkID)}})
	if err != nil {
		return false, fmt.Errorf("marshal retrieve body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points", c.baseURL, c.collection)
	resp, err := c.do(ctx, http.MethodPost, url, body)
	if err != nil {
		return false, domain.WrapError(domain.ErrTemporary, "qdrant retrieve", err)
	}
	defer resp.Body.Close()

	// A missing collection simply means nothing was ingested yet.
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode >= 300 {
		return false, domain.WrapError(domain.ErrTemporary, "qdrant retrieve", fmt.Errorf("status %s", resp.Status))
	}

	var retrieveResp struct {
		Result []json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&retrieveResp); err != nil {
		return false, fmt.Errorf("decode retrieve response: %w", err)
	}
	return len(retrieveResp.Result) > 0, nil
}

// Stats reports the collection size and, via the facet API, how many
// distinct case references it holds. Facet failures degrade to a zero
// distinct count rather than failing the stats call.
func (c *Client) Stats(ctx context.Context) (domain.VectorStats, error) {
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	resp, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.VectorStats{}, domain.WrapError(domain.ErrTemporary, "qdrant collection info", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.VectorStats{}, nil
	}
	if resp.StatusCode >= 300 {
		return domain.VectorStats{}, domain.WrapError(domain.ErrTemporary, "qdrant collection info", fmt.Errorf("status %s", resp.Status))
	}

	var infoResp struct {
		Result struct {
			PointsCount int `json:"points_count"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&infoResp); err != nil {
		return domain.VectorStats{}, fmt.Errorf("decode collection info: %w", err)
	}

	stats := domain.VectorStats{TotalChunks: infoResp.Result.PointsCount}
	stats.DistinctDocuments = c.distinctCaseCount(ctx)
	return stats, nil
}

func (c *Client) distinctCaseCount(ctx context.Context) int {
	body, err := json.Marshal(map[string]any{"key": "case_reference", "limit": 10000})
	if err != nil {
		return 0
	}
	url := fmt.Sprintf("%s/collections/%s/facet", c.baseURL, c.collection)
	resp, err := c.do(ctx, http.MethodPost, url, body)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return 0
	}

	var facetResp struct {
		Result struct {
			Hits []json.RawMessage `json:"hits"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&facetResp); err != nil {
		return 0
	}
	return len(facetResp.Result.Hits)
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	body, err := json.Marshal(map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	})
	if err != nil {
		return fmt.Errorf("marshal create collection body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	resp, err := c.do(ctx, http.MethodPut, url, body)
	if err != nil {
		return fmt.Errorf("qdrant ensure collection request: %w", err)
	}
	defer resp.Body.Close()

	// 200/201 on create, 409 if it already exists.
	if resp.StatusCode == http.StatusConflict {
		c.markCollectionEnsured(vectorSize)
		return nil
	}
	if resp.StatusCode >= 300 {
		msgBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(msgBytes)); msg != "" {
			return fmt.Errorf("qdrant ensure collection status: %s: %s", resp.Status, msg)
		}
		return fmt.Errorf("qdrant ensure collection status: %s", resp.Status)
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

func filterMust(filter domain.SearchFilter) []map[string]any {
	var must []map[string]any
	match := func(key string, value any) map[string]any {
		return map[string]any{"key": key, "match": map[string]any{"value": value}}
	}
	if filter.Year != 0 {
		must = append(must, match("year", filter.Year))
	}
	if filter.Region != "" {
		must = append(must, match("region", filter.Region))
	}
	if filter.CaseType != "" {
		must = append(must, match("case_type", filter.CaseType))
	}
	return must
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func payloadInt(payload map[string]any, key string) int {
	v, ok := payload[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	}
	return 0
}
