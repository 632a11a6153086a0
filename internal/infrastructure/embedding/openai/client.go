// Package openai adapts an OpenAI-compatible embeddings endpoint to
// the core Embedder port. Token usage reported by the provider is
// accumulated for cost accounting.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/casewise/precedent-retrieval/internal/core/domain"
)

const defaultModel = "text-embedding-3-small"

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client

	mu    sync.Mutex
	usage domain.EmbeddingUsage
}

func New(baseURL, apiKey, model string) *Client {
	if model == "" {
		model = defaultModel
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// EmbedBatch embeds texts in one request, preserving input order, and
// returns the provider-reported token count for the call.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, int, error) {
	if len(texts) == 0 {
		return nil, 0, nil
	}

	reqBody, err := json.Marshal(map[string]any{
		"model": c.model,
		"input": texts,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("marshal embeddings body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/embeddings", bytes.NewReader(reqBody))
	if err != nil {
		return nil, 0, fmt.Errorf("create embeddings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, domain.WrapError(domain.ErrEmbedding, "embeddings request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		err := fmt.Errorf("status %s: %s", resp.Status, strings.TrimSpace(string(msg)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, 0, domain.WrapError(domain.ErrEmbedding, "embeddings request", err)
		}
		return nil, 0, fmt.Errorf("embeddings request: %w", err)
	}

	var embResp struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
		Usage struct {
			PromptTokens int `json:"prompt_tokens"`
			TotalTokens  int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, 0, fmt.Errorf("decode embeddings response: %w", err)
	}
	if len(embResp.Data) != len(texts) {
		return nil, 0, domain.WrapError(
			domain.ErrEmbedding,
			"embeddings request",
			fmt.Errorf("vectors/texts mismatch: %d/%d", len(embResp.Data), len(texts)),
		)
	}

	// The API is expected to preserve order; sort by index anyway.
	sort.Slice(embResp.Data, func(i, j int) bool { return embResp.Data[i].Index < embResp.Data[j].Index })

	vectors := make([][]float32, len(embResp.Data))
	for i, d := range embResp.Data {
		vectors[i] = d.Embedding
	}

	tokens := embResp.Usage.TotalTokens
	if tokens == 0 {
		tokens = embResp.Usage.PromptTokens
	}
	c.recordUsage(tokens)

	return vectors, tokens, nil
}

// EmbedQuery embeds a single query string.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, _, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Usage returns cumulative request and token counts.
func (c *Client) Usage() domain.EmbeddingUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

func (c *Client) recordUsage(tokens int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.usage.Requests++
	c.usage.Tokens += tokens
}
