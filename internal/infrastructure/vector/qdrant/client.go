// Package qdrant adapts the Vector Store port (spec section 4.3) onto a
// Qdrant-compatible HTTP search API. The ingestion-time write path
// (IndexChunks in the teacher) is dropped: spec section 1's Non-goals rule
// out "no write path to the vector store at query time", and the vector
// store is populated offline by the ingestion collaborator this core treats
// as external.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
)

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

var _ ports.VectorStore = (*Client)(nil)

// Search performs k-nearest-neighbour search with the conjunction filter
// from spec section 4.3: equality on tier, set-membership on chunk_type and
// procedure_id.
func (c *Client) Search(
	ctx context.Context,
	queryVector []float32,
	k int,
	filter ports.VectorFilter,
) ([]ports.ScoredChunkID, error) {
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        k,
		"with_payload": true,
	}
	if must := buildFilterConditions(filter); len(must) > 0 {
		reqBody["filter"] = map[string]any{"must": must}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &StatusError{Operation: "search", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, formatQdrantHTTPError("search", resp)
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

	out := make([]ports.ScoredChunkID, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, ports.ScoredChunkID{
			ChunkID: getStringPayload(r.Payload, "chunk_id"),
			Score:   r.Score,
		})
	}
	return out, nil
}

func buildFilterConditions(filter ports.VectorFilter) []map[string]any {
	var must []map[string]any

	if filter.HasTier() {
		must = append(must, map[string]any{
			"key":   "tier",
			"match": map[string]any{"value": string(filter.Tier)},
		})
	}
	if len(filter.ChunkTypes) > 0 {
		values := make([]string, len(filter.ChunkTypes))
		for i, ct := range filter.ChunkTypes {
			values[i] = string(ct)
		}
		must = append(must, map[string]any{
			"key":   "chunk_type",
			"match": map[string]any{"any": values},
		})
	}
	if len(filter.ProcedureIDs) > 0 {
		must = append(must, map[string]any{
			"key":   "procedure_id",
			"match": map[string]any{"any": filter.ProcedureIDs},
		})
	}
	return must
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func formatQdrantHTTPError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	msg := strings.TrimSpace(string(body))
	return &StatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       msg,
	}
}

// StatusError wraps a Qdrant HTTP failure, distinguished from a transport
// error so the resilience classifier (resilience.go) can tell retryable
// statuses apart from connection failures.
type StatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
	Err        error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("qdrant %s request: %v", e.Operation, e.Err)
	}
	if e.Body == "" {
		return fmt.Sprintf("qdrant %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("qdrant %s status: %s: %s", e.Operation, e.Status, e.Body)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// asDegradable maps any Search failure to domain.ErrDegraded context; callers
// in the orchestrator decide whether the overall pipeline continues
// BM25-only or fails as NoChannels.
func asDegradable(operation string, err error) error {
	if err == nil {
		return nil
	}
	return domain.WrapError(domain.ErrDegraded, operation, err)
}
