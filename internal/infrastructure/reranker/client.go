// Package reranker adapts the Reranker port (spec section 4.5) onto an
// external cross-encoder scoring service (bge-reranker-v2-m3, served behind
// a small HTTP wrapper). The service takes a query and a batch of candidate
// texts and returns one relevance score per candidate in [0, 1]; the
// ensemble weighting against dense/lexical scores happens one layer up in
// usecase/rerank.go, not here.
package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
)

// defaultConcurrency sizes the token-bucket rate limiter in front of the
// remote scoring service: at most this many rerank calls start per second,
// with a burst of the same size. It limits how fast calls start, not how
// many are in flight at once.
const defaultConcurrency = 4

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func New(baseURL, model string) *Client {
	return NewWithConcurrency(baseURL, model, defaultConcurrency)
}

// NewWithConcurrency lets the caller size the rate limiter explicitly:
// maxConcurrent is both the rate (calls started per second) and the burst,
// so an idle client can immediately admit that many requests.
func NewWithConcurrency(baseURL, model string, maxConcurrent int) *Client {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultConcurrency
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(maxConcurrent), maxConcurrent),
	}
}

var _ ports.Reranker = (*Client)(nil)

type scoreRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type scoreResponse struct {
	Scores []float64 `json:"scores"`
}

// Score requests one score per candidate, in the same order as candidates.
// A candidate set of size zero is a no-op: the caller (rerank ensemble) is
// responsible for skipping the call entirely when w_ce = 0.
func (c *Client) Score(ctx context.Context, query string, candidates []ports.RerankCandidate) ([]float64, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rerank rate limiter: %w", err)
	}

	texts := make([]string, len(candidates))
	for i, cand := range candidates {
		texts[i] = cand.Text
	}

	reqBody := scoreRequest{Model: c.model, Query: query, Documents: texts}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &StatusError{Operation: "rerank", cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, formatRerankerHTTPError(resp)
	}

	var parsed scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	if len(parsed.Scores) != len(candidates) {
		return nil, fmt.Errorf("rerank response has %d scores for %d candidates", len(parsed.Scores), len(candidates))
	}
	for i, s := range parsed.Scores {
		if s < 0 {
			parsed.Scores[i] = 0
		}
		if s > 1 {
			parsed.Scores[i] = 1
		}
	}
	return parsed.Scores, nil
}

type StatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
	cause      error
}

func (e *StatusError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("reranker %s request: %v", e.Operation, e.cause)
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("reranker %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("reranker %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func (e *StatusError) Unwrap() error {
	return e.cause
}

func formatRerankerHTTPError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &StatusError{
		Operation:  "rerank",
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
}
