// Package ollama adapts the Embedder port (spec section 6) onto Ollama's
// /api/embed endpoint. A content-hash keyed LRU cache sits in front of the
// HTTP call: distinct from the semantic RetrievalResult cache (section 4.4),
// this one only avoids re-embedding identical text within a process
// lifetime.
package ollama

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
)

const embeddingCacheSize = 2048

// Embedder calls Ollama's embedding endpoint and caches results by a hash of
// the input text.
type Embedder struct {
	baseURL    string
	model      string
	httpClient *http.Client
	cache      *lru.Cache[string, []float32]
}

func New(baseURL, model string) *Embedder {
	cache, _ := lru.New[string, []float32](embeddingCacheSize)
	return &Embedder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      cache,
	}
}

var _ ports.Embedder = (*Embedder)(nil)

// Embed returns the 1024-dimension vector for text (spec section 4.3/6).
// The same model must be used at index and query time; changing it
// invalidates the vector store, so the model is fixed at construction.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := contentHash(text)
	if vec, ok := e.cache.Get(key); ok {
		return vec, nil
	}

	reqBody := map[string]any{
		"model": e.model,
		"input": text,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, &StatusError{Operation: "embed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &StatusError{Operation: "embed", StatusCode: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(respBody))}
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(response.Embeddings) == 0 {
		return nil, fmt.Errorf("ollama embed: empty embeddings result")
	}

	vec := response.Embeddings[0]
	e.cache.Add(key, vec)
	return vec, nil
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// StatusError wraps an Ollama embed HTTP failure, mirroring the shape used
// by the llm/ollama analyser adapter for consistent resilience
// classification across both Ollama-backed collaborators.
type StatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
	Err        error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ollama %s request: %v", e.Operation, e.Err)
	}
	if e.Body == "" {
		return fmt.Sprintf("ollama %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("ollama %s status: %s: %s", e.Operation, e.Status, e.Body)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}
