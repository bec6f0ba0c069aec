package reranker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
)

func TestScoreReturnsOneScorePerCandidateInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload scoreRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(payload.Documents) != 2 {
			t.Fatalf("expected 2 documents, got %d", len(payload.Documents))
		}
		_ = json.NewEncoder(w).Encode(scoreResponse{Scores: []float64{0.9, 0.2}})
	}))
	defer server.Close()

	client := New(server.URL, "bge-reranker-v2-m3")
	scores, err := client.Score(context.Background(), "query", []ports.RerankCandidate{
		{ChunkID: "a", Text: "chunk a"},
		{ChunkID: "b", Text: "chunk b"},
	})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(scores) != 2 || scores[0] != 0.9 || scores[1] != 0.2 {
		t.Fatalf("unexpected scores: %v", scores)
	}
}

func TestScoreEmptyCandidatesIsNoOp(t *testing.T) {
	client := New("http://unused", "bge-reranker-v2-m3")
	scores, err := client.Score(context.Background(), "query", nil)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if scores != nil {
		t.Fatalf("expected nil scores, got %v", scores)
	}
}

func TestScoreClampsOutOfRangeValues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(scoreResponse{Scores: []float64{1.5, -0.3}})
	}))
	defer server.Close()

	client := New(server.URL, "bge-reranker-v2-m3")
	scores, err := client.Score(context.Background(), "query", []ports.RerankCandidate{
		{ChunkID: "a", Text: "chunk a"},
		{ChunkID: "b", Text: "chunk b"},
	})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if scores[0] != 1 || scores[1] != 0 {
		t.Fatalf("expected clamped scores, got %v", scores)
	}
}

func TestScoreMismatchedCountIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(scoreResponse{Scores: []float64{0.5}})
	}))
	defer server.Close()

	client := New(server.URL, "bge-reranker-v2-m3")
	_, err := client.Score(context.Background(), "query", []ports.RerankCandidate{
		{ChunkID: "a", Text: "chunk a"},
		{ChunkID: "b", Text: "chunk b"},
	})
	if err == nil {
		t.Fatal("expected mismatched-count error")
	}
}

func TestScoreStatusErrorIncludesResponseBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "reranker overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, "bge-reranker-v2-m3")
	_, err := client.Score(context.Background(), "query", []ports.RerankCandidate{{ChunkID: "a", Text: "chunk a"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "reranker overloaded") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestClassifyErrorRetriesServerErrors(t *testing.T) {
	err := &StatusError{Operation: "rerank", StatusCode: http.StatusServiceUnavailable}
	classification := ClassifyError(err)
	if !classification.Retryable {
		t.Fatal("expected 503 to be retryable")
	}
}

func TestClassifyErrorDoesNotRetryClientErrors(t *testing.T) {
	err := &StatusError{Operation: "rerank", StatusCode: http.StatusBadRequest}
	classification := ClassifyError(err)
	if classification.Retryable {
		t.Fatal("expected 400 to not be retryable")
	}
}
