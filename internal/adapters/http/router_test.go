package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
	"github.com/kirillkom/personal-ai-assistant/internal/observability/metrics"
)

type stubRetriever struct {
	result domain.RetrievalResult
	err    error
}

func (s *stubRetriever) Retrieve(ctx context.Context, sessionID, question string) (domain.RetrievalResult, error) {
	return s.result, s.err
}

func (s *stubRetriever) CacheStats() domain.CacheStats {
	return domain.CacheStats{Size: 3, Hits: 10, Misses: 2}
}

func (s *stubRetriever) ClearCache() {}

func (s *stubRetriever) ClearExpiredCache() {}

func (s *stubRetriever) LexicalStats() ports.LexicalStats {
	return ports.LexicalStats{NumDocs: 42, K1: 1.5, B: 0.75}
}

func (s *stubRetriever) Config() any {
	return map[string]any{"rrf_k": 60}
}

func newTestRouter(retriever ports.Retriever) http.Handler {
	return NewRouter(retriever, metrics.NewHTTPServerMetrics("test"), metrics.NewCacheJanitorMetrics("test"), "test").Handler()
}

func TestRetrieveReturnsAssembledResult(t *testing.T) {
	retriever := &stubRetriever{result: domain.RetrievalResult{
		Intent:      domain.IntentDocuments,
		ContextText: "danh sách giấy tờ cần thiết",
		Confidence:  0.87,
		Chunks:      []domain.RetrievedItem{{Chunk: domain.Chunk{ChunkID: "c1"}}},
	}}
	handler := newTestRouter(retriever)

	body, _ := json.Marshal(map[string]string{"question": "cần giấy tờ gì để đăng ký kết hôn"})
	req := httptest.NewRequest(http.MethodPost, "/v1/retrieve", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got domain.RetrievalResult
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Intent != domain.IntentDocuments || got.Confidence != 0.87 {
		t.Fatalf("unexpected response: %+v", got)
	}
}

func TestRetrieveRejectsEmptyQuestion(t *testing.T) {
	handler := newTestRouter(&stubRetriever{})

	body, _ := json.Marshal(map[string]string{"question": "  "})
	req := httptest.NewRequest(http.MethodPost, "/v1/retrieve", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRetrieveMapsNoChannelsErrorToServiceUnavailable(t *testing.T) {
	retriever := &stubRetriever{err: domain.WrapError(domain.ErrNoChannels, "retrieve", domain.ErrNoChannels)}
	handler := newTestRouter(retriever)

	body, _ := json.Marshal(map[string]string{"question": "cần giấy tờ gì"})
	req := httptest.NewRequest(http.MethodPost, "/v1/retrieve", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestCacheStatsReturnsCurrentSnapshot(t *testing.T) {
	handler := newTestRouter(&stubRetriever{})

	req := httptest.NewRequest(http.MethodGet, "/v1/cache/stats", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats domain.CacheStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stats.Size != 3 || stats.Hits != 10 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestHealthzReportsOK(t *testing.T) {
	handler := newTestRouter(&stubRetriever{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
