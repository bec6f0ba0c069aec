package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
)

type stubReranker struct {
	scores []float64
	err    error
}

func (s *stubReranker) Score(ctx context.Context, query string, candidates []ports.RerankCandidate) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.scores, nil
}

func itemWithScores(id string, dense, lex float64) domain.RetrievedItem {
	return domain.RetrievedItem{Chunk: domain.Chunk{ChunkID: id}, DenseScoreRaw: dense, LexicalScoreRaw: lex}
}

func TestNewRerankerNormalisesWeightsThatDontSumToOne(t *testing.T) {
	r := NewReranker(nil, 1.1, 0.7, 0.2, 20)
	sum := r.weightDense + r.weightLex + r.weightCE
	if diff := sum - 1.0; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected normalised weights to sum to 1, got %v", sum)
	}
}

func TestRerankSkipsCrossEncoderWhenWeightZero(t *testing.T) {
	model := &stubReranker{err: errors.New("should not be called")}
	r := NewReranker(model, 0.55, 0.45, 0, 20)

	fused := []domain.RetrievedItem{itemWithScores("a", 1.0, 0.5), itemWithScores("b", 0.5, 1.0)}
	out := r.Rerank(context.Background(), "query", fused, map[string]string{"a": "x", "b": "y"}, 10)
	if len(out) != 2 {
		t.Fatalf("expected 2 items, got %d", len(out))
	}
}

func TestRerankFallsBackToFusedOrderOnModelError(t *testing.T) {
	model := &stubReranker{err: errors.New("service down")}
	r := NewReranker(model, 0.55, 0.35, 0.10, 20)

	fused := []domain.RetrievedItem{itemWithScores("a", 1.0, 0.0), itemWithScores("b", 0.0, 1.0)}
	out := r.Rerank(context.Background(), "query", fused, map[string]string{"a": "x", "b": "y"}, 10)
	if len(out) != 2 {
		t.Fatalf("expected fallback to keep both items, got %d", len(out))
	}
}

func TestRerankAppliesCrossEncoderScores(t *testing.T) {
	model := &stubReranker{scores: []float64{0.1, 0.9}}
	r := NewReranker(model, 0.0, 0.0, 1.0, 20)

	fused := []domain.RetrievedItem{itemWithScores("a", 0, 0), itemWithScores("b", 0, 0)}
	out := r.Rerank(context.Background(), "query", fused, map[string]string{"a": "x", "b": "y"}, 10)
	if out[0].Chunk.ChunkID != "b" {
		t.Fatalf("expected b (higher CE score) to rank first, got %s", out[0].Chunk.ChunkID)
	}
}

func TestRerankCapsAtTopNCap(t *testing.T) {
	r := NewReranker(nil, 0.55, 0.45, 0, 2)
	fused := []domain.RetrievedItem{
		itemWithScores("a", 1.0, 0),
		itemWithScores("b", 0.5, 0),
		itemWithScores("c", 0.2, 0),
	}
	out := r.Rerank(context.Background(), "query", fused, map[string]string{"a": "x", "b": "y", "c": "z"}, 10)
	if len(out) != 2 {
		t.Fatalf("expected topNCap to limit to 2, got %d", len(out))
	}
}

func TestRerankTopKDefaultFormula(t *testing.T) {
	cfg := domain.ContextConfig{Chunks: 2, MaxDescendants: 5}
	if got := RerankTopK(cfg, 20); got != 12 {
		t.Fatalf("expected 2*(1+5)=12, got %d", got)
	}
}

func TestRerankTopKCappedAtTwenty(t *testing.T) {
	cfg := domain.ContextConfig{Chunks: 3, MaxDescendants: 40}
	if got := RerankTopK(cfg, 20); got != 20 {
		t.Fatalf("expected cap at 20, got %d", got)
	}
}
