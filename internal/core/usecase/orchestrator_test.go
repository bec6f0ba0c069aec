package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type fakeVectorStore struct {
	byTier map[domain.Tier][]ports.ScoredChunkID
	err    error
}

func (f *fakeVectorStore) Search(ctx context.Context, queryVector []float32, k int, filter ports.VectorFilter) ([]ports.ScoredChunkID, error) {
	if f.err != nil {
		return nil, f.err
	}
	results := f.byTier[filter.Tier]
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

type fakeLexicalIndex struct {
	results []ports.ScoredChunkID
	err     error
}

func (f *fakeLexicalIndex) Search(ctx context.Context, query string, k int) ([]ports.ScoredChunkID, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeLexicalIndex) Stats() ports.LexicalStats { return ports.LexicalStats{} }

type fakeChunkStore struct {
	byID        map[string]domain.Chunk
	byProcedure map[string][]domain.Chunk
	getDelay    time.Duration
}

func (f *fakeChunkStore) Get(ctx context.Context, chunkID string) (domain.Chunk, error) {
	if f.getDelay > 0 {
		time.Sleep(f.getDelay)
	}
	c, ok := f.byID[chunkID]
	if !ok {
		return domain.Chunk{}, domain.ErrNotFound
	}
	return c, nil
}

func (f *fakeChunkStore) ByProcedure(ctx context.Context, procedureID string) ([]domain.Chunk, error) {
	return f.byProcedure[procedureID], nil
}

func (f *fakeChunkStore) All(ctx context.Context) ([]domain.Chunk, error) {
	return nil, nil
}

type fakeCache struct {
	stored map[string]domain.RetrievalResult
	puts   int
}

func newFakeCache() *fakeCache { return &fakeCache{stored: map[string]domain.RetrievalResult{}} }

func (f *fakeCache) Get(question string, embedding []float32) (domain.RetrievalResult, bool) {
	r, ok := f.stored[question]
	return r, ok
}

func (f *fakeCache) Put(question string, embedding []float32, result domain.RetrievalResult) {
	f.puts++
	f.stored[question] = result
}

func buildFixture() (*fakeChunkStore, *fakeVectorStore, *fakeLexicalIndex, *fakeEmbedder) {
	chunks := &fakeChunkStore{
		byID: map[string]domain.Chunk{
			"p1": {ChunkID: "p1", ProcedureID: "1.013124", Tier: domain.TierParent, ChunkType: domain.ChunkTypeOverview, Content: "tổng quan", TokenCount: 5},
			"c1": {ChunkID: "c1", ProcedureID: "1.013124", Tier: domain.TierChild, ChunkType: domain.ChunkTypeDocuments, Content: "giấy tờ cần nộp", TokenCount: 5},
			"c2": {ChunkID: "c2", ProcedureID: "1.013124", Tier: domain.TierChild, ChunkType: domain.ChunkTypeDocuments, Content: "hồ sơ đăng ký", TokenCount: 5},
		},
		byProcedure: map[string][]domain.Chunk{
			"1.013124": {
				{ChunkID: "p1", ProcedureID: "1.013124", Tier: domain.TierParent, ChunkType: domain.ChunkTypeOverview, Content: "tổng quan", TokenCount: 5},
				{ChunkID: "c1", ProcedureID: "1.013124", Tier: domain.TierChild, ChunkType: domain.ChunkTypeDocuments, Content: "giấy tờ cần nộp", TokenCount: 5},
			},
		},
	}
	vectorStore := &fakeVectorStore{byTier: map[domain.Tier][]ports.ScoredChunkID{
		domain.TierParent: {{ChunkID: "p1", Score: 0.9}},
		domain.TierChild:  {{ChunkID: "c1", Score: 0.8}},
	}}
	lexical := &fakeLexicalIndex{results: []ports.ScoredChunkID{{ChunkID: "c2", Score: 5.0}}}
	embedder := &fakeEmbedder{vector: []float32{1, 0, 0}}
	return chunks, vectorStore, lexical, embedder
}

func buildOrchestrator(llm ports.LLMAnalyser, chunks *fakeChunkStore, vectorStore *fakeVectorStore, lexical *fakeLexicalIndex, embedder *fakeEmbedder, cache Cache) *Orchestrator {
	analyser := NewAnalyser(llm, nil)
	reranker := NewReranker(nil, 0.55, 0.45, 0, 20)
	assembler := NewAssembler(chunks, 1200)
	timeouts := Timeouts{Embedder: time.Second, VectorStore: time.Second, LLM: time.Second, Reranker: time.Second, Request: 5 * time.Second}
	cfg := Config{CrossTierPenalty: 0.8, TopKParent: 5, TopKChild: 100, RRFK: 60, RerankTopNCap: 20}
	return NewOrchestrator(analyser, embedder, vectorStore, lexical, chunks, reranker, assembler, cache, timeouts, cfg, nil)
}

func TestRetrieveHappyPathReturnsAssembledResult(t *testing.T) {
	chunks, vectorStore, lexical, embedder := buildFixture()
	llm := &stubLLMAnalyser{intent: domain.IntentDocuments, confidence: 0.9}
	orch := buildOrchestrator(llm, chunks, vectorStore, lexical, embedder, newFakeCache())

	result, err := orch.Retrieve(context.Background(), "session-1", "giấy tờ cần nộp gì cho thủ tục này")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if result.IsEmpty() {
		t.Fatal("expected non-empty result")
	}
	if result.Metadata.Degraded {
		t.Fatalf("expected non-degraded result, got metadata %+v", result.Metadata)
	}
}

func TestRetrieveReturnsCachedResultOnHit(t *testing.T) {
	chunks, vectorStore, lexical, embedder := buildFixture()
	llm := &stubLLMAnalyser{intent: domain.IntentOverview, confidence: 0.5}
	cache := newFakeCache()
	cache.stored["câu hỏi đã cache"] = domain.RetrievalResult{ContextText: "cached answer"}
	orch := buildOrchestrator(llm, chunks, vectorStore, lexical, embedder, cache)

	result, err := orch.Retrieve(context.Background(), "session-1", "câu hỏi đã cache")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if result.ContextText != "cached answer" {
		t.Fatalf("expected cached result, got %+v", result)
	}
}

func TestRetrieveExactCodeFastPathSkipsFusion(t *testing.T) {
	chunks, vectorStore, lexical, embedder := buildFixture()
	llm := &stubLLMAnalyser{intent: domain.IntentOverview, confidence: 0.5}
	orch := buildOrchestrator(llm, chunks, vectorStore, lexical, embedder, newFakeCache())

	result, err := orch.Retrieve(context.Background(), "session-1", "Thủ tục 1.013124 cần gì?")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if !result.Metadata.ExactCodeMatch {
		t.Fatal("expected exact-code fast path to be used")
	}
	if result.Confidence != 1.0 {
		t.Fatalf("expected confidence 1.0 for exact-code path, got %v", result.Confidence)
	}
}

func TestRetrieveBothChannelsFailReturnsNoChannelsError(t *testing.T) {
	chunks, _, _, embedder := buildFixture()
	failingVector := &fakeVectorStore{err: errors.New("vector store down")}
	failingLexical := &fakeLexicalIndex{err: errors.New("lexical index down")}
	llm := &stubLLMAnalyser{intent: domain.IntentOverview, confidence: 0.5}
	orch := buildOrchestrator(llm, chunks, failingVector, failingLexical, embedder, newFakeCache())

	_, err := orch.Retrieve(context.Background(), "session-1", "câu hỏi bất kỳ")
	if err == nil {
		t.Fatal("expected no-retrieval-channels error")
	}
	if !domain.IsKind(err, domain.ErrNoChannels) {
		t.Fatalf("expected ErrNoChannels, got %v", err)
	}
}

func TestRetrieveDenseFailureDegradesToLexicalOnly(t *testing.T) {
	chunks, _, lexical, embedder := buildFixture()
	failingVector := &fakeVectorStore{err: errors.New("vector store down")}
	llm := &stubLLMAnalyser{intent: domain.IntentOverview, confidence: 0.5}
	orch := buildOrchestrator(llm, chunks, failingVector, lexical, embedder, newFakeCache())

	result, err := orch.Retrieve(context.Background(), "session-1", "câu hỏi bất kỳ")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if !result.Metadata.Degraded {
		t.Fatal("expected degraded=true when dense channel fails")
	}
}

func TestRetrieveStoresResultInCacheOnSuccess(t *testing.T) {
	chunks, vectorStore, lexical, embedder := buildFixture()
	llm := &stubLLMAnalyser{intent: domain.IntentDocuments, confidence: 0.9}
	cache := newFakeCache()
	orch := buildOrchestrator(llm, chunks, vectorStore, lexical, embedder, cache)

	_, err := orch.Retrieve(context.Background(), "session-1", "giấy tờ cần nộp gì")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if cache.puts != 1 {
		t.Fatalf("expected exactly 1 cache put, got %d", cache.puts)
	}
}

func TestRetrieveCancelledContextDoesNotStoreInCache(t *testing.T) {
	chunks, vectorStore, lexical, embedder := buildFixture()
	llm := &stubLLMAnalyser{intent: domain.IntentDocuments, confidence: 0.9}
	cache := newFakeCache()
	orch := buildOrchestrator(llm, chunks, vectorStore, lexical, embedder, cache)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _ = orch.Retrieve(ctx, "session-1", "giấy tờ cần nộp gì")
	if cache.puts != 0 {
		t.Fatalf("expected no cache put on cancelled request, got %d", cache.puts)
	}
}

func TestRetrieveCancelledContextReturnsCancelledKind(t *testing.T) {
	chunks, vectorStore, lexical, embedder := buildFixture()
	llm := &stubLLMAnalyser{intent: domain.IntentDocuments, confidence: 0.9}
	orch := buildOrchestrator(llm, chunks, vectorStore, lexical, embedder, newFakeCache())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := orch.Retrieve(ctx, "session-1", "giấy tờ cần nộp gì")
	if !domain.IsKind(err, domain.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if domain.IsKind(err, domain.ErrTimeout) {
		t.Fatal("cancelled request must not be classified as a timeout")
	}
}

func TestRetrieveExpiredDeadlineReturnsTimeoutKind(t *testing.T) {
	chunks, vectorStore, lexical, embedder := buildFixture()
	llm := &stubLLMAnalyser{intent: domain.IntentDocuments, confidence: 0.9}
	orch := buildOrchestrator(llm, chunks, vectorStore, lexical, embedder, newFakeCache())

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Millisecond))
	defer cancel()

	_, err := orch.Retrieve(ctx, "session-1", "giấy tờ cần nộp gì")
	if !domain.IsKind(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if domain.IsKind(err, domain.ErrCancelled) {
		t.Fatal("expired deadline must not be classified as cancelled")
	}
}

func TestRetrieveDeadlineExpiringMidPipelineReturnsTimeoutKind(t *testing.T) {
	chunks, vectorStore, lexical, embedder := buildFixture()
	chunks.getDelay = 20 * time.Millisecond
	llm := &stubLLMAnalyser{intent: domain.IntentDocuments, confidence: 0.9}

	analyser := NewAnalyser(llm, nil)
	reranker := NewReranker(nil, 0.55, 0.45, 0, 20)
	assembler := NewAssembler(chunks, 1200)
	timeouts := Timeouts{Embedder: time.Second, VectorStore: time.Second, LLM: time.Second, Reranker: time.Second, Request: 5 * time.Millisecond}
	cfg := Config{CrossTierPenalty: 0.8, TopKParent: 5, TopKChild: 100, RRFK: 60, RerankTopNCap: 20}
	orch := NewOrchestrator(analyser, embedder, vectorStore, lexical, chunks, reranker, assembler, newFakeCache(), timeouts, cfg, nil)

	_, err := orch.Retrieve(context.Background(), "session-1", "giấy tờ cần nộp gì")
	if !domain.IsKind(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout for a deadline expiring mid-pipeline, got %v", err)
	}
}
