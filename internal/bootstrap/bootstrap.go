// Package bootstrap wires the retrieval core's collaborators (chunk store,
// lexical index, vector store, embedder, LLM analyser, reranker, semantic
// cache) into a single App implementing ports.Retriever, per spec section 6's
// operational surface.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/personal-ai-assistant/internal/config"
	"github.com/kirillkom/personal-ai-assistant/internal/core/cache"
	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
	"github.com/kirillkom/personal-ai-assistant/internal/core/usecase"
	"github.com/kirillkom/personal-ai-assistant/internal/infrastructure/chunkstore"
	embedderollama "github.com/kirillkom/personal-ai-assistant/internal/infrastructure/embedder/ollama"
	"github.com/kirillkom/personal-ai-assistant/internal/infrastructure/lexical"
	llmollama "github.com/kirillkom/personal-ai-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/personal-ai-assistant/internal/infrastructure/reranker"
	"github.com/kirillkom/personal-ai-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/personal-ai-assistant/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/personal-ai-assistant/internal/observability/logging"
)

// App wires the nine-stage pipeline behind the single Retriever port.
type App struct {
	orchestrator *usecase.Orchestrator
	cache        *cache.SemanticCache
	lexicalIndex *lexical.Index
	cfg          config.Config
	logger       *slog.Logger
}

var _ ports.Retriever = (*App)(nil)

// New loads chunks and builds every collaborator named in spec section 6,
// wrapping each outbound HTTP adapter with the shared resilience executor
// (spec section 5).
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger := logging.NewJSONLogger("retrieval-core", cfg.LogLevel)

	store, err := chunkstore.Load(cfg.ChunkStorePath)
	if err != nil {
		return nil, fmt.Errorf("load chunk store: %w", err)
	}

	allChunks, err := store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("read chunks for lexical index: %w", err)
	}
	lexicalIndex := lexical.Build(allChunks, cfg.BM25K1, cfg.BM25B)

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	vectorStore := qdrant.NewResilient(qdrant.New(cfg.QdrantURL, cfg.QdrantCollection), executor)
	embedder := embedderollama.NewResilient(embedderollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel), executor)
	llmAnalyser := llmollama.NewResilient(llmollama.New(cfg.OllamaURL, cfg.OllamaAnalyseModel), executor)
	rerankerClient := reranker.NewResilient(reranker.New(cfg.RerankerURL, "bge-reranker-v2-m3"), executor)

	semanticCache := cache.New(cfg.CacheMaxSize, hoursToDuration(cfg.CacheTTLHours), cfg.SimThreshold)

	analyser := usecase.NewAnalyser(llmAnalyser, logger)
	rerankUsecase := usecase.NewReranker(rerankerClient, cfg.RerankWeightDense, cfg.RerankWeightLex, cfg.RerankWeightCE, cfg.RerankTopNCap)
	assembler := usecase.NewAssembler(store, cfg.MaxChunkTokens)

	orchestrator := usecase.NewOrchestrator(
		analyser,
		embedder,
		vectorStore,
		lexicalIndex,
		store,
		rerankUsecase,
		assembler,
		semanticCache,
		usecase.Timeouts{
			Embedder:    cfg.EmbedderTimeout,
			VectorStore: cfg.VectorStoreTimeout,
			LLM:         cfg.LLMTimeout,
			Reranker:    cfg.RerankerTimeout,
			Request:     cfg.RequestDeadline,
		},
		usecase.Config{
			CrossTierPenalty: cfg.CrossTierPenalty,
			TopKParent:       cfg.TopKParent,
			TopKChild:        cfg.TopKChild,
			RRFK:             cfg.RRFK,
			RerankTopNCap:    cfg.RerankTopNCap,
		},
		logger,
	)

	return &App{
		orchestrator: orchestrator,
		cache:        semanticCache,
		lexicalIndex: lexicalIndex,
		cfg:          cfg,
		logger:       logger,
	}, nil
}

func hoursToDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}

// Retrieve runs the nine-stage pipeline (spec section 4.7).
func (a *App) Retrieve(ctx context.Context, sessionID, question string) (domain.RetrievalResult, error) {
	return a.orchestrator.Retrieve(ctx, sessionID, question)
}

// CacheStats implements the cache.stats() operation from spec section 6.
func (a *App) CacheStats() domain.CacheStats {
	return a.cache.Stats()
}

// ClearCache implements the cache.clear() operation from spec section 6.
func (a *App) ClearCache() {
	a.cache.Clear()
}

// ClearExpiredCache sweeps expired entries without clearing the whole cache.
func (a *App) ClearExpiredCache() {
	a.cache.ClearExpired()
}

// SweepExpiredCache removes expired entries and reports how many were
// removed; used by the background cache janitor started from cmd/api.
func (a *App) SweepExpiredCache() int {
	return a.cache.ClearExpired()
}

// CacheSize reports the current semantic cache occupancy.
func (a *App) CacheSize() int {
	return a.cache.Stats().Size
}

// LexicalStats implements the lexical.stats() operation from spec section 6.
func (a *App) LexicalStats() ports.LexicalStats {
	return a.lexicalIndex.Stats()
}

// Config implements the config() operation from spec section 6.
func (a *App) Config() any {
	return a.cfg.Snapshot()
}
