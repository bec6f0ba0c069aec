package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
)

// Timeouts holds the per-call suspension-point budgets from spec section 5.
type Timeouts struct {
	Embedder    time.Duration
	VectorStore time.Duration
	LLM         time.Duration
	Reranker    time.Duration
	Request     time.Duration
}

// Config bundles the tunables the orchestrator needs from spec section 6
// beyond what the reranker/assembler already own.
type Config struct {
	CrossTierPenalty float64
	TopKParent       int
	TopKChild        int
	RRFK             int
	RerankTopNCap    int
}

// Cache is the subset of the Semantic Cache the orchestrator drives
// directly (spec section 4.4, Stages 0 and 9).
type Cache interface {
	Get(question string, embedding []float32) (domain.RetrievalResult, bool)
	Put(question string, embedding []float32, result domain.RetrievalResult)
}

// Orchestrator drives the nine-stage pipeline (spec section 4.7).
type Orchestrator struct {
	analyser    *Analyser
	embedder    ports.Embedder
	vectorStore ports.VectorStore
	lexical     ports.LexicalIndex
	chunks      ports.ChunkStore
	reranker    *Reranker
	assembler   *Assembler
	cache       Cache
	timeouts    Timeouts
	cfg         Config
	logger      *slog.Logger
}

func NewOrchestrator(
	analyser *Analyser,
	embedder ports.Embedder,
	vectorStore ports.VectorStore,
	lexical ports.LexicalIndex,
	chunks ports.ChunkStore,
	reranker *Reranker,
	assembler *Assembler,
	cache Cache,
	timeouts Timeouts,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		analyser:    analyser,
		embedder:    embedder,
		vectorStore: vectorStore,
		lexical:     lexical,
		chunks:      chunks,
		reranker:    reranker,
		assembler:   assembler,
		cache:       cache,
		timeouts:    timeouts,
		cfg:         cfg,
		logger:      logger,
	}
}

// Retrieve runs Stages 0-9. sessionID is accepted for symmetry with the
// inbound port and future session-scoped instrumentation; the retrieval
// core itself is stateless per spec section 1's scope boundary (session
// history belongs to the external chat surface).
func (o *Orchestrator) Retrieve(ctx context.Context, sessionID, question string) (domain.RetrievalResult, error) {
	if o.timeouts.Request > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeouts.Request)
		defer cancel()
	}

	// Stage 1 — query analysis runs before the cache probe so a
	// procedure-code fast path and the cache key are both available; the
	// embedding used for the cache probe is reused for Stage 3 as well.
	plan := o.analyser.Analyse(ctx, question)

	queryEmbedding, embedErr := o.embed(ctx, question)
	if embedErr != nil && o.logger != nil {
		o.logger.Warn("query embedding failed, cache probe and dense retrieval degraded", "error", embedErr.Error())
	}

	// Stage 0 — cache probe.
	if queryEmbedding != nil && o.cache != nil {
		if cached, ok := o.cache.Get(question, queryEmbedding); ok {
			return cached, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return domain.RetrievalResult{}, wrapCtxErr(err, "retrieve")
	}

	// Stage 2 — exact-code fast path.
	if plan.DetectedProcedureCode != "" {
		if result, ok := o.exactCodeFastPath(ctx, plan); ok {
			return result, nil
		}
	}

	denseParent, denseChild, lexical, denseErr, lexicalErr := o.fanOut(ctx, plan, queryEmbedding)

	if denseErr != nil && lexicalErr != nil {
		return domain.RetrievalResult{}, domain.WrapError(domain.ErrNoChannels, "retrieve", lexicalErr)
	}

	degraded := denseErr != nil || lexicalErr != nil
	var degradedChannels []string
	if denseErr != nil {
		degradedChannels = append(degradedChannels, "dense")
	}
	if lexicalErr != nil {
		degradedChannels = append(degradedChannels, "lexical")
	}

	chunkText := collectChunkText(denseParent, denseChild, lexical)

	fused := fuseRRF([]rankedList{
		{source: domain.SourceDense, items: denseParent},
		{source: domain.SourceDense, items: denseChild},
		{source: domain.SourceLexical, items: lexical},
	}, o.cfg.RRFK, chunkText)

	rerankTopK := RerankTopK(plan.ContextConfig, o.cfg.RerankTopNCap)
	rerankCtx, rerankCancel := withTimeout(ctx, o.timeouts.Reranker)
	reranked := o.reranker.Rerank(rerankCtx, question, fused, chunkText, rerankTopK)
	rerankCancel()

	contextText, retained, confidence := o.assembler.Assemble(ctx, reranked, plan.ContextConfig, degraded)

	// The overall request deadline (spec section 5) can fire during
	// fanOut/Rerank/Assemble as well as before Stage 2; without this check
	// a deadline mid-pipeline would silently fall through to a 200 with a
	// degraded result instead of surfacing as a 504.
	if err := ctx.Err(); err != nil {
		return domain.RetrievalResult{}, wrapCtxErr(err, "retrieve")
	}

	result := domain.RetrievalResult{
		Chunks:      retained,
		ContextText: contextText,
		Confidence:  confidence,
		Intent:      plan.Intent,
		Plan:        plan,
		Metadata: domain.RetrievalMetadata{
			Degraded:           degraded,
			DegradedChannels:   degradedChannels,
			FusedCandidates:    len(fused),
			RerankedCandidates: len(reranked),
		},
	}

	if ctx.Err() == nil && o.cache != nil && queryEmbedding != nil {
		o.cache.Put(question, queryEmbedding, result)
	}

	return result, nil
}

func (o *Orchestrator) embed(ctx context.Context, text string) ([]float32, error) {
	embedCtx, cancel := withTimeout(ctx, o.timeouts.Embedder)
	defer cancel()
	return o.embedder.Embed(embedCtx, text)
}

// exactCodeFastPath implements Stage 2: read every chunk of the detected
// procedure from the chunk store (no vector store query), skipping
// Stages 3-7 entirely.
func (o *Orchestrator) exactCodeFastPath(ctx context.Context, plan domain.QueryPlan) (domain.RetrievalResult, bool) {
	chunks, err := o.chunks.ByProcedure(ctx, plan.DetectedProcedureCode)
	if err != nil || len(chunks) == 0 {
		return domain.RetrievalResult{}, false
	}

	items := make([]domain.RetrievedItem, len(chunks))
	for i, c := range chunks {
		items[i] = domain.RetrievedItem{Chunk: c, Score: 1.0, Source: domain.SourceReranked}
	}

	// The full procedure is already loaded, parent included, so the
	// assembler must not fetch and re-append the parent overview a
	// second time.
	fastPathConfig := plan.ContextConfig
	fastPathConfig.IncludeParents = false
	fastPathConfig.Chunks = 1
	fastPathConfig.MaxDescendants = len(items)

	contextText, retained, _ := o.assembler.Assemble(ctx, items, fastPathConfig, false)
	return domain.RetrievalResult{
		Chunks:      retained,
		ContextText: contextText,
		Confidence:  1.0,
		Intent:      plan.Intent,
		Plan:        plan,
		Metadata:    domain.RetrievalMetadata{ExactCodeMatch: true},
	}, true
}

// fanOut runs Stages 3-5 concurrently via errgroup (spec section 5's
// scheduling model: "Stages 3, 4, and 5 may be executed in parallel").
// Stage 4 depends on Stage 3's procedure-id set P, so it runs as a
// second wave inside the same dense goroutine rather than as an
// independent errgroup member.
func (o *Orchestrator) fanOut(ctx context.Context, plan domain.QueryPlan, queryEmbedding []float32) (denseParent, denseChild, lexical []domain.RetrievedItem, denseErr, lexicalErr error) {
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		parent, child, err := o.denseRetrieve(groupCtx, plan, queryEmbedding)
		if err != nil {
			denseErr = err
			return nil
		}
		denseParent, denseChild = parent, child
		return nil
	})

	group.Go(func() error {
		results, err := o.lexicalRetrieve(groupCtx, plan)
		if err != nil {
			lexicalErr = err
			return nil
		}
		lexical = results
		return nil
	})

	_ = group.Wait()
	return denseParent, denseChild, lexical, denseErr, lexicalErr
}

// denseRetrieve runs Stages 3 and 4: parent retrieval per expansion,
// gathering the procedure set P, then child retrieval with the soft
// cross-tier restriction against P.
func (o *Orchestrator) denseRetrieve(ctx context.Context, plan domain.QueryPlan, queryEmbedding []float32) ([]domain.RetrievedItem, []domain.RetrievedItem, error) {
	if o.embedder == nil || o.vectorStore == nil {
		return nil, nil, domain.WrapError(domain.ErrDegraded, "dense-retrieve", domain.ErrNoChannels)
	}

	expansions := plan.Expansions
	if len(expansions) == 0 {
		expansions = []string{plan.RawQuestion}
	}

	parentByChunk := make(map[string]*domain.RetrievedItem)
	parentOrder := make([]string, 0)
	procedureSet := make(map[string]struct{})

	topKParent := o.cfg.TopKParent
	if topKParent <= 0 {
		topKParent = 5
	}

	for i, expansion := range expansions {
		vector := queryEmbedding
		if i > 0 || vector == nil {
			embedded, err := o.embed(ctx, expansion)
			if err != nil {
				continue
			}
			vector = embedded
		}

		scored, err := o.searchVector(ctx, vector, topKParent, ports.VectorFilter{Tier: domain.TierParent})
		if err != nil {
			continue
		}
		for rank, sc := range scored {
			chunk, gerr := o.chunks.Get(ctx, sc.ChunkID)
			if gerr != nil {
				continue
			}
			procedureSet[chunk.ProcedureID] = struct{}{}
			if existing, ok := parentByChunk[sc.ChunkID]; ok {
				if rank < existing.RankPerSource[domain.SourceDense] {
					existing.RankPerSource[domain.SourceDense] = rank
				}
				continue
			}
			item := &domain.RetrievedItem{
				Chunk:           chunk,
				Score:           sc.Score,
				Source:          domain.SourceDense,
				RankPerSource:   map[domain.Source]int{domain.SourceDense: rank},
				DenseScoreRaw:   sc.Score,
			}
			parentByChunk[sc.ChunkID] = item
			parentOrder = append(parentOrder, sc.ChunkID)
		}
	}

	if len(parentOrder) == 0 {
		return nil, nil, domain.WrapError(domain.ErrDegraded, "dense-parent-retrieve", domain.ErrNoChannels)
	}

	parentItems := make([]domain.RetrievedItem, len(parentOrder))
	for i, id := range parentOrder {
		parentItems[i] = *parentByChunk[id]
	}

	childFilter := domain.ChildChunkTypeFilter(plan.Intent)
	topKChild := o.cfg.TopKChild
	if topKChild <= 0 {
		topKChild = 100
	}

	childByChunk := make(map[string]*domain.RetrievedItem)
	childOrder := make([]string, 0)

	crossTierPenalty := o.cfg.CrossTierPenalty
	if crossTierPenalty <= 0 {
		crossTierPenalty = 0.8
	}

	for i, expansion := range expansions {
		vector := queryEmbedding
		if i > 0 || vector == nil {
			embedded, err := o.embed(ctx, expansion)
			if err != nil {
				continue
			}
			vector = embedded
		}

		scored, err := o.searchVector(ctx, vector, topKChild, ports.VectorFilter{Tier: domain.TierChild, ChunkTypes: childFilter})
		if err != nil {
			continue
		}
		for rank, sc := range scored {
			chunk, gerr := o.chunks.Get(ctx, sc.ChunkID)
			if gerr != nil {
				continue
			}
			score := sc.Score
			_, inProcedureSet := procedureSet[chunk.ProcedureID]
			if !inProcedureSet {
				score *= crossTierPenalty
			}
			if existing, ok := childByChunk[sc.ChunkID]; ok {
				if rank < existing.RankPerSource[domain.SourceDense] {
					existing.RankPerSource[domain.SourceDense] = rank
				}
				continue
			}
			item := &domain.RetrievedItem{
				Chunk:           chunk,
				Score:           score,
				Source:          domain.SourceDense,
				RankPerSource:   map[domain.Source]int{domain.SourceDense: rank},
				CrossTierMatch:  inProcedureSet,
				DenseScoreRaw:   score,
			}
			childByChunk[sc.ChunkID] = item
			childOrder = append(childOrder, sc.ChunkID)
		}
	}

	childItems := make([]domain.RetrievedItem, len(childOrder))
	for i, id := range childOrder {
		childItems[i] = *childByChunk[id]
	}

	return parentItems, childItems, nil
}

func (o *Orchestrator) lexicalRetrieve(ctx context.Context, plan domain.QueryPlan) ([]domain.RetrievedItem, error) {
	if o.lexical == nil {
		return nil, domain.WrapError(domain.ErrDegraded, "lexical-retrieve", domain.ErrNoChannels)
	}

	topKChild := o.cfg.TopKChild
	if topKChild <= 0 {
		topKChild = 100
	}

	scored, err := o.lexical.Search(ctx, plan.RawQuestion, topKChild)
	if err != nil {
		return nil, domain.WrapError(domain.ErrDegraded, "lexical-retrieve", err)
	}

	items := make([]domain.RetrievedItem, 0, len(scored))
	for rank, sc := range scored {
		chunk, gerr := o.chunks.Get(ctx, sc.ChunkID)
		if gerr != nil {
			continue
		}
		items = append(items, domain.RetrievedItem{
			Chunk:           chunk,
			Score:           sc.Score,
			Source:          domain.SourceLexical,
			RankPerSource:   map[domain.Source]int{domain.SourceLexical: rank},
			LexicalScoreRaw: sc.Score,
		})
	}
	return items, nil
}

func (o *Orchestrator) searchVector(ctx context.Context, vector []float32, k int, filter ports.VectorFilter) ([]ports.ScoredChunkID, error) {
	vecCtx, cancel := withTimeout(ctx, o.timeouts.VectorStore)
	defer cancel()
	return o.vectorStore.Search(vecCtx, vector, k, filter)
}

// wrapCtxErr distinguishes the overall deadline (spec section 7's Timeout
// kind, HTTP 504) from client-side cancellation (Cancelled, HTTP 499):
// ctx.Err() is context.DeadlineExceeded when a deadline fired and
// context.Canceled otherwise.
func wrapCtxErr(err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrTimeout, op, err)
	}
	return domain.WrapError(domain.ErrCancelled, op, err)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func collectChunkText(lists ...[]domain.RetrievedItem) map[string]string {
	out := make(map[string]string)
	for _, list := range lists {
		for _, item := range list {
			out[item.Chunk.ChunkID] = item.Chunk.Content
		}
	}
	return out
}
