package ports

import (
	"context"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
)

// Embedder builds a 1024-dimension vector for a piece of text. The same
// model must back both indexing and query time (spec section 6); this port
// only carries the query-time half.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorFilter is a conjunction over the three metadata fields the vector
// store must support filtering by, per spec section 4.3. A nil/empty field
// means "no restriction on that field". ChunkTypes and ProcedureIDs are
// set-membership predicates (MatchAny); Tier is an equality predicate.
type VectorFilter struct {
	Tier         domain.Tier
	ChunkTypes   []domain.ChunkType
	ProcedureIDs []string
}

// HasTier reports whether the filter restricts by tier.
func (f VectorFilter) HasTier() bool {
	return f.Tier != ""
}

// ScoredChunkID is one hit from a dense or lexical search: a chunk
// identifier plus its raw relevance score, before any chunk body has been
// resolved from the chunk store.
type ScoredChunkID struct {
	ChunkID string
	Score   float64
}

// VectorStore performs k-nearest-neighbour search over precomputed
// embeddings with server-side metadata filtering (spec section 4.3).
type VectorStore interface {
	Search(ctx context.Context, queryVector []float32, k int, filter VectorFilter) ([]ScoredChunkID, error)
}

// LexicalStats mirrors the lexical.stats() operation from spec section 6.
type LexicalStats struct {
	NumDocs      int
	AvgDocLength float64
	VocabSize    int
	K1           float64
	B            float64
}

// LexicalIndex is the BM25 port consumed by Stage 5 (spec section 4.2).
type LexicalIndex interface {
	Search(ctx context.Context, query string, k int) ([]ScoredChunkID, error)
	Stats() LexicalStats
}

// ChunkStore is the read-only chunk repository (spec section 4.2).
type ChunkStore interface {
	Get(ctx context.Context, chunkID string) (domain.Chunk, error)
	ByProcedure(ctx context.Context, procedureID string) ([]domain.Chunk, error)
	All(ctx context.Context) ([]domain.Chunk, error)
}

// LLMAnalyser is the LLM collaborator consumed only by the query analyser
// (spec section 6): intent classification and paraphrase generation.
type LLMAnalyser interface {
	ClassifyIntent(ctx context.Context, question string) (domain.Intent, float64, error)
	Paraphrase(ctx context.Context, question string, n int) ([]string, error)
}

// RerankCandidate is one (query, text) pair scored by the Reranker.
type RerankCandidate struct {
	ChunkID string
	Text    string
}

// Reranker scores candidates with an external cross-encoder model
// (spec section 4.5). Scores are in [0, 1] and align by index with the input
// slice.
type Reranker interface {
	Score(ctx context.Context, query string, candidates []RerankCandidate) ([]float64, error)
}
