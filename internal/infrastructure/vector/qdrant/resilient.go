package qdrant

import (
	"context"

	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
	"github.com/kirillkom/personal-ai-assistant/internal/infrastructure/resilience"
)

// Resilient wraps Client with the shared retry/circuit-breaker executor
// (spec section 5's suspension-point handling for the vector store).
type Resilient struct {
	client   *Client
	executor *resilience.Executor
}

func NewResilient(client *Client, executor *resilience.Executor) *Resilient {
	return &Resilient{client: client, executor: executor}
}

var _ ports.VectorStore = (*Resilient)(nil)

func (r *Resilient) Search(ctx context.Context, queryVector []float32, k int, filter ports.VectorFilter) ([]ports.ScoredChunkID, error) {
	var out []ports.ScoredChunkID
	err := r.executor.Execute(ctx, "qdrant.search", func(ctx context.Context) error {
		results, err := r.client.Search(ctx, queryVector, k, filter)
		if err != nil {
			return err
		}
		out = results
		return nil
	}, ClassifyError)
	return out, err
}
