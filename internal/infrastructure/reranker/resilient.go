package reranker

import (
	"context"

	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
	"github.com/kirillkom/personal-ai-assistant/internal/infrastructure/resilience"
)

// Resilient wraps Client with the shared retry/circuit-breaker executor.
type Resilient struct {
	client   *Client
	executor *resilience.Executor
}

func NewResilient(client *Client, executor *resilience.Executor) *Resilient {
	return &Resilient{client: client, executor: executor}
}

var _ ports.Reranker = (*Resilient)(nil)

func (r *Resilient) Score(ctx context.Context, query string, candidates []ports.RerankCandidate) ([]float64, error) {
	var out []float64
	err := r.executor.Execute(ctx, "reranker.score", func(ctx context.Context) error {
		scores, err := r.client.Score(ctx, query, candidates)
		if err != nil {
			return err
		}
		out = scores
		return nil
	}, ClassifyError)
	return out, err
}
