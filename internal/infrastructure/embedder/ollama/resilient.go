package ollama

import (
	"context"

	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
	"github.com/kirillkom/personal-ai-assistant/internal/infrastructure/resilience"
)

// Resilient wraps Embedder with the shared retry/circuit-breaker executor.
type Resilient struct {
	embedder *Embedder
	executor *resilience.Executor
}

func NewResilient(embedder *Embedder, executor *resilience.Executor) *Resilient {
	return &Resilient{embedder: embedder, executor: executor}
}

var _ ports.Embedder = (*Resilient)(nil)

func (r *Resilient) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := r.executor.Execute(ctx, "ollama.embed", func(ctx context.Context) error {
		vec, err := r.embedder.Embed(ctx, text)
		if err != nil {
			return err
		}
		out = vec
		return nil
	}, classifyEmbedderError)
	return out, err
}
