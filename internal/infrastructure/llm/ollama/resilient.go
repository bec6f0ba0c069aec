package ollama

import (
	"context"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
	"github.com/kirillkom/personal-ai-assistant/internal/infrastructure/resilience"
)

// Resilient wraps Analyser with the shared retry/circuit-breaker executor.
type Resilient struct {
	analyser *Analyser
	executor *resilience.Executor
}

func NewResilient(analyser *Analyser, executor *resilience.Executor) *Resilient {
	return &Resilient{analyser: analyser, executor: executor}
}

var _ ports.LLMAnalyser = (*Resilient)(nil)

func (r *Resilient) ClassifyIntent(ctx context.Context, question string) (domain.Intent, float64, error) {
	var intent domain.Intent
	var confidence float64
	err := r.executor.Execute(ctx, "ollama.classify_intent", func(ctx context.Context) error {
		i, c, err := r.analyser.ClassifyIntent(ctx, question)
		if err != nil {
			return err
		}
		intent, confidence = i, c
		return nil
	}, classifyOllamaError)
	return intent, confidence, err
}

func (r *Resilient) Paraphrase(ctx context.Context, question string, n int) ([]string, error) {
	var out []string
	err := r.executor.Execute(ctx, "ollama.paraphrase", func(ctx context.Context) error {
		p, err := r.analyser.Paraphrase(ctx, question, n)
		if err != nil {
			return err
		}
		out = p
		return nil
	}, classifyOllamaError)
	return out, err
}
