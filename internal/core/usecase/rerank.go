package usecase

import (
	"context"
	"math"
	"sort"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
)

// Reranker computes the ensemble score from spec section 4.5:
//
//	final = w_dense * dense_score_norm + w_lex * lex_score_norm + w_ce * ce_score
//
// dense/lex components are min-max normalised within the current candidate
// set; the cross-encoder is skipped entirely when w_ce = 0, so a
// misconfigured or absent reranker service never blocks retrieval.
type Reranker struct {
	model       ports.Reranker
	weightDense float64
	weightLex   float64
	weightCE    float64
	topNCap     int
}

// NewReranker normalises the three weights to sum to 1 if the caller
// supplied values that don't (spec section 4.5 / property 7).
func NewReranker(model ports.Reranker, weightDense, weightLex, weightCE float64, topNCap int) *Reranker {
	sum := weightDense + weightLex + weightCE
	if sum > 0 && math.Abs(sum-1) > 1e-9 {
		weightDense /= sum
		weightLex /= sum
		weightCE /= sum
	}
	return &Reranker{
		model:       model,
		weightDense: weightDense,
		weightLex:   weightLex,
		weightCE:    weightCE,
		topNCap:     topNCap,
	}
}

// Rerank scores the top-N fused candidates (N = min(50, len(fused))) and
// returns the top rerankTopK by ensemble score. On reranker failure it
// falls back to the fused order (spec section 4.7's stage-7 failure
// semantics), leaving CrossEncoderRaw at zero for every item.
func (r *Reranker) Rerank(ctx context.Context, question string, fused []domain.RetrievedItem, chunkText map[string]string, rerankTopK int) []domain.RetrievedItem {
	if len(fused) == 0 {
		return fused
	}

	n := len(fused)
	if n > 50 {
		n = 50
	}
	head := make([]domain.RetrievedItem, n)
	copy(head, fused[:n])

	denseMin, denseMax := minMax(head, func(i domain.RetrievedItem) float64 { return i.DenseScoreRaw })
	lexMin, lexMax := minMax(head, func(i domain.RetrievedItem) float64 { return i.LexicalScoreRaw })

	ceFailed := false
	if r.weightCE > 0 && r.model != nil {
		candidates := make([]ports.RerankCandidate, len(head))
		for i, item := range head {
			candidates[i] = ports.RerankCandidate{ChunkID: item.Chunk.ChunkID, Text: chunkText[item.Chunk.ChunkID]}
		}
		scores, err := r.model.Score(ctx, question, candidates)
		if err == nil && len(scores) == len(head) {
			for i := range head {
				head[i].CrossEncoderRaw = scores[i]
			}
		} else {
			ceFailed = true
		}
	}

	for i := range head {
		denseNorm := normalize(head[i].DenseScoreRaw, denseMin, denseMax)
		lexNorm := normalize(head[i].LexicalScoreRaw, lexMin, lexMax)
		head[i].Score = r.weightDense*denseNorm + r.weightLex*lexNorm + r.weightCE*head[i].CrossEncoderRaw
		head[i].Source = domain.SourceReranked
	}

	if !ceFailed {
		sort.SliceStable(head, func(i, j int) bool {
			if head[i].Score != head[j].Score {
				return head[i].Score > head[j].Score
			}
			return head[i].Chunk.ChunkID < head[j].Chunk.ChunkID
		})
	}

	out := make([]domain.RetrievedItem, 0, len(fused))
	out = append(out, head...)
	if n < len(fused) {
		out = append(out, fused[n:]...)
	}

	limit := rerankTopK
	if r.topNCap > 0 && (limit <= 0 || limit > r.topNCap) {
		limit = r.topNCap
	}
	return trimToLimit(out, limit)
}

func minMax(items []domain.RetrievedItem, field func(domain.RetrievedItem) float64) (float64, float64) {
	if len(items) == 0 {
		return 0, 0
	}
	min := field(items[0])
	max := min
	for _, item := range items[1:] {
		v := field(item)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

func normalize(v, min, max float64) float64 {
	if max <= min {
		if v > 0 {
			return 1
		}
		return 0
	}
	return (v - min) / (max - min)
}

// RerankTopK computes the default rerank_top_k from spec section 4.7 Stage
// 7: config.chunks * (1 + config.max_descendants), rounded up, capped at 20.
func RerankTopK(cfg domain.ContextConfig, cap int) int {
	k := cfg.Chunks * (1 + cfg.MaxDescendants)
	if cap > 0 && k > cap {
		k = cap
	}
	return k
}
