package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
	"github.com/kirillkom/personal-ai-assistant/internal/infrastructure/tokenizer"
)

const defaultMaxChunkTokens = 1200

// Assembler implements the Context Assembler (spec section 4.6): it turns a
// reranked list plus a per-intent ContextConfig into a single citable
// context block and a confidence score.
type Assembler struct {
	chunks         ports.ChunkStore
	maxChunkTokens int
	tokens         *tokenizer.Counter
}

func NewAssembler(chunks ports.ChunkStore, maxChunkTokens int) *Assembler {
	if maxChunkTokens <= 0 {
		maxChunkTokens = defaultMaxChunkTokens
	}
	return &Assembler{chunks: chunks, maxChunkTokens: maxChunkTokens, tokens: tokenizer.New()}
}

// Assemble runs the six-step algorithm from spec section 4.6 and returns
// the context text plus the ordered list of retained items and the
// confidence score. degraded shifts confidence down by the 0.9 multiplier
// spec'd for degraded results.
func (a *Assembler) Assemble(ctx context.Context, reranked []domain.RetrievedItem, cfg domain.ContextConfig, degraded bool) (string, []domain.RetrievedItem, float64) {
	if len(reranked) == 0 {
		return "", nil, 0
	}

	byProcedure, procedureOrder := groupByProcedureBestRank(reranked)
	keptProcedures := procedureOrder
	if len(keptProcedures) > cfg.Chunks {
		keptProcedures = keptProcedures[:cfg.Chunks]
	}
	keptSet := make(map[string]struct{}, len(keptProcedures))
	for _, p := range keptProcedures {
		keptSet[p] = struct{}{}
	}

	var retained []domain.RetrievedItem
	var sections []string

	for _, procedureID := range keptProcedures {
		items := byProcedure[procedureID]

		parentRendered := false
		if cfg.IncludeParents {
			if parent, ok := a.parentOverview(ctx, procedureID); ok {
				retained = append(retained, parent)
				sections = append(sections, a.renderSection(parent))
				parentRendered = true
			}
		}

		// When the parent overview was already rendered above, drop any
		// parent-tier chunk still sitting in items: Stage 6's RRF pool
		// fuses denseParent alongside denseChild/lexical, so a parent can
		// survive reranking into the same procedure's item list and would
		// otherwise be rendered twice, burning a MaxDescendants slot that
		// should go to a real child.
		children := items
		if parentRendered {
			filtered := make([]domain.RetrievedItem, 0, len(items))
			for _, item := range items {
				if item.Chunk.Tier == domain.TierParent {
					continue
				}
				filtered = append(filtered, item)
			}
			children = filtered
		}
		if len(children) > cfg.MaxDescendants {
			children = children[:cfg.MaxDescendants]
		}
		for _, item := range children {
			retained = append(retained, item)
			sections = append(sections, a.renderSection(item))
		}
	}

	if cfg.MaxSiblings > 0 {
		siblings := siblingItems(reranked, keptSet, cfg.MaxSiblings)
		for _, item := range siblings {
			retained = append(retained, item)
			sections = append(sections, a.renderSection(item))
		}
	}

	contextText := strings.Join(sections, "\n---\n")
	confidence := meanScore(retained)
	if degraded {
		confidence *= 0.9
	}
	return contextText, retained, clamp01(confidence)
}

// groupByProcedureBestRank groups reranked items by procedure_id and
// returns procedures ordered by their best-scoring member (spec section
// 4.6 step 1).
func groupByProcedureBestRank(reranked []domain.RetrievedItem) (map[string][]domain.RetrievedItem, []string) {
	byProcedure := make(map[string][]domain.RetrievedItem)
	bestScore := make(map[string]float64)
	order := make([]string, 0)

	for _, item := range reranked {
		procedureID := item.Chunk.ProcedureID
		if procedureID == "" {
			continue
		}
		if _, seen := byProcedure[procedureID]; !seen {
			order = append(order, procedureID)
		}
		byProcedure[procedureID] = append(byProcedure[procedureID], item)
		if item.Score > bestScore[procedureID] {
			bestScore[procedureID] = item.Score
		}
	}

	sortStrings(order, func(a, b string) bool { return bestScore[a] > bestScore[b] })
	return byProcedure, order
}

func sortStrings(s []string, less func(a, b string) bool) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && less(s[j], s[j-1]); j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func (a *Assembler) parentOverview(ctx context.Context, procedureID string) (domain.RetrievedItem, bool) {
	if a.chunks == nil {
		return domain.RetrievedItem{}, false
	}
	siblings, err := a.chunks.ByProcedure(ctx, procedureID)
	if err != nil {
		return domain.RetrievedItem{}, false
	}
	for _, c := range siblings {
		if c.IsParent() {
			return domain.RetrievedItem{Chunk: c, Source: domain.SourceReranked}, true
		}
	}
	return domain.RetrievedItem{}, false
}

// siblingItems returns up to maxSiblings items from procedures outside
// keptSet, preserving reranked order (spec section 4.6 step 4).
func siblingItems(reranked []domain.RetrievedItem, keptSet map[string]struct{}, maxSiblings int) []domain.RetrievedItem {
	out := make([]domain.RetrievedItem, 0, maxSiblings)
	for _, item := range reranked {
		if _, kept := keptSet[item.Chunk.ProcedureID]; kept {
			continue
		}
		out = append(out, item)
		if len(out) == maxSiblings {
			break
		}
	}
	return out
}

// renderSection formats one chunk as a citable block, truncating content
// that exceeds maxChunkTokens using the keep-head-and-tail strategy (spec
// section 4.6 step 5).
func (a *Assembler) renderSection(item domain.RetrievedItem) string {
	content := item.Chunk.Content
	if a.tokens.Count(content) > a.maxChunkTokens {
		content = tokenizer.TruncateHeadTail(content, a.maxChunkTokens)
	}
	return fmt.Sprintf("[chunk_id: %s]\n%s", item.Chunk.ChunkID, content)
}

func meanScore(items []domain.RetrievedItem) float64 {
	if len(items) == 0 {
		return 0
	}
	sum := 0.0
	for _, item := range items {
		sum += item.Score
	}
	return sum / float64(len(items))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
