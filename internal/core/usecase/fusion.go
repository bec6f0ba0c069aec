package usecase

import (
	"sort"
	"strings"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
)

const (
	bm25RRFMultiplier   = 1.2
	jaccardNearDupeThreshold = 0.95
)

// rankedList is one ranked-and-scored channel feeding Stage 6's fusion:
// dense-parent, dense-child, or lexical results, each already sorted best
// first by its own producing stage.
type rankedList struct {
	source domain.Source
	items  []domain.RetrievedItem
}

// fuseRRF implements spec section 4.7 Stage 6: reciprocal rank fusion
// across every supplied ranked list, BM25 contributions boosted 1.2x,
// deduplicated by chunk_id (keeping the best per-source rank), followed by
// Jaccard near-duplicate removal on the word set at >= 0.95 similarity.
// chunkText supplies the content used only for the Jaccard comparison; it
// is not retained on the fused item.
func fuseRRF(lists []rankedList, rrfK int, chunkText map[string]string) []domain.RetrievedItem {
	if rrfK <= 0 {
		rrfK = 60
	}

	acc := make(map[string]*domain.RetrievedItem)
	order := make([]string, 0)

	for _, list := range lists {
		multiplier := 1.0
		if list.source == domain.SourceLexical {
			multiplier = bm25RRFMultiplier
		}
		for rank, item := range list.items {
			existing, ok := acc[item.Chunk.ChunkID]
			if !ok {
				copy := item
				copy.Score = 0
				copy.RankPerSource = map[domain.Source]int{list.source: rank}
				copy.Source = domain.SourceFused
				existing = &copy
				acc[item.Chunk.ChunkID] = existing
				order = append(order, item.Chunk.ChunkID)
			} else {
				if existingRank, has := existing.RankPerSource[list.source]; !has || rank < existingRank {
					existing.RankPerSource[list.source] = rank
				}
				if item.CrossTierMatch {
					existing.CrossTierMatch = true
				}
			}
			existing.Score += multiplier * (1.0 / float64(rrfK+rank+1))
		}
	}

	fused := make([]domain.RetrievedItem, 0, len(order))
	for _, id := range order {
		fused = append(fused, *acc[id])
	}

	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].Chunk.ChunkID < fused[j].Chunk.ChunkID
	})

	return removeNearDuplicates(fused, chunkText)
}

// removeNearDuplicates drops any item whose word-set Jaccard similarity
// against an already-kept, higher-ranked item is >= 0.95, keeping the
// higher-ranked of the pair.
func removeNearDuplicates(items []domain.RetrievedItem, chunkText map[string]string) []domain.RetrievedItem {
	kept := make([]domain.RetrievedItem, 0, len(items))
	keptWordSets := make([]map[string]struct{}, 0, len(items))

	for _, item := range items {
		words := wordSet(chunkText[item.Chunk.ChunkID])
		isDuplicate := false
		for _, existing := range keptWordSets {
			if jaccardSimilarity(words, existing) >= jaccardNearDupeThreshold {
				isDuplicate = true
				break
			}
		}
		if isDuplicate {
			continue
		}
		kept = append(kept, item)
		keptWordSets = append(keptWordSets, words)
	}
	return kept
}

func wordSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func jaccardSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func trimToLimit(items []domain.RetrievedItem, limit int) []domain.RetrievedItem {
	if limit <= 0 || len(items) <= limit {
		return items
	}
	return items[:limit]
}
