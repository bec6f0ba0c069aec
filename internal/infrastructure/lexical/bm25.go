// Package lexical implements the BM25 inverted index (spec section 4.2),
// ported from original_source/src/retrieval/bm25_search.py's inverted-index
// construction and Okapi BM25 scoring with the same IDF smoothing formula.
package lexical

import (
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
)

// vietnameseStopwords mirrors bm25_search.py's VIETNAMESE_STOPWORDS set.
var vietnameseStopwords = map[string]struct{}{
	"và": {}, "của": {}, "có": {}, "là": {}, "được": {}, "trong": {}, "các": {}, "để": {}, "cho": {},
	"với": {}, "theo": {}, "từ": {}, "về": {}, "này": {}, "đó": {}, "khi": {}, "như": {}, "không": {},
	"tại": {}, "hoặc": {}, "những": {}, "đã": {}, "vào": {}, "nếu": {}, "hay": {}, "do": {}, "sẽ": {},
	"bởi": {}, "bằng": {}, "đến": {}, "trên": {}, "dưới": {}, "sau": {}, "trước": {}, "ngoài": {},
	"giữa": {}, "thì": {}, "nhưng": {}, "mà": {}, "vì": {}, "nên": {}, "đây": {}, "đấy": {}, "cũng": {},
	"thêm": {}, "nhiều": {}, "ít": {},
}

// nonWordRunes matches punctuation stripped before tokenising, mirroring the
// original's `re.sub(r'[^\w\s]', ' ', text.lower())`.
var nonWordRunes = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// Tokenize lowercases, strips punctuation, splits on whitespace, keeps
// tokens longer than one rune, and drops Vietnamese stopwords.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	cleaned := nonWordRunes.ReplaceAllString(strings.ToLower(text), " ")
	fields := strings.Fields(cleaned)

	out := make([]string, 0, len(fields))
	for _, tok := range fields {
		if len([]rune(tok)) <= 1 {
			continue
		}
		if _, stop := vietnameseStopwords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

type posting struct {
	docIdx   int
	termFreq int
}

// Index is the process-wide, read-only BM25 inverted index. Rebuilt from the
// chunk store at startup per spec section 4.2's invariant; never mutated
// afterwards.
type Index struct {
	k1 float64
	b  float64

	docIDs      []string
	docLengths  []int
	avgDocLen   float64
	inverted    map[string][]posting
	idf         map[string]float64
	vocabSize   int

	mu sync.RWMutex
}

var _ ports.LexicalIndex = (*Index)(nil)

// Build constructs the inverted index and pre-computed IDF cache from
// chunks, using k1/b as the Okapi BM25 parameters (spec section 4.2
// defaults: k1=1.5, b=0.75).
func Build(chunks []domain.Chunk, k1, b float64) *Index {
	if k1 <= 0 {
		k1 = 1.5
	}
	if b <= 0 {
		b = 0.75
	}

	idx := &Index{
		k1:       k1,
		b:        b,
		inverted: make(map[string][]posting),
		idf:      make(map[string]float64),
	}

	idx.docIDs = make([]string, len(chunks))
	idx.docLengths = make([]int, len(chunks))

	var totalLen int
	for i, chunk := range chunks {
		idx.docIDs[i] = chunk.ChunkID
		tokens := Tokenize(chunk.Content)
		idx.docLengths[i] = len(tokens)
		totalLen += len(tokens)

		freqs := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freqs[tok]++
		}
		for term, freq := range freqs {
			idx.inverted[term] = append(idx.inverted[term], posting{docIdx: i, termFreq: freq})
		}
	}

	if len(chunks) > 0 {
		idx.avgDocLen = float64(totalLen) / float64(len(chunks))
	}

	numDocs := float64(len(chunks))
	for term, postings := range idx.inverted {
		df := float64(len(postings))
		// IDF with smoothing, clamped at zero per spec section 4.2; the
		// classic Okapi formula can go negative for very common terms.
		idf := math.Log((numDocs-df+0.5)/(df+0.5) + 1.0)
		if idf < 0 {
			idf = 0
		}
		idx.idf[term] = idf
	}
	idx.vocabSize = len(idx.inverted)

	return idx
}

// Search runs Okapi BM25 scoring over the query and returns the top-k
// documents by score descending. Non-blocking and does not honor ctx
// cancellation mid-scan (spec section 5: BM25 is "in-memory — non-blocking"
// but still carries a per-call timeout at the orchestrator boundary).
func (idx *Index) Search(_ context.Context, query string, k int) ([]ports.ScoredChunkID, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	terms := Tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	scores := make(map[int]float64)
	for _, term := range terms {
		postings, ok := idx.inverted[term]
		if !ok {
			continue
		}
		idf := idx.idf[term]
		for _, p := range postings {
			docLen := float64(idx.docLengths[p.docIdx])
			tf := float64(p.termFreq)
			numerator := tf * (idx.k1 + 1)
			denominator := tf + idx.k1*(1-idx.b+idx.b*docLen/idx.avgDocLen)
			scores[p.docIdx] += idf * (numerator / denominator)
		}
	}

	results := make([]ports.ScoredChunkID, 0, len(scores))
	for docIdx, score := range scores {
		if score <= 0 {
			continue
		}
		results = append(results, ports.ScoredChunkID{ChunkID: idx.docIDs[docIdx], Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// snapshotPosting is the gob-encodable mirror of posting; gob only encodes
// exported fields.
type snapshotPosting struct {
	DocIdx   int
	TermFreq int
}

// indexSnapshot is the on-disk representation written by Snapshot and read
// by Restore, ported from bm25_search.py's save_index/load_index (pickle
// there, gob here — the corpus carries no third-party binary codec).
type indexSnapshot struct {
	K1         float64
	B          float64
	DocIDs     []string
	DocLengths []int
	AvgDocLen  float64
	Inverted   map[string][]snapshotPosting
	IDF        map[string]float64
	VocabSize  int
}

// Snapshot writes the index to path so a process restart during development
// can skip re-tokenising every chunk (spec section 2.6). The index is still
// rebuilt fresh from the chunk store at startup; this is an optimisation
// hook, not a substitute for Build.
func (idx *Index) Snapshot(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("lexical: create snapshot %s: %w", path, err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(idx.toSnapshot()); err != nil {
		return fmt.Errorf("lexical: encode snapshot: %w", err)
	}
	return nil
}

// Restore reads an index previously written by Snapshot.
func Restore(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lexical: open snapshot %s: %w", path, err)
	}
	defer f.Close()
	return restoreFrom(f)
}

func restoreFrom(r io.Reader) (*Index, error) {
	var snap indexSnapshot
	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("lexical: decode snapshot: %w", err)
	}
	return snap.toIndex(), nil
}

func (idx *Index) toSnapshot() indexSnapshot {
	inverted := make(map[string][]snapshotPosting, len(idx.inverted))
	for term, postings := range idx.inverted {
		converted := make([]snapshotPosting, len(postings))
		for i, p := range postings {
			converted[i] = snapshotPosting{DocIdx: p.docIdx, TermFreq: p.termFreq}
		}
		inverted[term] = converted
	}
	return indexSnapshot{
		K1:         idx.k1,
		B:          idx.b,
		DocIDs:     idx.docIDs,
		DocLengths: idx.docLengths,
		AvgDocLen:  idx.avgDocLen,
		Inverted:   inverted,
		IDF:        idx.idf,
		VocabSize:  idx.vocabSize,
	}
}

func (snap indexSnapshot) toIndex() *Index {
	inverted := make(map[string][]posting, len(snap.Inverted))
	for term, postings := range snap.Inverted {
		converted := make([]posting, len(postings))
		for i, p := range postings {
			converted[i] = posting{docIdx: p.DocIdx, termFreq: p.TermFreq}
		}
		inverted[term] = converted
	}
	return &Index{
		k1:         snap.K1,
		b:          snap.B,
		docIDs:     snap.DocIDs,
		docLengths: snap.DocLengths,
		avgDocLen:  snap.AvgDocLen,
		inverted:   inverted,
		idf:        snap.IDF,
		vocabSize:  snap.VocabSize,
	}
}

// Stats implements the lexical.stats() operation from spec section 6.
func (idx *Index) Stats() ports.LexicalStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return ports.LexicalStats{
		NumDocs:      len(idx.docIDs),
		AvgDocLength: idx.avgDocLen,
		VocabSize:    idx.vocabSize,
		K1:           idx.k1,
		B:            idx.b,
	}
}
