// Package cache implements the Semantic Cache (spec section 4.4): a
// bounded, TTL-expiring cache keyed by exact question text with a
// cosine-similarity fallback for near-duplicate questions. It is ported
// from original_source/src/retrieval/semantic_cache.py's SemanticCache,
// which keeps entries in an OrderedDict for LRU eviction under a
// threading.RLock. Go's sync.Mutex is not reentrant, so this
// implementation is structured so no exported method calls another
// exported method while holding the lock: every method takes the lock
// once, does its work against unexported helpers, and releases it before
// returning.
package cache

import (
	"container/list"
	"math"
	"sync"
	"time"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
)

type entry struct {
	question   string
	embedding  []float32
	result     domain.RetrievalResult
	createdAt  time.Time
	expiresAt  time.Time // createdAt plus the TTL in effect at insertion
	lastAccess time.Time
	element    *list.Element // node in the recency list, most-recent at back
}

// SemanticCache satisfies the invariants from spec section 4.4: (a) no two
// entries share the same raw_question, (b) entry count never exceeds
// maxSize, (c) every returned hit has created_at + TTL >= now.
type SemanticCache struct {
	mu         sync.Mutex
	maxSize    int
	ttl        time.Duration
	threshold  float64
	byQuestion map[string]*entry
	recency    *list.List // front = least recently used, back = most recently used

	hits, misses, evictions, expired, totalQueries int64
}

func New(maxSize int, ttl time.Duration, similarityThreshold float64) *SemanticCache {
	return &SemanticCache{
		maxSize:    maxSize,
		ttl:        ttl,
		threshold:  similarityThreshold,
		byQuestion: make(map[string]*entry),
		recency:    list.New(),
	}
}

// Get looks up a cached result, first by exact question match, then by
// cosine similarity against every non-expired entry's query embedding.
// The full-scan comparison is performed while holding the lock (spec
// section 4.4's concurrency note: "reads that traverse all entries must
// hold the lock for the duration of the comparison").
func (c *SemanticCache) Get(question string, embedding []float32) (domain.RetrievalResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.totalQueries++

	if e, ok := c.byQuestion[question]; ok {
		if c.isExpiredLocked(e, now) {
			c.removeLocked(e)
			c.expired++
			c.misses++
			return domain.RetrievalResult{}, false
		}
		c.touchLocked(e, now)
		c.hits++
		return e.result, true
	}

	var best *entry
	bestSimilarity := 0.0
	for _, e := range c.byQuestion {
		if c.isExpiredLocked(e, now) {
			continue
		}
		sim := cosineSimilarity(embedding, e.embedding)
		if sim > bestSimilarity {
			bestSimilarity = sim
			best = e
		}
	}

	if best != nil && bestSimilarity >= c.threshold {
		c.touchLocked(best, now)
		c.hits++
		return best.result, true
	}

	c.misses++
	return domain.RetrievalResult{}, false
}

// Put inserts or replaces the entry for question, evicting the least
// recently used entry first if the cache is full.
func (c *SemanticCache) Put(question string, embedding []float32, result domain.RetrievalResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	if existing, ok := c.byQuestion[question]; ok {
		c.removeLocked(existing)
	} else if len(c.byQuestion) >= c.maxSize {
		c.evictLRULocked()
	}

	e := &entry{
		question:   question,
		embedding:  embedding,
		result:     result,
		createdAt:  now,
		expiresAt:  now.Add(c.ttl),
		lastAccess: now,
	}
	e.element = c.recency.PushBack(e)
	c.byQuestion[question] = e
}

// Clear removes every entry.
func (c *SemanticCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.byQuestion = make(map[string]*entry)
	c.recency.Init()
}

// ClearExpired removes every entry whose TTL has elapsed and returns the
// count removed.
func (c *SemanticCache) ClearExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for next := c.recency.Front(); next != nil; {
		e := next.Value.(*entry)
		advance := next.Next()
		if c.isExpiredLocked(e, now) {
			c.removeLocked(e)
			c.expired++
			removed++
		}
		next = advance
	}
	return removed
}

// Stats returns a snapshot of cache statistics (spec section 4.4).
func (c *SemanticCache) Stats() domain.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := domain.CacheStats{
		Size:      len(c.byQuestion),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Expired:   c.expired,
	}
	if c.totalQueries > 0 {
		stats.HitRate = float64(c.hits) / float64(c.totalQueries)
	}
	return stats
}

func (c *SemanticCache) isExpiredLocked(e *entry, now time.Time) bool {
	return !now.Before(e.expiresAt)
}

func (c *SemanticCache) touchLocked(e *entry, now time.Time) {
	e.lastAccess = now
	c.recency.MoveToBack(e.element)
}

func (c *SemanticCache) removeLocked(e *entry) {
	c.recency.Remove(e.element)
	delete(c.byQuestion, e.question)
}

func (c *SemanticCache) evictLRULocked() {
	front := c.recency.Front()
	if front == nil {
		return
	}
	c.removeLocked(front.Value.(*entry))
	c.evictions++
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
