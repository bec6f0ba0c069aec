package domain

import "time"

// CacheEntry is one semantic-cache slot: a cached retrieval result keyed by
// both the exact question string and its embedding, per spec section 4.4.
type CacheEntry struct {
	RawQuestion    string
	QueryEmbedding []float32
	Result         RetrievalResult
	CreatedAt      time.Time
	LastAccess     time.Time
}

// CacheStats mirrors the cache.stats() operation from spec section 6.
type CacheStats struct {
	Size      int
	Hits      int64
	Misses    int64
	HitRate   float64
	Evictions int64
	Expired   int64
}
