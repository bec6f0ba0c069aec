package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every tunable named in spec section 6, loaded from env vars
// with the mustEnv/mustEnvInt/mustEnvFloat helpers, optionally overridden by
// a YAML tunables file (spec section 6.1).
type Config struct {
	APIPort  string
	LogLevel string

	ChunkStorePath string

	OllamaURL          string
	OllamaAnalyseModel string
	OllamaEmbedModel   string

	QdrantURL        string
	QdrantCollection string

	RerankerURL string

	// Retrieval tunables, spec section 6.
	SimThreshold      float64
	CacheMaxSize      int
	CacheTTLHours     float64
	BM25K1            float64
	BM25B             float64
	CrossTierPenalty  float64
	TopKParent        int
	TopKChild         int
	RRFK              int
	MaxChunkTokens    int
	RerankWeightDense float64
	RerankWeightLex   float64
	RerankWeightCE    float64
	RerankTopNCap     int

	// Per-call timeouts, spec section 5.
	EmbedderTimeout    time.Duration
	VectorStoreTimeout time.Duration
	LLMTimeout         time.Duration
	RerankerTimeout    time.Duration
	RequestDeadline    time.Duration

	// [SUPPLEMENT] optional YAML overrides file, spec section 6.1.
	TunablesFile string
}

// Load builds a Config from the environment, applying spec-section-6
// defaults for anything unset, then layers a YAML tunables file on top if
// RETRIEVAL_TUNABLES_FILE is set.
func Load() Config {
	cfg := Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		ChunkStorePath: mustEnv("CHUNK_STORE_PATH", "./data/chunks.json"),

		OllamaURL:          mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaAnalyseModel: mustEnv("OLLAMA_ANALYSE_MODEL", "qwen3:8b"),
		OllamaEmbedModel:   mustEnv("OLLAMA_EMBED_MODEL", "bge-m3"),

		QdrantURL:        mustEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: mustEnv("QDRANT_COLLECTION", "thu_tuc_hanh_chinh"),

		RerankerURL: mustEnv("RERANKER_URL", "http://localhost:8000"),

		SimThreshold:      mustEnvFloat("SIM_THRESHOLD", 0.92),
		CacheMaxSize:      mustEnvInt("CACHE_MAX_SIZE", 100),
		CacheTTLHours:     mustEnvFloat("CACHE_TTL_HOURS", 24),
		BM25K1:            mustEnvFloat("BM25_K1", 1.5),
		BM25B:             mustEnvFloat("BM25_B", 0.75),
		CrossTierPenalty:  mustEnvFloat("CROSS_TIER_PENALTY", 0.8),
		TopKParent:        mustEnvInt("TOP_K_PARENT", 5),
		TopKChild:         mustEnvInt("TOP_K_CHILD", 100),
		RRFK:              mustEnvInt("RRF_K", 60),
		MaxChunkTokens:    mustEnvInt("MAX_CHUNK_TOKENS", 1200),
		RerankWeightDense: mustEnvFloat("RERANK_WEIGHT_DENSE", 0.55),
		RerankWeightLex:   mustEnvFloat("RERANK_WEIGHT_LEX", 0.35),
		RerankWeightCE:    mustEnvFloat("RERANK_WEIGHT_CE", 0.10),
		RerankTopNCap:     mustEnvInt("RERANK_TOP_N_CAP", 20),

		EmbedderTimeout:    mustEnvSeconds("EMBEDDER_TIMEOUT_SECONDS", 10),
		VectorStoreTimeout: mustEnvSeconds("VECTOR_STORE_TIMEOUT_SECONDS", 5),
		LLMTimeout:         mustEnvSeconds("LLM_TIMEOUT_SECONDS", 60),
		RerankerTimeout:    mustEnvSeconds("RERANKER_TIMEOUT_SECONDS", 15),
		RequestDeadline:    mustEnvSeconds("REQUEST_DEADLINE_SECONDS", 180),

		TunablesFile: mustEnv("RETRIEVAL_TUNABLES_FILE", ""),
	}

	if cfg.TunablesFile != "" {
		if err := applyTunablesFile(&cfg, cfg.TunablesFile, explicitEnvTunables()); err != nil {
			// Env var defaults already populated the struct; a malformed
			// override file should not crash startup.
			os.Stderr.WriteString("config: tunables file not applied: " + err.Error() + "\n")
		}
	}

	return cfg
}

// explicitEnvTunables reports, per tunable, whether the operator set the
// corresponding env var explicitly. applyTunablesFile uses this to honor
// spec section 6.1's precedence rule: an explicit env var always wins over
// the YAML overrides file, even though the file is applied after env-var
// defaults are computed.
func explicitEnvTunables() map[string]bool {
	return map[string]bool{
		"sim_threshold":       envIsSet("SIM_THRESHOLD"),
		"cache_max_size":      envIsSet("CACHE_MAX_SIZE"),
		"cache_ttl_hours":     envIsSet("CACHE_TTL_HOURS"),
		"bm25_k1":             envIsSet("BM25_K1"),
		"bm25_b":              envIsSet("BM25_B"),
		"cross_tier_penalty":  envIsSet("CROSS_TIER_PENALTY"),
		"top_k_parent":        envIsSet("TOP_K_PARENT"),
		"top_k_child":         envIsSet("TOP_K_CHILD"),
		"rrf_k":               envIsSet("RRF_K"),
		"max_chunk_tokens":    envIsSet("MAX_CHUNK_TOKENS"),
		"rerank_weight_dense": envIsSet("RERANK_WEIGHT_DENSE"),
		"rerank_weight_lex":   envIsSet("RERANK_WEIGHT_LEX"),
		"rerank_weight_ce":    envIsSet("RERANK_WEIGHT_CE"),
		"rerank_top_n_cap":    envIsSet("RERANK_TOP_N_CAP"),
	}
}

func envIsSet(key string) bool {
	return os.Getenv(key) != ""
}

// Snapshot implements the config() operation from spec section 6: a
// read-only view of all tunables, safe to serve over /v1/config.
func (c Config) Snapshot() map[string]any {
	return map[string]any{
		"sim_threshold":       c.SimThreshold,
		"cache_max_size":      c.CacheMaxSize,
		"cache_ttl_hours":     c.CacheTTLHours,
		"bm25_k1":             c.BM25K1,
		"bm25_b":              c.BM25B,
		"cross_tier_penalty":  c.CrossTierPenalty,
		"top_k_parent":        c.TopKParent,
		"top_k_child":         c.TopKChild,
		"rrf_k":               c.RRFK,
		"max_chunk_tokens":    c.MaxChunkTokens,
		"rerank_weight_dense": c.RerankWeightDense,
		"rerank_weight_lex":   c.RerankWeightLex,
		"rerank_weight_ce":    c.RerankWeightCE,
		"rerank_top_n_cap":    c.RerankTopNCap,
		"request_deadline_s":  c.RequestDeadline.Seconds(),
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvSeconds(key string, fallbackSeconds int) time.Duration {
	return time.Duration(mustEnvInt(key, fallbackSeconds)) * time.Second
}
