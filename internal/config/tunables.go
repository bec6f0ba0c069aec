package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// tunablesOverride is the YAML shape accepted by RETRIEVAL_TUNABLES_FILE
// (spec section 6.1). Every field is optional; an omitted field leaves the
// env-var default in place, while an explicit zero is applied.
type tunablesOverride struct {
	SimThreshold      *float64 `yaml:"sim_threshold"`
	CacheMaxSize      *int     `yaml:"cache_max_size"`
	CacheTTLHours     *float64 `yaml:"cache_ttl_hours"`
	BM25K1            *float64 `yaml:"bm25_k1"`
	BM25B             *float64 `yaml:"bm25_b"`
	CrossTierPenalty  *float64 `yaml:"cross_tier_penalty"`
	TopKParent        *int     `yaml:"top_k_parent"`
	TopKChild         *int     `yaml:"top_k_child"`
	RRFK              *int     `yaml:"rrf_k"`
	MaxChunkTokens    *int     `yaml:"max_chunk_tokens"`
	RerankWeightDense *float64 `yaml:"rerank_weight_dense"`
	RerankWeightLex   *float64 `yaml:"rerank_weight_lex"`
	RerankWeightCE    *float64 `yaml:"rerank_weight_ce"`
	RerankTopNCap     *int     `yaml:"rerank_top_n_cap"`
}

// applyTunablesFile layers a YAML overrides file on top of cfg. explicitEnv
// marks which fields the operator set via an env var; those always win over
// the file per spec section 6.1's precedence rule, even though this
// function runs after the struct is already populated from env-var-or-default.
func applyTunablesFile(cfg *Config, path string, explicitEnv map[string]bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var override tunablesOverride
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return err
	}

	if override.SimThreshold != nil && !explicitEnv["sim_threshold"] {
		cfg.SimThreshold = *override.SimThreshold
	}
	if override.CacheMaxSize != nil && !explicitEnv["cache_max_size"] {
		cfg.CacheMaxSize = *override.CacheMaxSize
	}
	if override.CacheTTLHours != nil && !explicitEnv["cache_ttl_hours"] {
		cfg.CacheTTLHours = *override.CacheTTLHours
	}
	if override.BM25K1 != nil && !explicitEnv["bm25_k1"] {
		cfg.BM25K1 = *override.BM25K1
	}
	if override.BM25B != nil && !explicitEnv["bm25_b"] {
		cfg.BM25B = *override.BM25B
	}
	if override.CrossTierPenalty != nil && !explicitEnv["cross_tier_penalty"] {
		cfg.CrossTierPenalty = *override.CrossTierPenalty
	}
	if override.TopKParent != nil && !explicitEnv["top_k_parent"] {
		cfg.TopKParent = *override.TopKParent
	}
	if override.TopKChild != nil && !explicitEnv["top_k_child"] {
		cfg.TopKChild = *override.TopKChild
	}
	if override.RRFK != nil && !explicitEnv["rrf_k"] {
		cfg.RRFK = *override.RRFK
	}
	if override.MaxChunkTokens != nil && !explicitEnv["max_chunk_tokens"] {
		cfg.MaxChunkTokens = *override.MaxChunkTokens
	}
	if override.RerankWeightDense != nil && !explicitEnv["rerank_weight_dense"] {
		cfg.RerankWeightDense = *override.RerankWeightDense
	}
	if override.RerankWeightLex != nil && !explicitEnv["rerank_weight_lex"] {
		cfg.RerankWeightLex = *override.RerankWeightLex
	}
	if override.RerankWeightCE != nil && !explicitEnv["rerank_weight_ce"] {
		cfg.RerankWeightCE = *override.RerankWeightCE
	}
	if override.RerankTopNCap != nil && !explicitEnv["rerank_top_n_cap"] {
		cfg.RerankTopNCap = *override.RerankTopNCap
	}

	return nil
}
