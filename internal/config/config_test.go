package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadIncludesRetrievalDefaults(t *testing.T) {
	t.Setenv("SIM_THRESHOLD", "")
	t.Setenv("CACHE_MAX_SIZE", "")
	t.Setenv("BM25_K1", "")
	t.Setenv("RRF_K", "")
	t.Setenv("RERANK_TOP_N_CAP", "")

	cfg := Load()
	if cfg.SimThreshold != 0.92 {
		t.Fatalf("expected default sim threshold 0.92, got %v", cfg.SimThreshold)
	}
	if cfg.CacheMaxSize != 100 {
		t.Fatalf("expected default cache max size 100, got %d", cfg.CacheMaxSize)
	}
	if cfg.BM25K1 != 1.5 {
		t.Fatalf("expected default bm25 k1 1.5, got %v", cfg.BM25K1)
	}
	if cfg.RRFK != 60 {
		t.Fatalf("expected default rrf k 60, got %d", cfg.RRFK)
	}
	if cfg.RerankTopNCap != 20 {
		t.Fatalf("expected default rerank top n cap 20, got %d", cfg.RerankTopNCap)
	}
}

func TestLoadParsesRetrievalOverrides(t *testing.T) {
	t.Setenv("SIM_THRESHOLD", "0.88")
	t.Setenv("CACHE_MAX_SIZE", "250")
	t.Setenv("BM25_K1", "1.2")
	t.Setenv("RRF_K", "75")
	t.Setenv("RERANK_TOP_N_CAP", "12")

	cfg := Load()
	if cfg.SimThreshold != 0.88 {
		t.Fatalf("expected sim threshold override 0.88, got %v", cfg.SimThreshold)
	}
	if cfg.CacheMaxSize != 250 {
		t.Fatalf("expected cache max size override 250, got %d", cfg.CacheMaxSize)
	}
	if cfg.BM25K1 != 1.2 {
		t.Fatalf("expected bm25 k1 override 1.2, got %v", cfg.BM25K1)
	}
	if cfg.RRFK != 75 {
		t.Fatalf("expected rrf k override 75, got %d", cfg.RRFK)
	}
	if cfg.RerankTopNCap != 12 {
		t.Fatalf("expected rerank top n cap override 12, got %d", cfg.RerankTopNCap)
	}
}

func TestLoadEnsembleWeightsDefaultsSumToOne(t *testing.T) {
	t.Setenv("RERANK_WEIGHT_DENSE", "")
	t.Setenv("RERANK_WEIGHT_LEX", "")
	t.Setenv("RERANK_WEIGHT_CE", "")

	cfg := Load()
	sum := cfg.RerankWeightDense + cfg.RerankWeightLex + cfg.RerankWeightCE
	if diff := sum - 1.0; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected default ensemble weights to sum to 1, got %v", sum)
	}
}

func TestLoadAppliesTunablesFileOverEnvDefaults(t *testing.T) {
	t.Setenv("RRF_K", "")
	t.Setenv("SIM_THRESHOLD", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "tunables.yaml")
	contents := "rrf_k: 90\nsim_threshold: 0.95\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write tunables file: %v", err)
	}
	t.Setenv("RETRIEVAL_TUNABLES_FILE", path)

	cfg := Load()
	if cfg.RRFK != 90 {
		t.Fatalf("expected rrf_k from tunables file 90, got %d", cfg.RRFK)
	}
	if cfg.SimThreshold != 0.95 {
		t.Fatalf("expected sim_threshold from tunables file 0.95, got %v", cfg.SimThreshold)
	}
}

func TestExplicitEnvVarWinsOverTunablesFile(t *testing.T) {
	t.Setenv("RRF_K", "42")
	t.Setenv("SIM_THRESHOLD", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "tunables.yaml")
	contents := "rrf_k: 90\nsim_threshold: 0.95\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write tunables file: %v", err)
	}
	t.Setenv("RETRIEVAL_TUNABLES_FILE", path)

	cfg := Load()
	if cfg.RRFK != 42 {
		t.Fatalf("expected explicit RRF_K=42 to win over tunables file, got %d", cfg.RRFK)
	}
	if cfg.SimThreshold != 0.95 {
		t.Fatalf("expected sim_threshold from tunables file when env var unset, got %v", cfg.SimThreshold)
	}
}
