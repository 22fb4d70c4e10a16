package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "")
	t.Setenv("GENERATOR_PROVIDER", "")
	t.Setenv("RULES_FILE", "")
	t.Setenv("LEXICAL_MIN_SCORE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.EmbeddingProvider != "" || cfg.GeneratorProvider != "none" {
		t.Fatalf("expected lexical index without generator, got %q/%q", cfg.EmbeddingProvider, cfg.GeneratorProvider)
	}
	if cfg.LexicalMinScore != 0.3 {
		t.Fatalf("expected lexical min score 0.3, got %v", cfg.LexicalMinScore)
	}
	if cfg.Thresholds.Admission != 0.2 || cfg.Thresholds.Acceptance != 0.4 || cfg.Thresholds.Context != 0.15 {
		t.Fatalf("unexpected default thresholds %+v", cfg.Thresholds)
	}
	if cfg.Rules.MinChars != 15 || len(cfg.Rules.RefusalPrefixes) == 0 {
		t.Fatalf("unexpected default rules %+v", cfg.Rules)
	}
	if cfg.ResilienceRetryAttempts != 1 {
		t.Fatalf("expected single attempt by default, got %d", cfg.ResilienceRetryAttempts)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "Ollama")
	t.Setenv("SEARCH_CONFIDENCE", "0.65")
	t.Setenv("CHUNK_SIZE", "200")
	t.Setenv("SEARCH_ENABLED", "false")
	t.Setenv("CHUNK_OVERLAP", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.EmbeddingProvider != "ollama" {
		t.Fatalf("expected lower-cased provider, got %q", cfg.EmbeddingProvider)
	}
	if cfg.SearchConfidence != 0.65 || cfg.ChunkSize != 200 || cfg.SearchEnabled {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
	if cfg.ChunkOverlap != 50 {
		t.Fatalf("expected fallback overlap on parse error, got %d", cfg.ChunkOverlap)
	}
}

func TestLoadRulesFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	doc := `answer:
  min_chars: 20
  refusal_prefixes:
    - "unable to help"
thresholds:
  acceptance: 0.5
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	t.Setenv("RULES_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Rules.MinChars != 20 || cfg.Rules.MaxChars != 500 {
		t.Fatalf("unexpected answer rules %+v", cfg.Rules)
	}
	if len(cfg.Rules.RefusalPrefixes) != 1 || cfg.Rules.RefusalPrefixes[0] != "unable to help" {
		t.Fatalf("unexpected refusal prefixes %q", cfg.Rules.RefusalPrefixes)
	}
	if cfg.Thresholds.Acceptance != 0.5 || cfg.Thresholds.Admission != 0.2 {
		t.Fatalf("unexpected thresholds %+v", cfg.Thresholds)
	}
}

func TestLoadRulesFileErrors(t *testing.T) {
	t.Setenv("RULES_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected missing rules file error")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("answer: [unclosed"), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	if _, err := LoadRules(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
