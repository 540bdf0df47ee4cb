package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if cfg.Extraction.Provider != "yake" {
		t.Errorf("expected provider 'yake', got %q", cfg.Extraction.Provider)
	}
	if cfg.Extraction.Language != "fr" || cfg.Extraction.MaxNGramSize != 3 || cfg.Extraction.TopK != 20 {
		t.Errorf("unexpected extraction defaults: %+v", cfg.Extraction)
	}
	if cfg.Extraction.DedupThreshold != 0.9 {
		t.Errorf("expected dedup 0.9, got %v", cfg.Extraction.DedupThreshold)
	}
	if cfg.Content.Timeout != 15*time.Second {
		t.Errorf("expected 15s content timeout, got %v", cfg.Content.Timeout)
	}
	if cfg.SERP.NumResults != 10 {
		t.Errorf("expected 10 results, got %d", cfg.SERP.NumResults)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
extraction:
  provider: llm
  language: en
serp:
  provider: googlenews
server:
  port: 9000
analysis:
  source_timeout: 5s
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Extraction.Provider != "llm" {
		t.Errorf("expected provider 'llm', got %q", cfg.Extraction.Provider)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Analysis.SourceTimeout != 5*time.Second {
		t.Errorf("expected 5s, got %v", cfg.Analysis.SourceTimeout)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Extraction.TopK != 20 {
		t.Errorf("expected default top_k, got %d", cfg.Extraction.TopK)
	}
	if cfg.LLM.OllamaURL != "http://localhost:11434" {
		t.Errorf("expected default ollama_url, got %q", cfg.LLM.OllamaURL)
	}
}

func TestParseRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"extraction provider": "extraction:\n  provider: rake\n",
		"content provider":    "content:\n  provider: diffbot\n",
		"serp provider":       "serp:\n  provider: bing\n",
		"dedup":               "extraction:\n  dedup_threshold: 1.5\n",
		"ngram":               "extraction:\n  max_ngram_size: 0\n",
		"top_k":               "extraction:\n  top_k: -1\n",
		"yaml":                "extraction: [",
	}
	for name, data := range cases {
		if _, err := parse([]byte(data)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestDefaultHasNoCredentials(t *testing.T) {
	cfg := Default()
	if cfg.SERP.APIKeyEnv != "SERPAPI_API_KEY" {
		t.Errorf("expected env var name, got %q", cfg.SERP.APIKeyEnv)
	}

	t.Setenv("KWSCOUT_TEST_KEY", "  secret  ")
	if got := APIKey("KWSCOUT_TEST_KEY"); got != "secret" {
		t.Errorf("expected trimmed key, got %q", got)
	}
	if got := APIKey(""); got != "" {
		t.Errorf("expected empty key for empty env name, got %q", got)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.SERP.Provider != "serpapi" {
		t.Errorf("expected serpapi, got %q", cfg.SERP.Provider)
	}

	resolved, err := ResolveConfigPath(path)
	if err != nil || resolved != path {
		t.Errorf("expected explicit path to resolve, got %q, %v", resolved, err)
	}
	if _, err := ResolveConfigPath(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit path")
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	defaultDir := cfg.GetDataDir()
	if defaultDir == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
}

func TestLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for level, want := range cases {
		cfg := &Config{Logging: Logging{Level: level}}
		if got := cfg.LogLevel(); got != want {
			t.Errorf("LogLevel(%q) = %v, want %v", level, got, want)
		}
	}
}
