package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Chunking.MinTokens <= 0 || cfg.Chunking.MaxTokens <= cfg.Chunking.MinTokens {
		t.Errorf("invalid chunking bounds: min=%d max=%d", cfg.Chunking.MinTokens, cfg.Chunking.MaxTokens)
	}
	if cfg.Embedding.Provider == "" || cfg.Embedding.Model == "" {
		t.Error("embedding defaults incomplete")
	}
	if cfg.Retrieve.TopK <= 0 || cfg.Retrieve.Oversample <= 0 {
		t.Errorf("invalid retrieve defaults: %+v", cfg.Retrieve)
	}
	if cfg.Assemble.MaxContextTokens <= 0 {
		t.Error("context budget must default to a positive value")
	}
	if cfg.Refresh.Mode != "manual" {
		t.Errorf("refresh should default to manual, got %s", cfg.Refresh.Mode)
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Retrieve.TopK != DefaultConfig().Retrieve.TopK {
		t.Error("a missing file should yield defaults")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chanrag.yaml")
	content := `
chunking:
  min_tokens: 200
  max_tokens: 500
retrieve:
  top_k: 8
refresh:
  mode: auto
  interval_days: 3
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Chunking.MinTokens != 200 || cfg.Chunking.MaxTokens != 500 {
		t.Errorf("chunking overrides not applied: %+v", cfg.Chunking)
	}
	if cfg.Retrieve.TopK != 8 {
		t.Errorf("top_k override not applied: %d", cfg.Retrieve.TopK)
	}
	if cfg.Refresh.Mode != "auto" || cfg.Refresh.IntervalDays != 3 {
		t.Errorf("refresh overrides not applied: %+v", cfg.Refresh)
	}
	// Untouched sections keep their defaults.
	if cfg.Embedding.Model != DefaultConfig().Embedding.Model {
		t.Error("unrelated defaults should survive a partial file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chanrag.yaml")

	cfg := DefaultConfig()
	cfg.Retrieve.TopK = 12
	cfg.Entities.Vocabulary = map[string][]string{"faiss": {"vector index"}}
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Retrieve.TopK != 12 {
		t.Errorf("top_k lost in round trip: %d", loaded.Retrieve.TopK)
	}
	if len(loaded.Entities.Vocabulary["faiss"]) != 1 {
		t.Errorf("vocabulary lost in round trip: %+v", loaded.Entities.Vocabulary)
	}
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()

	// Without a file the defaults apply.
	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Retrieve.TopK != DefaultConfig().Retrieve.TopK {
		t.Error("expected defaults for an empty directory")
	}

	if err := os.WriteFile(filepath.Join(dir, "chanrag.yaml"), []byte("retrieve:\n  top_k: 9\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadFromDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Retrieve.TopK != 9 {
		t.Errorf("chanrag.yaml not picked up: %d", cfg.Retrieve.TopK)
	}
}

func TestIndexDBPath(t *testing.T) {
	if got := IndexDBPath("/data"); got != filepath.Join("/data", "index.db") {
		t.Errorf("unexpected db path: %s", got)
	}
}
