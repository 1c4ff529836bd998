package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the channel retrieval core.
type Config struct {
	Source    SourceConfig    `yaml:"source"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Entities  EntityConfig    `yaml:"entities"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Assemble  AssembleConfig  `yaml:"assemble"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Refresh   RefreshConfig   `yaml:"refresh"`
}

// SourceConfig controls discovery of transcript files in the data directory.
type SourceConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// ChunkingConfig holds transcript chunking parameters.
type ChunkingConfig struct {
	MinTokens         int     `yaml:"min_tokens"`
	MaxTokens         int     `yaml:"max_tokens"`
	GapTolerance      float64 `yaml:"gap_tolerance"`      // seconds of caption silence treated as a discontinuity
	BacktrackWindow   int     `yaml:"backtrack_window"`   // segments searched backwards for a sentence boundary
	CoverageTolerance float64 `yaml:"coverage_tolerance"` // max uncovered span (seconds) before a gap is recorded
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"` // "openai", "ollama", "mock"
	Model       string `yaml:"model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	BaseURL     string `yaml:"base_url"`
	Dimension   int    `yaml:"dimension"`
	BatchSize   int    `yaml:"batch_size"`
	MaxAttempts int    `yaml:"max_attempts"` // retry budget per batch
}

// EntityConfig holds entity extraction configuration.
type EntityConfig struct {
	Mode       string              `yaml:"mode"`       // "vocabulary", "heuristic"
	Vocabulary map[string][]string `yaml:"vocabulary"` // canonical entity -> aliases
}

// RetrieveConfig holds query planning configuration.
type RetrieveConfig struct {
	TopK            int     `yaml:"top_k"`
	Oversample      int     `yaml:"oversample"`       // candidate multiplier absorbing post-filter loss
	MinScore        float64 `yaml:"min_score"`        // normalized similarity cutoff
	ExpandNeighbors bool    `yaml:"expand_neighbors"` // fetch sequence-adjacent units of each match
	CacheSize       int     `yaml:"cache_size"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// AssembleConfig holds context assembly configuration.
type AssembleConfig struct {
	MaxContextTokens int `yaml:"max_context_tokens"`
}

// IngestConfig holds ingestion pipeline configuration.
type IngestConfig struct {
	Workers int `yaml:"workers"` // bounded parallelism across videos
}

// RefreshConfig seeds the persisted refresh switch on first run.
type RefreshConfig struct {
	Mode         string `yaml:"mode"` // "auto" or "manual"
	IntervalDays int    `yaml:"interval_days"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			Includes: []string{"**/*.json", "**/*.srt"},
			Excludes: []string{"**/index.db", "**/*_summary.json"},
		},
		Chunking: ChunkingConfig{
			MinTokens:         400,
			MaxTokens:         800,
			GapTolerance:      30,
			BacktrackWindow:   5,
			CoverageTolerance: 2,
		},
		Embedding: EmbeddingConfig{
			Provider:    "openai",
			Model:       "text-embedding-3-small",
			APIKeyEnv:   "OPENAI_API_KEY",
			Dimension:   1536,
			BatchSize:   64,
			MaxAttempts: 4,
		},
		Entities: EntityConfig{
			Mode: "heuristic",
		},
		Retrieve: RetrieveConfig{
			TopK:            5,
			Oversample:      4,
			MinScore:        0.25,
			ExpandNeighbors: true,
			CacheSize:       100,
			CacheTTLSeconds: 300,
		},
		Assemble: AssembleConfig{
			MaxContextTokens: 4000,
		},
		Ingest: IngestConfig{
			Workers: 4,
		},
		Refresh: RefreshConfig{
			Mode:         "manual",
			IntervalDays: 1,
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when
// the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a data directory (looks for
// chanrag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "chanrag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}
	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// IndexDBPath returns the path to the index database inside the data dir.
func IndexDBPath(dir string) string {
	return filepath.Join(dir, "index.db")
}
