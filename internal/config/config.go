// Package config provides application configuration loading and the fusion policy store for the
// kasane server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Vector    VectorConfig    `yaml:"vector"`
	Search    EngineConfig    `yaml:"search"`
	Reranker  RerankerConfig  `yaml:"reranker"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the document database, indices and fusion policy files.
type StorageConfig struct {
	DatabasePath      string `yaml:"database_path"`
	BleveIndexPath    string `yaml:"bleve_index_path"`
	VectorIndexPath   string `yaml:"vector_index_path"`
	DefaultConfigPath string `yaml:"default_config_path"`
	SavedConfigPath   string `yaml:"saved_config_path"`
}

// EmbeddingConfig holds embedder settings. Provider is one of "mock", "onnx" or "openai".
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	ModelPath  string `yaml:"model_path"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// VectorConfig selects the vector index implementation ("memory" or "hnsw").
type VectorConfig struct {
	IndexType string `yaml:"index_type"`
}

// EngineConfig holds query-time settings that are not part of the fusion policy.
type EngineConfig struct {
	// CanonicalKeyField is the metadata field compared against the normalized query for exact matches.
	CanonicalKeyField string `yaml:"canonical_key_field"`
	// GroupField is the metadata field used for analytics grouping.
	GroupField string `yaml:"group_field"`
	// ContentField is the metadata field sent to the reranker as document text.
	ContentField  string        `yaml:"content_field"`
	RerankTopN    int           `yaml:"rerank_top_n"`
	QueryTimeout  time.Duration `yaml:"query_timeout"`
	SourceTimeout time.Duration `yaml:"source_timeout"`
	RerankTimeout time.Duration `yaml:"rerank_timeout"`
}

// RerankerConfig holds settings for the HTTP rerank client. An empty BaseURL disables it.
type RerankerConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxFailures int           `yaml:"max_failures"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	cfg.Storage.SavedConfigPath = expandPath(cfg.Storage.SavedConfigPath, configDir)
	if cfg.Storage.DefaultConfigPath != "" {
		cfg.Storage.DefaultConfigPath = expandPath(cfg.Storage.DefaultConfigPath, configDir)
	}
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
