package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kasane/data/db/documents.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/kasane/data/indices/bleve"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "/usr/local/var/kasane/data/indices/vector"
	}
	if cfg.Storage.SavedConfigPath == "" {
		cfg.Storage.SavedConfigPath = "/usr/local/var/kasane/saved_config.yaml"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "mock"
	}
	if cfg.Embedding.Provider == "onnx" && cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/kasane/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Provider == "openai" && cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Vector.IndexType == "" {
		cfg.Vector.IndexType = "memory"
	}
	d := DefaultEngineConfig()
	if cfg.Search.CanonicalKeyField == "" {
		cfg.Search.CanonicalKeyField = d.CanonicalKeyField
	}
	if cfg.Search.GroupField == "" {
		cfg.Search.GroupField = d.GroupField
	}
	if cfg.Search.ContentField == "" {
		cfg.Search.ContentField = d.ContentField
	}
	if cfg.Search.RerankTopN == 0 {
		cfg.Search.RerankTopN = d.RerankTopN
	}
	if cfg.Search.QueryTimeout == 0 {
		cfg.Search.QueryTimeout = d.QueryTimeout
	}
	if cfg.Search.SourceTimeout == 0 {
		cfg.Search.SourceTimeout = d.SourceTimeout
	}
	if cfg.Search.RerankTimeout == 0 {
		cfg.Search.RerankTimeout = d.RerankTimeout
	}
	if cfg.Reranker.APIKeyEnv == "" {
		cfg.Reranker.APIKeyEnv = "COHERE_API_KEY"
	}
	if cfg.Reranker.Model == "" {
		cfg.Reranker.Model = "rerank-english-v3.0"
	}
	if cfg.Reranker.Timeout == 0 {
		cfg.Reranker.Timeout = cfg.Search.RerankTimeout
	}
	if cfg.Reranker.MaxFailures == 0 {
		cfg.Reranker.MaxFailures = 5
	}
}

// DefaultEngineConfig returns the query-time settings used when the config file leaves them unset.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		CanonicalKeyField: "normalized_text",
		GroupField:        "category",
		ContentField:      "text",
		RerankTopN:        50,
		QueryTimeout:      10 * time.Second,
		SourceTimeout:     5 * time.Second,
		RerankTimeout:     2 * time.Second,
	}
}
