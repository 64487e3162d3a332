package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/hyperjump/kasane/internal/config"
	"github.com/hyperjump/kasane/internal/embedding"
	"github.com/hyperjump/kasane/internal/indexer"
	"github.com/hyperjump/kasane/internal/keyword"
	"github.com/hyperjump/kasane/internal/rerank"
	"github.com/hyperjump/kasane/internal/search"
	"github.com/hyperjump/kasane/internal/storage"
	"github.com/hyperjump/kasane/internal/vector"
)

// Components holds the wired engine and its backing stores.
type Components struct {
	Storage      storage.Storage
	Embedder     embedding.Embedder
	VectorIndex  vector.VectorIndex
	KeywordIndex keyword.KeywordIndex
	Configs      *config.Store
	Reranker     *rerank.HTTPReranker
	Engine       *search.Engine
	Indexer      *indexer.Indexer

	vectorPath string
	logger     *zap.Logger
}

// Close persists the vector index and releases every component.
func (c *Components) Close() {
	if c.VectorIndex != nil && c.vectorPath != "" {
		if err := c.VectorIndex.Save(c.vectorPath); err != nil {
			c.logger.Warn("vector index save failed", zap.String("path", c.vectorPath), zap.Error(err))
		}
	}
	if c.Reranker != nil {
		_ = c.Reranker.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

// EnsureIndexed rebuilds the indices from storage when the vector index came up empty but
// documents exist, e.g. on first start with a fresh index path.
func (c *Components) EnsureIndexed(ctx context.Context) error {
	if c.VectorIndex.Size() > 0 {
		return nil
	}
	n, err := c.Storage.CountDocuments(ctx)
	if err != nil || n == 0 {
		return err
	}
	c.logger.Info("vector index empty, rebuilding from storage", zap.Int64("documents", n))
	indexed, err := c.Indexer.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("rebuild indices: %w", err)
	}
	c.logger.Info("rebuild complete", zap.Int("documents", indexed))
	return nil
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (_ *Components, err error) {
	c := &Components{vectorPath: cfg.Storage.VectorIndexPath, logger: logger}
	defer func() {
		if err != nil {
			c.vectorPath = ""
			c.Close()
		}
	}()

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Storage = store

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		logger.Warn("embedder unavailable, falling back to mock",
			zap.String("provider", cfg.Embedding.Provider), zap.Error(err))
		embedder = embedding.NewCachedEmbedder(embedding.NewMockEmbedder(cfg.Embedding.Dimensions), cfg.Embedding.CacheSize)
	}
	c.Embedder = embedder
	dims := embedder.Dimensions()
	if dims <= 0 {
		dims = cfg.Embedding.Dimensions
	}

	vectorIndex, err := vector.NewVectorIndex(cfg.Vector.IndexType, dims)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	c.VectorIndex = vectorIndex
	if c.vectorPath != "" {
		if _, statErr := os.Stat(c.vectorPath); statErr == nil {
			if loadErr := vectorIndex.Load(c.vectorPath); loadErr != nil {
				logger.Warn("vector index load skipped, will rebuild", zap.String("path", c.vectorPath), zap.Error(loadErr))
			}
		}
	}
	logger.Info("vector index initialized",
		zap.String("type", cfg.Vector.IndexType),
		zap.Int("dimensions", dims),
		zap.Int("size", vectorIndex.Size()))

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	c.KeywordIndex = keywordIndex

	c.Configs = config.NewStore(cfg.Storage.DefaultConfigPath, cfg.Storage.SavedConfigPath, config.WithStoreLogger(logger))
	if _, err = c.Configs.LoadActive(); err != nil {
		return nil, fmt.Errorf("failed to load search config: %w", err)
	}

	engineOpts := []search.EngineOption{
		search.WithEngineConfig(cfg.Search),
		search.WithLogger(logger),
	}
	if cfg.Reranker.BaseURL != "" {
		reranker, err := rerank.New(rerank.FromConfig(cfg.Reranker, os.Getenv), rerank.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize reranker: %w", err)
		}
		c.Reranker = reranker
		engineOpts = append(engineOpts, search.WithReranker(reranker))
	}

	c.Engine = search.NewEngine(
		search.NewIndexVectorSource(c.Embedder, c.VectorIndex, c.Storage, search.WithSourceLogger(logger)),
		search.NewIndexKeywordSource(c.KeywordIndex, c.Storage, search.WithSourceLogger(logger)),
		c.Configs,
		engineOpts...,
	)
	c.Indexer = indexer.NewIndexer(c.Storage, c.Embedder, c.VectorIndex, c.KeywordIndex, indexer.WithLogger(logger))
	return c, nil
}
