package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Yates-Labs/memctx/internal/config"
	"github.com/Yates-Labs/memctx/internal/ingest"
	"github.com/Yates-Labs/memctx/internal/search"
	"github.com/Yates-Labs/memctx/internal/search/memsearch"
	"github.com/Yates-Labs/memctx/internal/search/milvus"
	"github.com/Yates-Labs/memctx/internal/search/sqlite"
	"github.com/Yates-Labs/memctx/internal/server"
)

// chunkIndexer writes chunks into a collection, replacing their origins
type chunkIndexer interface {
	Index(ctx context.Context, collection string, chunks []ingest.Chunk) (int, error)
}

// backend is the configured search client plus what else it can do
type backend struct {
	search.Client
	name    string
	cli     *memsearch.Client // Set for the memsearch backend
	indexer chunkIndexer      // Set for backends memctx indexes itself
	close   func() error
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	switch cfg.Backend {
	case config.BackendMemsearch:
		c := memsearch.New(memsearch.Config{Binary: cfg.Memsearch.Binary}, logger)
		if !c.Available(ctx) {
			logger.Warn("memsearch CLI not found, searches will return no results", "binary", cfg.Memsearch.Binary)
		}
		return &backend{Client: c, name: cfg.Backend, cli: c}, nil

	case config.BackendSQLite:
		sc := sqlite.DefaultConfig(cfg.MemoryDirectory)
		sc.DefaultCollection = cfg.ProjectCollection
		store, err := sqlite.New(sc, logger)
		if err != nil {
			return nil, err
		}
		return &backend{Client: store, name: cfg.Backend, indexer: store, close: store.Close}, nil

	case config.BackendMilvus:
		embedder, err := milvus.NewOpenAIEmbedder(cfg.Milvus.APIKey, cfg.Milvus.EmbeddingModel, cfg.Milvus.Dimension)
		if err != nil {
			return nil, err
		}

		mc := milvus.DefaultConfig()
		mc.Address = cfg.Milvus.Address
		mc.DefaultCollection = cfg.ProjectCollection
		mc.Dimension = cfg.Milvus.Dimension
		mc.MetricType = cfg.Milvus.MetricType
		mc.M = cfg.Milvus.M
		mc.EfConstruction = cfg.Milvus.EfConstruction
		mc.TopK = cfg.TopK

		store, err := milvus.New(ctx, mc, embedder, logger)
		if err != nil {
			return nil, err
		}
		return &backend{Client: store, name: cfg.Backend, indexer: store, close: store.Close}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// watcher returns the file watcher, or nil when the backend has none.
func (b *backend) watcher() server.Watcher {
	if b.cli == nil {
		return nil
	}
	return b.cli
}

// admin returns the index manager, or nil when the backend has none.
func (b *backend) admin() server.Admin {
	if b.cli == nil {
		return nil
	}
	return b.cli
}

// sessionIndexer returns the directory indexer used at session start, or nil.
func (b *backend) sessionIndexer() server.Indexer {
	if b.cli == nil {
		return nil
	}
	return b.cli
}

func (b *backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}
