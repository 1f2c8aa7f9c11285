// Package milvus implements search.Client over Milvus collections, embedding
// queries and chunks with an Embedder.
package milvus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Yates-Labs/memctx/internal/ingest"
	"github.com/Yates-Labs/memctx/internal/search"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// Common errors for Milvus operations
var (
	ErrInvalidDimension = errors.New("invalid vector dimension")
	ErrConnectionFailed = errors.New("failed to connect to Milvus")
	ErrInsertFailed     = errors.New("failed to insert chunks")
	ErrSearchFailed     = errors.New("failed to search vectors")
)

const (
	fieldID        = "id"
	fieldChunkHash = "chunk_hash"
	fieldContent   = "content"
	fieldOrigin    = "origin"
	fieldName      = "name"
	fieldHeading   = "heading"
	fieldEmbedding = "embedding"
)

var outputFields = []string{fieldChunkHash, fieldContent, fieldOrigin, fieldName, fieldHeading}

// Config holds configuration for the Milvus connection and collections
type Config struct {
	Address           string // Milvus server address (e.g., "localhost:19530")
	DefaultCollection string // Collection used when a call names none
	Dimension         int    // Vector dimension, must match the embedder
	IndexType         string // Index type (default: "HNSW")
	MetricType        string // Similarity metric (default: "COSINE")

	// HNSW index parameters
	M              int // HNSW M parameter (default: 16)
	EfConstruction int // HNSW efConstruction (default: 256)
	SearchEf       int // HNSW ef at query time (default: 64)

	BatchSize int // Chunks embedded per API call
	TopK      int // Used when a call asks for no particular count
}

// DefaultConfig returns default connection and index settings.
func DefaultConfig() Config {
	return Config{
		Address:           "localhost:19530",
		DefaultCollection: "memsearch_chunks",
		Dimension:         1536, // text-embedding-3-small
		IndexType:         "HNSW",
		MetricType:        "COSINE",
		M:                 16,
		EfConstruction:    256,
		SearchEf:          64,
		BatchSize:         64,
		TopK:              10,
	}
}

// Store is a search backend over Milvus
type Store struct {
	client   client.Client
	embedder Embedder
	config   Config
	logger   *slog.Logger
}

// New connects to Milvus. Collections are created on first insert.
func New(ctx context.Context, config Config, embedder Embedder, logger *slog.Logger) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if config.Dimension <= 0 || config.Dimension != embedder.Dimension() {
		return nil, fmt.Errorf("%w: config %d, embedder %d", ErrInvalidDimension, config.Dimension, embedder.Dimension())
	}

	c, err := client.NewGrpcClient(ctx, config.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	return newStore(c, config, embedder, logger), nil
}

func newStore(c client.Client, config Config, embedder Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		client:   c,
		embedder: embedder,
		config:   config,
		logger:   logger.With("component", "milvus"),
	}
}

func (s *Store) collectionFor(name string) string {
	if name != "" {
		return name
	}
	return s.config.DefaultCollection
}

// ensureCollection creates the chunk collection with its schema and index
// unless it already exists.
func (s *Store) ensureCollection(ctx context.Context, name string) error {
	has, err := s.client.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if has {
		return nil
	}

	schema := &entity.Schema{
		CollectionName: name,
		AutoID:         true,
		Fields: []*entity.Field{
			{
				Name:       fieldID,
				DataType:   entity.FieldTypeInt64,
				PrimaryKey: true,
				AutoID:     true,
			},
			{
				Name:       fieldChunkHash,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       fieldContent,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "65535"},
			},
			{
				Name:       fieldOrigin,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "1024"},
			},
			{
				Name:       fieldName,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "256"},
			},
			{
				Name:       fieldHeading,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "512"},
			},
			{
				Name:       fieldEmbedding,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": strconv.Itoa(s.config.Dimension)},
			},
		},
	}

	if err := s.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexHNSW(entity.MetricType(s.config.MetricType), s.config.M, s.config.EfConstruction)
	if err != nil {
		return fmt.Errorf("failed to create index config: %w", err)
	}
	if err := s.client.CreateIndex(ctx, name, fieldEmbedding, idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := s.client.LoadCollection(ctx, name, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	s.logger.Info("collection created", "collection", name)
	return nil
}

// Insert embeds chunks and writes them to collection, creating it if needed.
func (s *Store) Insert(ctx context.Context, collection string, chunks []ingest.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	collection = s.collectionFor(collection)

	if err := s.ensureCollection(ctx, collection); err != nil {
		return err
	}

	batch := s.config.BatchSize
	if batch <= 0 {
		batch = len(chunks)
	}

	for start := 0; start < len(chunks); start += batch {
		end := min(start+batch, len(chunks))
		part := chunks[start:end]

		texts := make([]string, len(part))
		for i, c := range part {
			texts[i] = c.Content
		}
		vectors, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return err
		}

		hashes := make([]string, len(part))
		contents := make([]string, len(part))
		origins := make([]string, len(part))
		names := make([]string, len(part))
		headings := make([]string, len(part))
		for i, c := range part {
			hashes[i] = c.ChunkHash
			contents[i] = c.Content
			origins[i] = c.Origin
			names[i] = c.Name
			headings[i] = c.Heading
		}

		columns := []entity.Column{
			entity.NewColumnVarChar(fieldChunkHash, hashes),
			entity.NewColumnVarChar(fieldContent, contents),
			entity.NewColumnVarChar(fieldOrigin, origins),
			entity.NewColumnVarChar(fieldName, names),
			entity.NewColumnVarChar(fieldHeading, headings),
			entity.NewColumnFloatVector(fieldEmbedding, s.config.Dimension, vectors),
		}
		if _, err := s.client.Insert(ctx, collection, "", columns...); err != nil {
			return fmt.Errorf("%w: %v", ErrInsertFailed, err)
		}
		s.logger.Debug("inserted batch", "collection", collection, "chunks", len(part))
	}

	if err := s.client.Flush(ctx, collection, false); err != nil {
		return fmt.Errorf("failed to flush data: %w", err)
	}
	return nil
}

// Index replaces the stored chunks of every origin present in chunks and
// returns the number of chunks written.
func (s *Store) Index(ctx context.Context, collection string, chunks []ingest.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	collection = s.collectionFor(collection)

	if err := s.ensureCollection(ctx, collection); err != nil {
		return 0, err
	}

	cleared := make(map[string]bool)
	for _, c := range chunks {
		if cleared[c.Origin] {
			continue
		}
		if err := s.DeleteOrigin(ctx, collection, c.Origin); err != nil {
			return 0, err
		}
		cleared[c.Origin] = true
	}

	if err := s.Insert(ctx, collection, chunks); err != nil {
		return 0, err
	}
	s.logger.Info("indexed", "collection", collection, "chunks", len(chunks), "origins", len(cleared))
	return len(chunks), nil
}

// Search implements search.Client. A missing collection is reported as
// NotFound; the score floor is applied after the vector search.
func (s *Store) Search(ctx context.Context, query string, opts search.Options) search.Result {
	if strings.TrimSpace(query) == "" {
		return search.TransportError(search.ErrEmptyQuery)
	}
	collection := s.collectionFor(opts.Collection)

	expr, err := FilterExpr(opts.Filter)
	if err != nil {
		return search.TransportError(err)
	}

	has, err := s.client.HasCollection(ctx, collection)
	if err != nil {
		return search.TransportError(fmt.Errorf("%w: %v", search.ErrUnavailable, err))
	}
	if !has {
		return search.NotFound(collection)
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return search.TransportError(err)
	}
	if len(vectors) == 0 || len(vectors[0]) != s.config.Dimension {
		return search.TransportError(fmt.Errorf("%w: query vector", ErrInvalidDimension))
	}

	sp, err := entity.NewIndexHNSWSearchParam(s.config.SearchEf)
	if err != nil {
		return search.TransportError(fmt.Errorf("failed to create search params: %w", err))
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = s.config.TopK
	}

	results, err := s.client.Search(
		ctx,
		collection,
		nil, // partition names
		expr,
		outputFields,
		[]entity.Vector{entity.FloatVector(vectors[0])},
		fieldEmbedding,
		entity.MetricType(s.config.MetricType),
		topK,
		sp,
	)
	if err != nil {
		return search.TransportError(fmt.Errorf("%w: %v", ErrSearchFailed, err))
	}
	if len(results) == 0 {
		return search.OK(nil)
	}

	hits := hitsFromResult(results[0], opts.MinScore)
	s.logger.Debug("search completed", "collection", collection, "hits", len(hits))
	return search.OK(hits)
}

// hitsFromResult converts one result set into hits at or above minScore.
func hitsFromResult(res client.SearchResult, minScore float64) []search.Hit {
	columns := make(map[string][]string, len(outputFields))
	for _, field := range res.Fields {
		if col, ok := field.(*entity.ColumnVarChar); ok {
			columns[field.Name()] = col.Data()
		}
	}
	value := func(name string, i int) string {
		if data := columns[name]; i < len(data) {
			return data[i]
		}
		return ""
	}

	hits := make([]search.Hit, 0, res.ResultCount)
	for i := 0; i < res.ResultCount && i < len(res.Scores); i++ {
		score := float64(res.Scores[i])
		if score < minScore {
			continue
		}

		h := search.Hit{
			Content:   value(fieldContent, i),
			Score:     score,
			Origin:    value(fieldOrigin, i),
			Name:      value(fieldName, i),
			ChunkHash: value(fieldChunkHash, i),
		}
		if heading := value(fieldHeading, i); heading != "" {
			h.Metadata = map[string]string{"heading": heading}
		}
		hits = append(hits, h)
	}
	return hits
}

// DeleteOrigin removes every chunk of origin from collection.
func (s *Store) DeleteOrigin(ctx context.Context, collection, origin string) error {
	collection = s.collectionFor(collection)
	expr := fmt.Sprintf("%s == %s", fieldOrigin, strconv.Quote(origin))
	if err := s.client.Delete(ctx, collection, "", expr); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// RowCount returns the number of stored chunks in collection.
func (s *Store) RowCount(ctx context.Context, collection string) (int64, error) {
	stats, err := s.client.GetCollectionStatistics(ctx, s.collectionFor(collection))
	if err != nil {
		return 0, fmt.Errorf("failed to get stats: %w", err)
	}
	n, err := strconv.ParseInt(stats["row_count"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected row_count %q: %w", stats["row_count"], err)
	}
	return n, nil
}

// Close releases the Milvus connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
