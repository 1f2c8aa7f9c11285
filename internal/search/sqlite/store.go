// Package sqlite implements a local search.Client backed by SQLite FTS5.
//
// Chunks live in a single database file; each logical collection is a name
// column, so collections are cheap and a search against a collection that was
// never indexed reports NotFound rather than an empty result.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/Yates-Labs/memctx/internal/ingest"
	"github.com/Yates-Labs/memctx/internal/search"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Config holds store settings
type Config struct {
	DataDir           string
	DefaultCollection string // Collection used when a call names none
	MaxSearchResults  int
}

// DefaultConfig returns the default store configuration rooted at dataDir.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:           dataDir,
		DefaultCollection: "memsearch_chunks",
		MaxSearchResults:  100,
	}
}

// Store is the FTS5 search backend
type Store struct {
	db     *sql.DB
	cfg    Config
	logger *slog.Logger
}

// New opens (creating if needed) the database under cfg.DataDir and runs
// migrations.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("sqlite: create data dir: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dbPath := filepath.Join(cfg.DataDir, "memctx.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg, logger: logger.With("component", "sqlite")}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS collections (
			name       TEXT PRIMARY KEY,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS chunks (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			collection  TEXT NOT NULL REFERENCES collections(name),
			chunk_hash  TEXT NOT NULL,
			origin      TEXT NOT NULL,
			name        TEXT NOT NULL DEFAULT '',
			heading     TEXT NOT NULL DEFAULT '',
			content     TEXT NOT NULL,
			chunk_index INTEGER NOT NULL DEFAULT 0,
			indexed_at  TEXT NOT NULL DEFAULT (datetime('now')),
			UNIQUE (collection, chunk_hash)
		);

		CREATE INDEX IF NOT EXISTS idx_chunks_origin ON chunks(collection, origin);

		CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
			content,
			heading,
			name,
			content='chunks',
			content_rowid='id'
		);

		CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
			INSERT INTO chunks_fts(rowid, content, heading, name)
			VALUES (new.id, new.content, new.heading, new.name);
		END;

		CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
			INSERT INTO chunks_fts(chunks_fts, rowid, content, heading, name)
			VALUES ('delete', old.id, old.content, old.heading, old.name);
		END;
	`)
	return err
}

func (s *Store) collectionFor(name string) string {
	if name != "" {
		return name
	}
	return s.cfg.DefaultCollection
}

// Index replaces the chunks of every origin present in chunks and returns the
// number of rows written. The collection is created if needed.
func (s *Store) Index(ctx context.Context, collection string, chunks []ingest.Chunk) (int, error) {
	collection = s.collectionFor(collection)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO collections(name) VALUES (?)", collection); err != nil {
		return 0, fmt.Errorf("sqlite: create collection: %w", err)
	}

	cleared := make(map[string]bool)
	for _, c := range chunks {
		if cleared[c.Origin] {
			continue
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE collection = ? AND origin = ?", collection, c.Origin); err != nil {
			return 0, fmt.Errorf("sqlite: clear %s: %w", c.Origin, err)
		}
		cleared[c.Origin] = true
	}

	written := 0
	for _, c := range chunks {
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO chunks (collection, chunk_hash, origin, name, heading, content, chunk_index)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			collection, c.ChunkHash, c.Origin, c.Name, c.Heading, c.Content, c.Index)
		if err != nil {
			return 0, fmt.Errorf("sqlite: insert chunk: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			written++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	s.logger.Debug("indexed", "collection", collection, "chunks", written, "origins", len(cleared))
	return written, nil
}

func (s *Store) hasCollection(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM collections WHERE name = ?", name).Scan(&n)
	return n > 0, err
}

// Search implements search.Client. Scores are bm25 ranks mapped into (0,1),
// higher is better.
func (s *Store) Search(ctx context.Context, query string, opts search.Options) search.Result {
	ftsQuery := sanitizeFTS(query)
	if ftsQuery == "" {
		return search.TransportError(search.ErrEmptyQuery)
	}
	collection := s.collectionFor(opts.Collection)

	where, whereArgs, err := filterSQL(opts.Filter)
	if err != nil {
		return search.TransportError(err)
	}

	has, err := s.hasCollection(ctx, collection)
	if err != nil {
		return search.TransportError(fmt.Errorf("sqlite: lookup collection: %w", err))
	}
	if !has {
		return search.NotFound(collection)
	}

	limit := opts.TopK
	if limit <= 0 || limit > s.cfg.MaxSearchResults {
		limit = s.cfg.MaxSearchResults
	}

	sqlStr := `
		SELECT c.chunk_hash, c.origin, c.name, c.heading, c.content, fts.rank
		FROM chunks_fts fts
		JOIN chunks c ON c.id = fts.rowid
		WHERE chunks_fts MATCH ? AND c.collection = ?`
	args := []any{ftsQuery, collection}
	if where != "" {
		sqlStr += " AND " + where
		args = append(args, whereArgs...)
	}
	sqlStr += " ORDER BY fts.rank LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return search.TransportError(fmt.Errorf("sqlite: search: %w", err))
	}
	defer func() { _ = rows.Close() }()

	var hits []search.Hit
	for rows.Next() {
		var h search.Hit
		var heading string
		var rank float64
		if err := rows.Scan(&h.ChunkHash, &h.Origin, &h.Name, &heading, &h.Content, &rank); err != nil {
			return search.TransportError(fmt.Errorf("sqlite: scan: %w", err))
		}
		h.Score = rankScore(rank)
		if h.Score < opts.MinScore {
			continue
		}
		if heading != "" {
			h.Metadata = map[string]string{"heading": heading}
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return search.TransportError(fmt.Errorf("sqlite: rows: %w", err))
	}

	return search.OK(hits)
}

// rankScore maps an FTS5 rank (negative, lower is better) into (0,1).
func rankScore(rank float64) float64 {
	x := -rank
	if x <= 0 {
		return 0
	}
	return x / (1 + x)
}

// filterSQL translates a filter expression into a WHERE fragment over chunks.
func filterSQL(filter string) (string, []any, error) {
	conds, err := search.ParseFilter(filter)
	if err != nil {
		return "", nil, err
	}

	var parts []string
	var args []any
	for _, c := range conds {
		var column string
		switch {
		case c.IsOrigin():
			column = "c.origin"
		case c.Field == "name", c.Field == "heading", c.Field == "chunk_hash":
			column = "c." + c.Field
		default:
			return "", nil, fmt.Errorf("unsupported filter field %q", c.Field)
		}

		switch c.Op {
		case search.OpStartsWith:
			// LIKE folds ASCII case; compare the prefix exactly instead.
			parts = append(parts, "substr("+column+", 1, length(?)) = ?")
			args = append(args, c.Value, c.Value)
		case search.OpEquals:
			parts = append(parts, column+" = ?")
			args = append(args, c.Value)
		}
	}
	return strings.Join(parts, " AND "), args, nil
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// sanitizeFTS quotes each word and joins them with OR so natural-language
// queries match on any term; bm25 ranks documents matching more terms higher.
// "fix auth bug" → `"fix" OR "auth" OR "bug"`
func sanitizeFTS(query string) string {
	words := strings.Fields(query)
	out := words[:0]
	for _, w := range words {
		w = strings.ReplaceAll(w, `"`, "")
		if strings.IndexFunc(w, isWordRune) < 0 {
			continue
		}
		out = append(out, `"`+w+`"`)
	}
	return strings.Join(out, " OR ")
}

// CollectionStats summarises one collection
type CollectionStats struct {
	Name    string `json:"name"`
	Chunks  int    `json:"chunks"`
	Origins int    `json:"origins"`
}

// Stats returns per-collection counts, ordered by name.
func (s *Store) Stats(ctx context.Context) ([]CollectionStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT col.name, COUNT(c.id), COUNT(DISTINCT c.origin)
		FROM collections col
		LEFT JOIN chunks c ON c.collection = col.name
		GROUP BY col.name
		ORDER BY col.name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stats []CollectionStats
	for rows.Next() {
		var cs CollectionStats
		if err := rows.Scan(&cs.Name, &cs.Chunks, &cs.Origins); err != nil {
			return nil, err
		}
		stats = append(stats, cs)
	}
	return stats, rows.Err()
}
