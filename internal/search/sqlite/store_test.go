package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/Yates-Labs/memctx/internal/ingest"
	"github.com/Yates-Labs/memctx/internal/search"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(DefaultConfig(t.TempDir()), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seed(t *testing.T, s *Store, collection string) {
	t.Helper()
	var chunks []ingest.Chunk
	chunks = append(chunks, ingest.ChunkDocument("/repo/auth.md", "# Login\nUsers authenticate with JWT tokens.\n# Logout\nSessions expire after an hour.")...)
	chunks = append(chunks, ingest.ChunkDocument("/repo/db.md", "# Pooling\nConnection pooling was tuned for postgres.")...)
	chunks = append(chunks, ingest.ChunkDocument("/other/ui.md", "The sidebar renders a tree of files.")...)
	if _, err := s.Index(context.Background(), collection, chunks); err != nil {
		t.Fatalf("Index: %v", err)
	}
}

func TestSearchRanksMatches(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, "project")

	res := s.Search(context.Background(), "JWT tokens", search.Options{Collection: "project", TopK: 5, MinScore: 0.01})
	if res.Outcome != search.OutcomeOK {
		t.Fatalf("Expected ok, got %s: %v", res.Outcome, res.Err)
	}
	if len(res.Hits) != 1 {
		t.Fatalf("Expected 1 hit, got %d", len(res.Hits))
	}

	h := res.Hits[0]
	if h.Origin != "/repo/auth.md" || h.Name != "auth" || h.Metadata["heading"] != "Login" {
		t.Errorf("Unexpected hit %+v", h)
	}
	if h.Score <= 0 || h.Score >= 1 {
		t.Errorf("Expected score in (0,1), got %f", h.Score)
	}
	if h.ChunkHash != ingest.Hash(h.Origin, h.Content) {
		t.Errorf("Expected stored chunk hash, got %s", h.ChunkHash)
	}
}

func TestSearchMissingCollection(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, "project")

	res := s.Search(context.Background(), "tokens", search.Options{Collection: "memsearch_global"})
	if res.Outcome != search.OutcomeNotFound {
		t.Errorf("Expected not_found, got %s", res.Outcome)
	}
	if !errors.Is(res.Err, search.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", res.Err)
	}
}

func TestSearchFilter(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, "project")

	res := s.Search(context.Background(), "pooling sidebar", search.Options{
		Collection: "project",
		Filter:     search.OriginPrefix("/repo"),
	})
	if res.Outcome != search.OutcomeOK {
		t.Fatalf("Unexpected outcome %s: %v", res.Outcome, res.Err)
	}
	for _, h := range res.Hits {
		if h.Origin != "/repo/db.md" {
			t.Errorf("Expected only /repo hits, got %s", h.Origin)
		}
	}
	if len(res.Hits) != 1 {
		t.Errorf("Expected 1 hit, got %d", len(res.Hits))
	}

	res = s.Search(context.Background(), "pooling", search.Options{Collection: "project", Filter: `author == "me"`})
	if res.Outcome != search.OutcomeTransportError {
		t.Errorf("Expected transport_error for unsupported field, got %s", res.Outcome)
	}
}

func TestSearchFilterPrefixIsCaseSensitive(t *testing.T) {
	s := newTestStore(t)
	chunks := ingest.ChunkDocument("/Repo/Notes_1.md", "# Cache\nThe cache is warmed on boot.")
	chunks = append(chunks, ingest.ChunkDocument("/repo/notes%1.md", "# Cache\nThe cache is flushed nightly.")...)
	if _, err := s.Index(context.Background(), "project", chunks); err != nil {
		t.Fatalf("Index: %v", err)
	}

	tests := []struct {
		prefix string
		want   []string
	}{
		{"/repo", []string{"/repo/notes%1.md"}},
		{"/Repo", []string{"/Repo/Notes_1.md"}},
		{"/repo/notes%", []string{"/repo/notes%1.md"}},
		{"/Repo/Notes_", []string{"/Repo/Notes_1.md"}},
		{"/REPO", nil},
	}
	for _, tt := range tests {
		res := s.Search(context.Background(), "cache", search.Options{Collection: "project", Filter: search.OriginPrefix(tt.prefix)})
		if res.Outcome != search.OutcomeOK {
			t.Fatalf("%s: unexpected outcome %s: %v", tt.prefix, res.Outcome, res.Err)
		}
		if len(res.Hits) != len(tt.want) {
			t.Errorf("%s: expected %v, got %+v", tt.prefix, tt.want, res.Hits)
			continue
		}
		for i, h := range res.Hits {
			if h.Origin != tt.want[i] {
				t.Errorf("%s: expected %s, got %s", tt.prefix, tt.want[i], h.Origin)
			}
		}
	}
}

func TestSearchMinScore(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, "project")

	res := s.Search(context.Background(), "tokens", search.Options{Collection: "project", MinScore: 0.999})
	if res.Outcome != search.OutcomeOK || len(res.Hits) != 0 {
		t.Errorf("Expected floor to drop all hits, got %+v", res)
	}
}

func TestSearchPunctuationOnly(t *testing.T) {
	s := newTestStore(t)
	if res := s.Search(context.Background(), `?? ""`, search.Options{}); !errors.Is(res.Err, search.ErrEmptyQuery) {
		t.Errorf("Expected ErrEmptyQuery, got %v", res.Err)
	}
}

func TestIndexReplacesOrigin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s, "project")

	updated := ingest.ChunkDocument("/repo/auth.md", "# Login\nUsers authenticate with passkeys now.")
	n, err := s.Index(ctx, "project", updated)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 chunk written, got %d", n)
	}

	if res := s.Search(ctx, "JWT", search.Options{Collection: "project"}); len(res.Hits) != 0 {
		t.Errorf("Expected stale chunk removed, got %+v", res.Hits)
	}
	if res := s.Search(ctx, "passkeys", search.Options{Collection: "project"}); len(res.Hits) != 1 {
		t.Errorf("Expected new chunk indexed, got %+v", res.Hits)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats) != 1 || stats[0].Name != "project" || stats[0].Chunks != 3 || stats[0].Origins != 3 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestDefaultCollection(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, "")

	if res := s.Search(context.Background(), "sidebar", search.Options{}); res.Outcome != search.OutcomeOK || len(res.Hits) != 1 {
		t.Errorf("Expected hit from default collection, got %+v", res)
	}
}

func TestNewOpenError(t *testing.T) {
	orig := openDB
	defer func() { openDB = orig }()
	openDB = func(driver, dsn string) (*sql.DB, error) {
		return nil, errors.New("boom")
	}

	if _, err := New(DefaultConfig(t.TempDir()), nil); err == nil {
		t.Error("Expected error when the database cannot be opened")
	}
}

func TestSanitizeFTS(t *testing.T) {
	tests := map[string]string{
		"fix auth bug":     `"fix" OR "auth" OR "bug"`,
		`say "hi"`:         `"say" OR "hi"`,
		"  ":               "",
		"what is this ?":   `"what" OR "is" OR "this"`,
		"café-au-lait now": `"café-au-lait" OR "now"`,
	}
	for in, want := range tests {
		if got := sanitizeFTS(in); got != want {
			t.Errorf("sanitizeFTS(%q): expected %s, got %s", in, want, got)
		}
	}
}

func TestRankScore(t *testing.T) {
	if rankScore(0) != 0 || rankScore(1) != 0 {
		t.Error("Expected non-negative ranks to score zero")
	}
	if a, b := rankScore(-0.5), rankScore(-2); a >= b || b >= 1 {
		t.Errorf("Expected monotonic scores below 1, got %f %f", a, b)
	}
}
