package search

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestResultFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"nil", nil, OutcomeOK},
		{"not found", fmt.Errorf("lookup: %w", ErrNotFound), OutcomeNotFound},
		{"unavailable", ErrUnavailable, OutcomeTransportError},
		{"other", errors.New("boom"), OutcomeTransportError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResultFromError(tt.err)
			if got.Outcome != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got.Outcome)
			}
			if tt.err != nil && !errors.Is(got.Err, tt.err) {
				t.Errorf("Expected wrapped error %v, got %v", tt.err, got.Err)
			}
		})
	}
}

func TestNotFoundWrapsSentinel(t *testing.T) {
	r := NotFound("memsearch_global")
	if r.Outcome != OutcomeNotFound {
		t.Fatalf("Expected not_found, got %s", r.Outcome)
	}
	if !errors.Is(r.Err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", r.Err)
	}
}

func TestTransportErrorDefault(t *testing.T) {
	if r := TransportError(nil); !errors.Is(r.Err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", r.Err)
	}
}

func TestHitOriginKey(t *testing.T) {
	if k := (Hit{Origin: "/a.md", Name: "a"}).OriginKey(); k != "/a.md" {
		t.Errorf("Expected origin, got %s", k)
	}
	if k := (Hit{Name: "notebook"}).OriginKey(); k != "notebook" {
		t.Errorf("Expected name fallback, got %s", k)
	}
	if k := (Hit{}).OriginKey(); k != "unknown" {
		t.Errorf("Expected unknown, got %s", k)
	}
}

func TestClientFunc(t *testing.T) {
	var c Client = ClientFunc(func(ctx context.Context, query string, opts Options) Result {
		return OK([]Hit{{Content: query, ChunkHash: opts.Collection}})
	})
	r := c.Search(context.Background(), "q", Options{Collection: "c"})
	if len(r.Hits) != 1 || r.Hits[0].Content != "q" || r.Hits[0].ChunkHash != "c" {
		t.Errorf("Unexpected result %+v", r)
	}
}

func TestParseFilter(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		conds, err := ParseFilter("  ")
		if err != nil || conds != nil {
			t.Fatalf("Expected no conditions, got %v %v", conds, err)
		}
	})

	t.Run("origin prefix round trip", func(t *testing.T) {
		conds, err := ParseFilter(OriginPrefix(`/home/me/my "repo"`))
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(conds) != 1 || !conds[0].IsOrigin() || conds[0].Op != OpStartsWith || conds[0].Value != `/home/me/my "repo"` {
			t.Errorf("Unexpected conditions %+v", conds)
		}
	})

	t.Run("conjunction", func(t *testing.T) {
		conds, err := ParseFilter(`origin starts_with "/r" and heading == "Intro"`)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(conds) != 2 || conds[1].Field != "heading" || conds[1].Op != OpEquals {
			t.Errorf("Unexpected conditions %+v", conds)
		}
	})

	for _, bad := range []string{`source`, `source ~ "x"`, `source == x`, `source == "x" or name == "y"`} {
		t.Run("invalid "+bad, func(t *testing.T) {
			if _, err := ParseFilter(bad); err == nil {
				t.Errorf("Expected error for %q", bad)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	h := Hit{Origin: "/repo/docs/a.md", Name: "a", Metadata: map[string]string{"heading": "Intro"}}

	conds, _ := ParseFilter(`source starts_with "/repo" and heading == "Intro"`)
	if !Match(h, conds) {
		t.Error("Expected hit to match")
	}

	conds, _ = ParseFilter(`source starts_with "/other"`)
	if Match(h, conds) {
		t.Error("Expected hit not to match other prefix")
	}

	if !Match(h, nil) {
		t.Error("Expected empty filter to match")
	}
}
