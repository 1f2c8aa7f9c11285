package source

import (
	"errors"
	"testing"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
func intPtr(i int) *int       { return &i }

func testDefaults() []Source {
	return []Source{
		{
			ID:               "docs",
			Name:             "Docs",
			PathOrCollection: "docs_collection",
			Enabled:          true,
			Search:           SearchPolicy{MaxResults: 4, MinScore: Float(0.2), Filter: `source starts_with "/repo"`},
			Injection:        InjectionPolicy{Template: "{{content}}", MaxContentLength: 100, IncludeSource: true},
		},
		{
			ID:               "notes",
			Name:             "Notes",
			PathOrCollection: "notes_collection",
			Enabled:          true,
			Search:           SearchPolicy{MaxResults: 2, GroupBySource: true, MaxChunksPerSource: 3},
			Injection:        InjectionPolicy{Template: "## {{name}}\n{{content}}", MaxContentLength: 50},
		},
	}
}

func TestMerge_DisableOnly(t *testing.T) {
	defaults := testDefaults()
	merged := Merge(defaults, []Override{{ID: strPtr("docs"), Enabled: boolPtr(false)}})

	if len(merged) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(merged))
	}

	docs := merged[0]
	if docs.Enabled {
		t.Error("Expected docs to be disabled")
	}
	if docs.Name != "Docs" || docs.PathOrCollection != "docs_collection" {
		t.Errorf("Expected top-level fields retained, got %+v", docs)
	}
	if docs.Search.MaxResults != 4 || docs.Search.Filter != `source starts_with "/repo"` {
		t.Errorf("Expected search policy retained, got %+v", docs.Search)
	}
	if docs.Search.MinScore == nil || *docs.Search.MinScore != 0.2 {
		t.Errorf("Expected minScore 0.2 retained, got %v", docs.Search.MinScore)
	}
	if docs.Injection.Template != "{{content}}" || docs.Injection.MaxContentLength != 100 || !docs.Injection.IncludeSource {
		t.Errorf("Expected injection policy retained, got %+v", docs.Injection)
	}

	if !defaults[0].Enabled {
		t.Error("Merge must not modify the defaults slice")
	}
}

func TestMerge_DeepMergeSubRecords(t *testing.T) {
	merged := Merge(testDefaults(), []Override{{
		ID:        strPtr("notes"),
		Search:    &SearchOverride{MaxResults: intPtr(7)},
		Injection: &InjectionOverride{MaxContentLength: intPtr(80)},
	}})

	notes := merged[1]
	if notes.Search.MaxResults != 7 {
		t.Errorf("Expected maxResults 7, got %d", notes.Search.MaxResults)
	}
	if !notes.Search.GroupBySource || notes.Search.MaxChunksPerSource != 3 {
		t.Errorf("Expected grouping fields retained, got %+v", notes.Search)
	}
	if notes.Injection.MaxContentLength != 80 {
		t.Errorf("Expected maxContentLength 80, got %d", notes.Injection.MaxContentLength)
	}
	if notes.Injection.Template != "## {{name}}\n{{content}}" {
		t.Errorf("Expected template retained, got %q", notes.Injection.Template)
	}
}

func TestMerge_AppendsUnknownInOrder(t *testing.T) {
	merged := Merge(testDefaults(), []Override{
		{ID: strPtr("zeta"), Name: strPtr("Zeta"), PathOrCollection: strPtr("z")},
		{ID: strPtr("docs"), Name: strPtr("Documentation")},
		{ID: strPtr("alpha"), Name: strPtr("Alpha"), PathOrCollection: strPtr("a")},
	})

	want := []string{"docs", "notes", "zeta", "alpha"}
	if len(merged) != len(want) {
		t.Fatalf("Expected %d sources, got %d", len(want), len(merged))
	}
	for i, id := range want {
		if merged[i].ID != id {
			t.Errorf("Position %d: expected %s, got %s", i, id, merged[i].ID)
		}
	}
	if merged[0].Name != "Documentation" {
		t.Errorf("Expected matched default renamed in place, got %q", merged[0].Name)
	}
}

func TestMerge_MissingIDAppendedVerbatim(t *testing.T) {
	merged := Merge(testDefaults(), []Override{{Name: strPtr("Anonymous"), PathOrCollection: strPtr("anon")}})

	if len(merged) != 3 {
		t.Fatalf("Expected 3 sources, got %d", len(merged))
	}
	last := merged[2]
	if last.ID != "" || last.Name != "Anonymous" || last.PathOrCollection != "anon" {
		t.Errorf("Expected override appended verbatim, got %+v", last)
	}

	err := ValidateAll(merged)
	if !errors.Is(err, ErrInvalidSource) {
		t.Fatalf("Expected ErrInvalidSource for missing id, got %v", err)
	}
}

func TestMerge_RepeatedUnknownIDNeverDuplicates(t *testing.T) {
	merged := Merge(nil, []Override{
		{ID: strPtr("x"), Name: strPtr("first"), PathOrCollection: strPtr("c")},
		{ID: strPtr("x"), Name: strPtr("second")},
	})

	if len(merged) != 1 {
		t.Fatalf("Expected a single source, got %d", len(merged))
	}
	if merged[0].Name != "second" || merged[0].PathOrCollection != "c" {
		t.Errorf("Expected second override merged into first, got %+v", merged[0])
	}
}

func TestMerge_PreservesUnmatchedDefaults(t *testing.T) {
	defaults := testDefaults()
	overrides := []Override{
		{ID: strPtr("notes"), Enabled: boolPtr(false)},
		{ID: strPtr("extra"), PathOrCollection: strPtr("e")},
	}
	merged := Merge(defaults, overrides)

	if len(merged) < len(defaults) {
		t.Fatalf("Expected at least %d sources, got %d", len(defaults), len(merged))
	}
	if merged[0].ID != "docs" || merged[0].Name != defaults[0].Name || merged[0].Enabled != defaults[0].Enabled {
		t.Errorf("Expected docs unchanged at index 0, got %+v", merged[0])
	}
}

func TestMerge_MinScoreNotAliased(t *testing.T) {
	defaults := testDefaults()
	merged := Merge(defaults, []Override{{ID: strPtr("docs"), Name: strPtr("D")}})

	*merged[0].Search.MinScore = 0.9
	if *defaults[0].Search.MinScore != 0.2 {
		t.Error("Expected merged minScore to be independent of defaults")
	}
}

func TestValidateAll(t *testing.T) {
	valid := testDefaults()

	tests := []struct {
		name    string
		mutate  func([]Source) []Source
		wantErr bool
	}{
		{"valid defaults", func(s []Source) []Source { return s }, false},
		{"zero maxResults", func(s []Source) []Source { s[0].Search.MaxResults = 0; return s }, true},
		{"empty template", func(s []Source) []Source { s[1].Injection.Template = ""; return s }, true},
		{"zero content length", func(s []Source) []Source { s[1].Injection.MaxContentLength = 0; return s }, true},
		{"no collection", func(s []Source) []Source { s[0].PathOrCollection = ""; return s }, true},
		{"collection only", func(s []Source) []Source { s[0].PathOrCollection = ""; s[0].Collection = "c"; return s }, false},
		{"min score out of range", func(s []Source) []Source { s[0].Search.MinScore = Float(1.5); return s }, true},
		{"duplicate id", func(s []Source) []Source { s[1].ID = "docs"; return s }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sources := make([]Source, len(valid))
			copy(sources, valid)
			err := ValidateAll(tt.mutate(sources))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if err != nil && !errors.Is(err, ErrInvalidSource) {
				t.Errorf("Expected ErrInvalidSource, got %v", err)
			}
		})
	}
}

func TestSourceEffectiveValues(t *testing.T) {
	s := Source{PathOrCollection: "path"}
	if s.TargetCollection() != "path" {
		t.Errorf("Expected path fallback, got %s", s.TargetCollection())
	}
	s.Collection = "override"
	if s.TargetCollection() != "override" {
		t.Errorf("Expected collection override, got %s", s.TargetCollection())
	}
	if s.EffectiveMinScore() != DefaultMinScore {
		t.Errorf("Expected default min score, got %v", s.EffectiveMinScore())
	}
	if s.EffectiveMaxChunks() != DefaultMaxChunksPerSource {
		t.Errorf("Expected default max chunks, got %d", s.EffectiveMaxChunks())
	}
}

func TestDefaultSourcesAreValid(t *testing.T) {
	if err := ValidateAll(DefaultSources("memsearch_chunks", "memsearch_global")); err != nil {
		t.Fatalf("Expected built-in sources to validate, got %v", err)
	}
}
