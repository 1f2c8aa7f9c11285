// Package source defines the retrieval targets the context engine queries and
// the merge of built-in defaults with user overrides.
package source

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultMinScore is the score floor used when a source does not set one.
const DefaultMinScore = 0.01

// DefaultMaxChunksPerSource applies when grouping is enabled without a per-origin cap.
const DefaultMaxChunksPerSource = 1

// ErrInvalidSource is returned when a source is missing a required field after merge.
var ErrInvalidSource = errors.New("invalid source configuration")

// SearchPolicy controls how a source is queried and post-processed
type SearchPolicy struct {
	// MaxResults caps the hits (or origin groups when grouping) kept after post-processing
	MaxResults int `json:"maxResults" yaml:"maxResults"`

	// MinScore is the backend score floor; nil means DefaultMinScore
	MinScore *float64 `json:"minScore,omitempty" yaml:"minScore,omitempty"`

	// Filter is an optional backend filter expression (e.g. `source starts_with "/repo"`)
	Filter string `json:"filter,omitempty" yaml:"filter,omitempty"`

	// GroupBySource collapses hits from the same origin into ranked groups
	GroupBySource bool `json:"groupBySource" yaml:"groupBySource"`

	// MaxChunksPerSource caps the members kept per group; only read when GroupBySource is set
	MaxChunksPerSource int `json:"maxChunksPerSource,omitempty" yaml:"maxChunksPerSource,omitempty"`
}

// InjectionPolicy controls how surviving hits are rendered
type InjectionPolicy struct {
	// Template contains placeholder tokens such as {{content}} and {{score}}
	Template string `json:"template" yaml:"template"`

	// MaxContentLength is the hard truncation bound for {{content}}
	MaxContentLength int `json:"maxContentLength" yaml:"maxContentLength"`

	// IncludeSource is advisory to template authors; the engine does not read it
	IncludeSource bool `json:"includeSource" yaml:"includeSource"`
}

// Source is one configured retrieval target with its own search and rendering policy.
// Sources are immutable for the duration of one assembly pass.
type Source struct {
	ID               string          `json:"id" yaml:"id"`
	Name             string          `json:"name" yaml:"name"`
	PathOrCollection string          `json:"pathOrCollection" yaml:"pathOrCollection"`
	Collection       string          `json:"collection,omitempty" yaml:"collection,omitempty"`
	Enabled          bool            `json:"enabled" yaml:"enabled"`
	Search           SearchPolicy    `json:"search" yaml:"search"`
	Injection        InjectionPolicy `json:"injection" yaml:"injection"`
}

// TargetCollection returns the backend collection this source queries.
func (s Source) TargetCollection() string {
	if s.Collection != "" {
		return s.Collection
	}
	return s.PathOrCollection
}

// EffectiveMinScore returns the configured score floor or DefaultMinScore.
func (s Source) EffectiveMinScore() float64 {
	if s.Search.MinScore != nil {
		return *s.Search.MinScore
	}
	return DefaultMinScore
}

// EffectiveMaxChunks returns the per-origin cap used when grouping.
func (s Source) EffectiveMaxChunks() int {
	if s.Search.MaxChunksPerSource > 0 {
		return s.Search.MaxChunksPerSource
	}
	return DefaultMaxChunksPerSource
}

// ValidationError describes a required field missing or out of range on one source.
type ValidationError struct {
	Index    int
	SourceID string
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	id := e.SourceID
	if id == "" {
		id = fmt.Sprintf("#%d", e.Index)
	}
	return fmt.Sprintf("source %s: %s %s", id, e.Field, e.Reason)
}

// Unwrap lets callers test with errors.Is(err, ErrInvalidSource).
func (e *ValidationError) Unwrap() error {
	return ErrInvalidSource
}

// Validate checks that s is fully populated. index is only used for messages.
func (s Source) Validate(index int) error {
	fail := func(field, reason string) error {
		return &ValidationError{Index: index, SourceID: s.ID, Field: field, Reason: reason}
	}

	if strings.TrimSpace(s.ID) == "" {
		return fail("id", "is required")
	}
	if s.TargetCollection() == "" {
		return fail("pathOrCollection", "is required")
	}
	if s.Search.MaxResults <= 0 {
		return fail("search.maxResults", "must be positive")
	}
	if s.Search.MinScore != nil && (*s.Search.MinScore < 0 || *s.Search.MinScore > 1) {
		return fail("search.minScore", "must be within [0,1]")
	}
	if s.Search.MaxChunksPerSource < 0 {
		return fail("search.maxChunksPerSource", "must not be negative")
	}
	if s.Injection.Template == "" {
		return fail("injection.template", "is required")
	}
	if s.Injection.MaxContentLength <= 0 {
		return fail("injection.maxContentLength", "must be positive")
	}
	return nil
}

// ValidateAll validates every source and rejects duplicate ids.
// All problems are reported together.
func ValidateAll(sources []Source) error {
	var errs []error
	seen := make(map[string]int, len(sources))

	for i, s := range sources {
		if err := s.Validate(i); err != nil {
			errs = append(errs, err)
			continue
		}
		if first, dup := seen[s.ID]; dup {
			errs = append(errs, &ValidationError{
				Index:    i,
				SourceID: s.ID,
				Field:    "id",
				Reason:   fmt.Sprintf("duplicates source #%d", first),
			})
			continue
		}
		seen[s.ID] = i
	}

	return errors.Join(errs...)
}

// Float returns a pointer to v, for building MinScore values.
func Float(v float64) *float64 {
	return &v
}
