// Package search defines the capability the context engine consumes from a
// search backend: ranked hits for a query, with an explicit outcome that keeps
// "collection absent" and "backend unreachable" apart from an empty result.
package search

import (
	"context"
	"errors"
	"fmt"
)

// Common errors for search backends
var (
	ErrNotFound    = errors.New("collection not found")
	ErrUnavailable = errors.New("search backend unavailable")
	ErrEmptyQuery  = errors.New("query cannot be empty")
)

// Options are the per-call parameters passed to a backend
type Options struct {
	Collection string  `json:"collection,omitempty"` // Target collection; empty means backend default
	TopK       int     `json:"topK,omitempty"`       // Maximum hits to return
	MinScore   float64 `json:"minScore,omitempty"`   // Score floor; zero keeps every hit
	Filter     string  `json:"filter,omitempty"`     // Backend filter expression
}

// Hit is one scored retrieval result
type Hit struct {
	Content   string            `json:"content"`
	Score     float64           `json:"score"`            // Higher is more relevant; not guaranteed normalised
	Origin    string            `json:"origin,omitempty"` // URI or path of the originating document
	Name      string            `json:"name,omitempty"`   // Display name of the origin, if the backend has one
	ChunkHash string            `json:"chunk_hash"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// OriginKey identifies the document a hit came from: origin, then name, then "unknown".
func (h Hit) OriginKey() string {
	if h.Origin != "" {
		return h.Origin
	}
	if h.Name != "" {
		return h.Name
	}
	return "unknown"
}

// Outcome classifies a search call
type Outcome int

const (
	// OutcomeOK means the query executed; Hits may be empty
	OutcomeOK Outcome = iota
	// OutcomeNotFound means the target collection does not exist
	OutcomeNotFound
	// OutcomeTransportError means the backend could not be reached or the call failed
	OutcomeTransportError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeTransportError:
		return "transport_error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the explicit outcome of one search call
type Result struct {
	Outcome Outcome
	Hits    []Hit
	Err     error // Set for NotFound and TransportError
}

// OK wraps hits from a successful query.
func OK(hits []Hit) Result {
	return Result{Outcome: OutcomeOK, Hits: hits}
}

// NotFound reports that collection does not exist.
func NotFound(collection string) Result {
	return Result{Outcome: OutcomeNotFound, Err: fmt.Errorf("%w: %s", ErrNotFound, collection)}
}

// TransportError wraps a failed call.
func TransportError(err error) Result {
	if err == nil {
		err = ErrUnavailable
	}
	return Result{Outcome: OutcomeTransportError, Err: err}
}

// ResultFromError classifies err: nil is OK with no hits, ErrNotFound is
// NotFound, anything else is a transport error.
func ResultFromError(err error) Result {
	switch {
	case err == nil:
		return OK(nil)
	case errors.Is(err, ErrNotFound):
		return Result{Outcome: OutcomeNotFound, Err: err}
	default:
		return TransportError(err)
	}
}

// Client is implemented by search backends.
// Implementations must be safe for concurrent use.
type Client interface {
	// Search runs query with opts. It never panics on backend failure;
	// failures are reported through the Result outcome.
	Search(ctx context.Context, query string, opts Options) Result
}

// ClientFunc adapts a function to the Client interface
type ClientFunc func(ctx context.Context, query string, opts Options) Result

// Search calls f.
func (f ClientFunc) Search(ctx context.Context, query string, opts Options) Result {
	return f(ctx, query, opts)
}
