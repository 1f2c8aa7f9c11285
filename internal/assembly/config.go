package assembly

import (
	"fmt"
	"time"
)

// Separators used when joining rendered output
const (
	// HitSeparator joins rendered hits within one source block
	HitSeparator = "\n---\n"
	// BlockSeparator joins source blocks in the assembled context
	BlockSeparator = "\n\n"
	// TruncationMarker is appended to content cut at MaxContentLength
	TruncationMarker = "..."
)

// DefaultTag is the delimiter tag wrapping assembled context
const DefaultTag = "memsearch-context"

// Config holds the tunables of the context assembly engine
type Config struct {
	// OverfetchFactor multiplies maxResults for grouped sources so grouping
	// has enough raw hits to discard same-origin duplicates
	OverfetchFactor int

	// Concurrency bounds in-flight source queries (1 = sequential)
	Concurrency int

	// SourceTimeout bounds each source query; zero leaves it to the parent context
	SourceTimeout time.Duration

	// Tag is the delimiter pair name: <Tag>...</Tag>
	Tag string
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		OverfetchFactor: 5,
		Concurrency:     4,
		SourceTimeout:   10 * time.Second,
		Tag:             DefaultTag,
	}
}

func (c Config) validate() error {
	if c.OverfetchFactor <= 0 {
		return fmt.Errorf("overfetch factor must be positive, got %d", c.OverfetchFactor)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	if c.SourceTimeout < 0 {
		return fmt.Errorf("source timeout must not be negative, got %s", c.SourceTimeout)
	}
	if c.Tag == "" {
		return fmt.Errorf("delimiter tag cannot be empty")
	}
	return nil
}

// wrap encloses body in the delimiter pair for tag.
func wrap(tag, body string) string {
	return "<" + tag + ">\n" + body + "\n</" + tag + ">"
}
