// Package assembly builds the bounded, relevance-ranked context block injected
// into an agent's working context. It fans a query out to every enabled
// source, ranks and truncates what comes back, and renders it through each
// source's template. It also provides the two-tier fallback retriever used for
// session prompts and summaries.
package assembly

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Yates-Labs/memctx/internal/search"
	"github.com/Yates-Labs/memctx/internal/source"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Block is the rendered text for one source's surviving hits
type Block struct {
	SourceID   string
	SourceName string
	Hits       []search.Hit
	Text       string
}

// AssembledContext is the final injection artifact
type AssembledContext struct {
	Blocks []Block
	Text   string // Blocks joined and wrapped in the delimiter pair
}

// AppendTo appends the context text to out. A nil context leaves out untouched,
// so callers never append an empty wrapper.
func (c *AssembledContext) AppendTo(out []string) []string {
	if c == nil || c.Text == "" {
		return out
	}
	return append(out, c.Text)
}

// Engine assembles context from multiple sources. It holds no per-call state
// and is safe for concurrent use.
type Engine struct {
	client search.Client
	config Config
	logger *slog.Logger
}

// NewEngine creates an Engine over client.
func NewEngine(client search.Client, config Config, logger *slog.Logger) (*Engine, error) {
	if client == nil {
		return nil, fmt.Errorf("search client cannot be nil")
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Engine{
		client: client,
		config: config,
		logger: logger.With("component", "assembly"),
	}, nil
}

// Assemble queries every enabled source and returns the assembled context, or
// nil when no source produced output.
//
// Sources are validated before any query is issued; an invalid source is the
// only way, besides an empty query, for Assemble to return an error. Per-source
// failures are logged and contribute nothing. Blocks appear in source order
// regardless of which query finishes first. If ctx is cancelled, sources that
// already completed are still returned.
func (e *Engine) Assemble(ctx context.Context, query, scopePath string, sources []source.Source) (*AssembledContext, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, search.ErrEmptyQuery
	}
	if err := source.ValidateAll(sources); err != nil {
		return nil, err
	}

	logger := e.logger.With("request_id", uuid.NewString())
	logger.Debug("assembling context", "sources", len(sources), "scope", scopePath)

	// One slot per source; each goroutine writes only its own index.
	blocks := make([]*Block, len(sources))

	var g errgroup.Group
	g.SetLimit(e.config.Concurrency)

	for i := range sources {
		src := sources[i]
		if !src.Enabled {
			logger.Debug("source disabled", "source", src.ID)
			continue
		}
		if ctx.Err() != nil {
			logger.Warn("assembly cancelled, returning partial context", "pending_from", src.ID)
			break
		}

		g.Go(func() error {
			blocks[i] = e.assembleSource(ctx, logger, query, scopePath, src)
			return nil
		})
	}
	_ = g.Wait()

	out := &AssembledContext{}
	texts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b == nil {
			continue
		}
		out.Blocks = append(out.Blocks, *b)
		texts = append(texts, b.Text)
	}

	if len(texts) == 0 {
		logger.Debug("no context produced")
		return nil, nil
	}

	out.Text = wrap(e.config.Tag, strings.Join(texts, BlockSeparator))
	logger.Debug("context assembled", "blocks", len(out.Blocks), "chars", len(out.Text))
	return out, nil
}

// assembleSource runs one source end to end. It returns nil when the source
// contributes nothing.
func (e *Engine) assembleSource(ctx context.Context, logger *slog.Logger, query, scopePath string, src source.Source) (block *Block) {
	logger = logger.With("source", src.ID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("source query panicked", "panic", r)
			block = nil
		}
	}()

	if ctx.Err() != nil {
		logger.Debug("source skipped after cancellation")
		return nil
	}

	budget := src.Search.MaxResults
	if src.Search.GroupBySource {
		budget *= e.config.OverfetchFactor
	}

	callCtx := ctx
	if e.config.SourceTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.config.SourceTimeout)
		defer cancel()
	}

	collection := src.TargetCollection()
	res := e.client.Search(callCtx, query, search.Options{
		Collection: collection,
		TopK:       budget,
		MinScore:   src.EffectiveMinScore(),
		Filter:     src.Search.Filter,
	})

	switch res.Outcome {
	case search.OutcomeNotFound:
		logger.Info("source collection not found", "collection", collection, "error", res.Err)
		return nil
	case search.OutcomeTransportError:
		logger.Warn("source query failed", "collection", collection, "error", res.Err)
		return nil
	}

	hits := res.Hits
	if len(hits) == 0 {
		logger.Debug("source returned no hits", "collection", collection)
		return nil
	}

	if src.Search.GroupBySource {
		hits = GroupByOrigin(hits, src.Search.MaxResults, src.EffectiveMaxChunks())
	} else if len(hits) > budget {
		hits = hits[:budget]
	}

	tmpl := ParseTemplate(src.Injection.Template)
	rendered := make([]string, 0, len(hits))
	for _, h := range hits {
		rendered = append(rendered, tmpl.Render(RenderInput{
			Hit:              h,
			SourceName:       src.Name,
			ScopePath:        scopePath,
			MaxContentLength: src.Injection.MaxContentLength,
		}))
	}

	text := strings.Join(rendered, HitSeparator)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	logger.Debug("source rendered", "hits", len(hits))
	return &Block{
		SourceID:   src.ID,
		SourceName: src.Name,
		Hits:       hits,
		Text:       text,
	}
}
