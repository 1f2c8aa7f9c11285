package assembly

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Yates-Labs/memctx/internal/search"
)

// Tier identifies the retrieval scope a hit came from
type Tier string

const (
	TierPrimary Tier = "primary"
	TierGlobal  Tier = "global"
)

// TieredHit is a hit tagged with its originating tier
type TieredHit struct {
	search.Hit
	Tier Tier `json:"tier"`
}

// TieredConfig holds the tunables of the fallback retriever
type TieredConfig struct {
	// FallbackThreshold is the primary hit count below which the global tier is queried
	FallbackThreshold int

	// MinGlobalTopK is the floor on how many global hits are requested
	MinGlobalTopK int

	MinScore float64

	// PrimaryCollection is the collection searched for the primary tier;
	// empty means the backend default
	PrimaryCollection string
	GlobalCollection  string
}

// DefaultTieredConfig returns the retriever defaults.
func DefaultTieredConfig() TieredConfig {
	return TieredConfig{
		FallbackThreshold: 3,
		MinGlobalTopK:     3,
		MinScore:          0.01,
		GlobalCollection:  "memsearch_global",
	}
}

// TieredRequest describes one tiered retrieval
type TieredRequest struct {
	Query        string
	PrimaryScope string // Origin prefix restricting the primary tier
	PrimaryLimit int
	GlobalLimit  int
	Total        int // Cap on the merged result; zero means PrimaryLimit
}

// Tiered retrieves from a primary scope and widens to a global collection
// when the primary scope is sparse.
type Tiered struct {
	client search.Client
	config TieredConfig
	logger *slog.Logger
}

// NewTiered creates a Tiered retriever over client.
func NewTiered(client search.Client, config TieredConfig, logger *slog.Logger) (*Tiered, error) {
	if client == nil {
		return nil, fmt.Errorf("search client cannot be nil")
	}
	if config.FallbackThreshold < 0 {
		return nil, fmt.Errorf("fallback threshold must not be negative, got %d", config.FallbackThreshold)
	}
	if config.GlobalCollection == "" {
		return nil, fmt.Errorf("global collection cannot be empty")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Tiered{
		client: client,
		config: config,
		logger: logger.With("component", "tiered"),
	}, nil
}

// Retrieve runs the tiered query. Failures in either tier are logged and
// treated as empty, so Retrieve never fails; it returns hits deduplicated by
// chunk hash and sorted by score, highest first.
func (t *Tiered) Retrieve(ctx context.Context, req TieredRequest) []TieredHit {
	primaryOpts := search.Options{
		Collection: t.config.PrimaryCollection,
		TopK:       req.PrimaryLimit,
		MinScore:   t.config.MinScore,
	}
	if req.PrimaryScope != "" {
		primaryOpts.Filter = search.OriginPrefix(req.PrimaryScope)
	}
	primary := t.query(ctx, TierPrimary, req.Query, primaryOpts)

	all := primary
	if len(primary) < t.config.FallbackThreshold {
		global := t.query(ctx, TierGlobal, req.Query, search.Options{
			Collection: t.config.GlobalCollection,
			TopK:       max(t.config.MinGlobalTopK, req.GlobalLimit),
			MinScore:   t.config.MinScore,
		})
		all = append(all, global...)
	}

	total := req.Total
	if total <= 0 {
		total = req.PrimaryLimit
	}
	return MergeTiers(all, total)
}

func (t *Tiered) query(ctx context.Context, tier Tier, query string, opts search.Options) []TieredHit {
	res := t.client.Search(ctx, query, opts)
	switch res.Outcome {
	case search.OutcomeNotFound:
		t.logger.Info("tier collection not found", "tier", tier, "error", res.Err)
		return nil
	case search.OutcomeTransportError:
		t.logger.Warn("tier query failed", "tier", tier, "error", res.Err)
		return nil
	}

	out := make([]TieredHit, len(res.Hits))
	for i, h := range res.Hits {
		out[i] = TieredHit{Hit: h, Tier: tier}
	}
	t.logger.Debug("tier queried", "tier", tier, "hits", len(out))
	return out
}

// MergeTiers removes duplicate chunk hashes, keeping the first occurrence,
// sorts by score descending and caps the result at limit (zero or less means
// no cap). Hits without a chunk hash are never treated as duplicates.
func MergeTiers(hits []TieredHit, limit int) []TieredHit {
	seen := make(map[string]struct{}, len(hits))
	out := make([]TieredHit, 0, len(hits))
	for _, h := range hits {
		if h.ChunkHash != "" {
			if _, dup := seen[h.ChunkHash]; dup {
				continue
			}
			seen[h.ChunkHash] = struct{}{}
		}
		out = append(out, h)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
