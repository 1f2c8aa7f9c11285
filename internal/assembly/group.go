package assembly

import (
	"sort"

	"github.com/Yates-Labs/memctx/internal/search"
)

type originGroup struct {
	key  string
	best float64
	hits []search.Hit
}

// GroupByOrigin keeps at most maxGroups origins, ranked by their best hit
// score, and at most maxPerGroup hits within each, ranked by score. The result
// is flattened in group rank order. Ties keep the backend's order.
func GroupByOrigin(hits []search.Hit, maxGroups, maxPerGroup int) []search.Hit {
	if len(hits) == 0 || maxGroups <= 0 {
		return nil
	}
	if maxPerGroup <= 0 {
		maxPerGroup = 1
	}

	index := make(map[string]int)
	var groups []*originGroup
	for _, h := range hits {
		key := h.OriginKey()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, &originGroup{key: key, best: h.Score})
		}
		g := groups[i]
		g.hits = append(g.hits, h)
		if h.Score > g.best {
			g.best = h.Score
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].best > groups[j].best
	})
	if len(groups) > maxGroups {
		groups = groups[:maxGroups]
	}

	out := make([]search.Hit, 0, len(groups)*maxPerGroup)
	for _, g := range groups {
		sort.SliceStable(g.hits, func(i, j int) bool {
			return g.hits[i].Score > g.hits[j].Score
		})
		n := min(len(g.hits), maxPerGroup)
		out = append(out, g.hits[:n]...)
	}
	return out
}
