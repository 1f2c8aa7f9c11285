package source

// SearchOverride carries the search fields a user chose to set. Nil means keep the default.
type SearchOverride struct {
	MaxResults         *int     `json:"maxResults,omitempty" yaml:"maxResults,omitempty"`
	MinScore           *float64 `json:"minScore,omitempty" yaml:"minScore,omitempty"`
	Filter             *string  `json:"filter,omitempty" yaml:"filter,omitempty"`
	GroupBySource      *bool    `json:"groupBySource,omitempty" yaml:"groupBySource,omitempty"`
	MaxChunksPerSource *int     `json:"maxChunksPerSource,omitempty" yaml:"maxChunksPerSource,omitempty"`
}

// InjectionOverride carries the injection fields a user chose to set.
type InjectionOverride struct {
	Template         *string `json:"template,omitempty" yaml:"template,omitempty"`
	MaxContentLength *int    `json:"maxContentLength,omitempty" yaml:"maxContentLength,omitempty"`
	IncludeSource    *bool   `json:"includeSource,omitempty" yaml:"includeSource,omitempty"`
}

// Override is a partial Source supplied by the user, matched against defaults by ID.
type Override struct {
	ID               *string            `json:"id,omitempty" yaml:"id,omitempty"`
	Name             *string            `json:"name,omitempty" yaml:"name,omitempty"`
	PathOrCollection *string            `json:"pathOrCollection,omitempty" yaml:"pathOrCollection,omitempty"`
	Collection       *string            `json:"collection,omitempty" yaml:"collection,omitempty"`
	Enabled          *bool              `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Search           *SearchOverride    `json:"search,omitempty" yaml:"search,omitempty"`
	Injection        *InjectionOverride `json:"injection,omitempty" yaml:"injection,omitempty"`
}

// Merge combines defaults with overrides into the effective ordered source list.
//
// Defaults keep their order. An override whose id matches an entry already in
// the list is deep-merged into it in place; any other override (including one
// without an id) is appended in the order given. Inputs are not modified.
func Merge(defaults []Source, overrides []Override) []Source {
	merged := make([]Source, len(defaults), len(defaults)+len(overrides))
	copy(merged, defaults)

	index := make(map[string]int, len(merged))
	for i, s := range merged {
		if _, ok := index[s.ID]; !ok {
			index[s.ID] = i
		}
	}

	for _, o := range overrides {
		if o.ID != nil {
			if i, ok := index[*o.ID]; ok {
				merged[i] = o.apply(merged[i])
				continue
			}
		}

		merged = append(merged, o.apply(Source{}))
		if o.ID != nil {
			index[*o.ID] = len(merged) - 1
		}
	}

	return merged
}

// apply returns base with every field set in o written over it.
func (o Override) apply(base Source) Source {
	out := base
	if base.Search.MinScore != nil {
		v := *base.Search.MinScore
		out.Search.MinScore = &v
	}

	setString(&out.ID, o.ID)
	setString(&out.Name, o.Name)
	setString(&out.PathOrCollection, o.PathOrCollection)
	setString(&out.Collection, o.Collection)
	setBool(&out.Enabled, o.Enabled)

	if s := o.Search; s != nil {
		setInt(&out.Search.MaxResults, s.MaxResults)
		if s.MinScore != nil {
			v := *s.MinScore
			out.Search.MinScore = &v
		}
		setString(&out.Search.Filter, s.Filter)
		setBool(&out.Search.GroupBySource, s.GroupBySource)
		setInt(&out.Search.MaxChunksPerSource, s.MaxChunksPerSource)
	}

	if in := o.Injection; in != nil {
		setString(&out.Injection.Template, in.Template)
		setInt(&out.Injection.MaxContentLength, in.MaxContentLength)
		setBool(&out.Injection.IncludeSource, in.IncludeSource)
	}

	return out
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
