package source

// Built-in source identifiers
const (
	ProjectSourceID = "project-memory"
	GlobalSourceID  = "global-memory"
)

// DefaultTemplate renders one hit with its origin and confidence
const DefaultTemplate = "## {{name}}\nSource: {{source}}\nConfidence: {{score}}\n{{content}}"

// DefaultSources returns the built-in source list. projectCollection and
// globalCollection name the backend collections for the two memory tiers.
// Each call returns fresh values that callers may modify.
func DefaultSources(projectCollection, globalCollection string) []Source {
	return []Source{
		{
			ID:               ProjectSourceID,
			Name:             "Project Memory",
			PathOrCollection: projectCollection,
			Enabled:          true,
			Search: SearchPolicy{
				MaxResults:         5,
				GroupBySource:      true,
				MaxChunksPerSource: 2,
			},
			Injection: InjectionPolicy{
				Template:         DefaultTemplate,
				MaxContentLength: 500,
				IncludeSource:    true,
			},
		},
		{
			ID:               GlobalSourceID,
			Name:             "Global Memory",
			PathOrCollection: globalCollection,
			Enabled:          true,
			Search: SearchPolicy{
				MaxResults: 3,
			},
			Injection: InjectionPolicy{
				Template:         DefaultTemplate,
				MaxContentLength: 300,
				IncludeSource:    true,
			},
		},
	}
}
