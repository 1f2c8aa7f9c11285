package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Yates-Labs/memctx/internal/assembly"
	"github.com/Yates-Labs/memctx/internal/search"
	"github.com/Yates-Labs/memctx/internal/source"
	"github.com/spf13/cobra"
)

var (
	searchCollection string
	searchTopK       int
	searchMinScore   float64
	searchFilter     string
	searchJSON       bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query...]",
	Short: "Run a raw search against one collection",
	Long: `Run a single search against the backend and print the scored hits.

Examples:
  memctx search "token refresh"
  memctx search --collection memsearch_global --top-k 3 deployment
  memctx search --filter 'source starts_with "/home/me/src/api"' --json retries`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVar(&searchCollection, "collection", "", "Collection to search (default: project collection)")
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 0, "Maximum hits (default: configured topK)")
	searchCmd.Flags().Float64Var(&searchMinScore, "min-score", source.DefaultMinScore, "Score floor")
	searchCmd.Flags().StringVar(&searchFilter, "filter", "", "Filter expression")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Print hits as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return search.ErrEmptyQuery
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	topK := searchTopK
	if topK <= 0 {
		topK = a.cfg.TopK
	}

	res := a.backend.Search(ctx, query, search.Options{
		Collection: searchCollection,
		TopK:       topK,
		MinScore:   searchMinScore,
		Filter:     searchFilter,
	})
	if res.Outcome != search.OutcomeOK {
		return fmt.Errorf("search %s: %w", res.Outcome, res.Err)
	}

	out := cmd.OutOrStdout()
	if searchJSON {
		hits := res.Hits
		if hits == nil {
			hits = []search.Hit{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}

	printHits(out, res.Hits, a.scope.Root)
	return nil
}

func printHits(w io.Writer, hits []search.Hit, scope string) {
	if len(hits) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No results."))
		return
	}
	for i, h := range hits {
		line := fmt.Sprintf("%d. %s", i+1, assembly.RelativeOrigin(h.OriginKey(), scope))
		if heading := h.Metadata["heading"]; heading != "" {
			line += " > " + heading
		}
		fmt.Fprintln(w, sourceStyle.Render(line)+mutedStyle.Render("  "+assembly.FormatScore(h.Score)))
		fmt.Fprintln(w, bodyStyle.Render(assembly.Preview(h.Content, 200)))
		fmt.Fprintln(w)
	}
}
