package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/Yates-Labs/memctx/internal/assembly"
	"github.com/spf13/cobra"
)

var (
	contextPretty bool
	contextTiered bool
)

var contextCmd = &cobra.Command{
	Use:   "context [query...]",
	Short: "Assemble the memory context block for a query",
	Long: `Assemble relevant memory for a query and print it as a single delimited
context block, ready to prepend to an agent prompt.

By default every configured source is queried and rendered through its own
template. With --tiered the project scope is searched first and global memory
is consulted only when the project has few matches.

Nothing is printed when no source produced output.

Examples:
  memctx context "how does the auth middleware validate tokens"
  memctx context --tiered refactor the parser
  memctx context --dir ~/src/api --pretty "rate limiting"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runContext,
}

func init() {
	rootCmd.AddCommand(contextCmd)
	contextCmd.Flags().BoolVar(&contextPretty, "pretty", false, "Render blocks with terminal styling instead of raw text")
	contextCmd.Flags().BoolVar(&contextTiered, "tiered", false, "Use project-then-global fallback retrieval")
}

func runContext(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return fmt.Errorf("query cannot be empty")
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	scope := a.scope.Root

	if contextTiered {
		tiered, err := assembly.NewTiered(a.backend, a.cfg.TieredRetrieverConfig(), a.logger)
		if err != nil {
			return err
		}
		hits := tiered.Retrieve(ctx, assembly.SessionRequest(query, scope, a.cfg.TopK))
		if contextPretty {
			printTieredPretty(out, hits, scope)
			return nil
		}
		if block := assembly.FormatPromptBlock(hits, scope); block != "" {
			fmt.Fprintln(out, block)
		}
		return nil
	}

	engine, err := assembly.NewEngine(a.backend, a.cfg.EngineConfig(), a.logger)
	if err != nil {
		return err
	}
	assembled, err := engine.Assemble(ctx, query, scope, a.cfg.EffectiveSources())
	if err != nil {
		return err
	}
	if assembled == nil {
		return nil
	}

	if contextPretty {
		printAssembledPretty(out, assembled)
		return nil
	}
	fmt.Fprintln(out, assembled.Text)
	return nil
}

func printAssembledPretty(w io.Writer, assembled *assembly.AssembledContext) {
	for _, block := range assembled.Blocks {
		fmt.Fprintln(w, headerStyle.Render(block.SourceName))
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d hits from %s", len(block.Hits), block.SourceID)))
		fmt.Fprintln(w)
		fmt.Fprintln(w, bodyStyle.Render(block.Text))
		fmt.Fprintln(w)
	}
}

func printTieredPretty(w io.Writer, hits []assembly.TieredHit, scope string) {
	for _, h := range hits {
		fmt.Fprintln(w, sourceStyle.Render(assembly.RelativeOrigin(h.OriginKey(), scope))+
			mutedStyle.Render(fmt.Sprintf("  %s  %s", h.Tier, assembly.FormatScore(h.Score))))
		fmt.Fprintln(w, bodyStyle.Render(assembly.Preview(h.Content, 200)))
		fmt.Fprintln(w)
	}
}
