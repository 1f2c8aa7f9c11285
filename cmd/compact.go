package cmd

import (
	"fmt"
	"strings"

	"github.com/Yates-Labs/memctx/internal/assembly"
	"github.com/spf13/cobra"
)

var compactRun bool

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Print the memories that help summarize the current session",
	Long: `Gather the memories most useful for summarizing the current session and
print them as a compaction context block.

With --run and the memsearch backend, memsearch compact is invoked instead and
its summary is printed.`,
	Args: cobra.NoArgs,
	RunE: runCompact,
}

func init() {
	rootCmd.AddCommand(compactCmd)
	compactCmd.Flags().BoolVar(&compactRun, "run", false, "Run memsearch compact and print its summary")
}

func runCompact(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if compactRun {
		if a.backend.cli == nil {
			return fmt.Errorf("--run requires the memsearch backend, got %s", a.backend.name)
		}
		summary, err := a.backend.cli.Compact(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(summary))
		return nil
	}

	tiered, err := assembly.NewTiered(a.backend, a.cfg.TieredRetrieverConfig(), a.logger)
	if err != nil {
		return err
	}

	scope := a.scope.Root
	hits := tiered.Retrieve(ctx, assembly.CompactionRequest(scope))
	if block := assembly.FormatCompactionBlock(hits, scope); block != "" {
		fmt.Fprintln(cmd.OutOrStdout(), block)
	}
	return nil
}
