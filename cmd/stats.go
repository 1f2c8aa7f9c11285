package cmd

import (
	"fmt"

	"github.com/Yates-Labs/memctx/internal/search/milvus"
	"github.com/Yates-Labs/memctx/internal/search/sqlite"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show what the search backend holds",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, headerStyle.Render("Backend: "+a.backend.name))

	if a.backend.cli != nil {
		s, err := a.backend.cli.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Documents: %d\nChunks:    %d\nIndex:     %d bytes\n", s.DocumentCount, s.ChunkCount, s.IndexSize)
		if s.LastIndexedAt != "" {
			fmt.Fprintln(out, mutedStyle.Render("Last indexed "+s.LastIndexedAt))
		}
		return nil
	}

	switch store := a.backend.Client.(type) {
	case *sqlite.Store:
		stats, err := store.Stats(ctx)
		if err != nil {
			return err
		}
		if len(stats) == 0 {
			fmt.Fprintln(out, mutedStyle.Render("No collections yet"))
		}
		for _, s := range stats {
			fmt.Fprintf(out, "%s  %d chunks from %d documents\n", sourceStyle.Render(s.Name), s.Chunks, s.Origins)
		}
	case *milvus.Store:
		for _, name := range []string{a.cfg.ProjectCollection, a.cfg.GlobalCollection} {
			n, err := store.RowCount(ctx, name)
			if err != nil {
				a.logger.Debug("collection unavailable", "collection", name, "error", err)
				fmt.Fprintln(out, sourceStyle.Render(name)+"  "+mutedStyle.Render("not found"))
				continue
			}
			fmt.Fprintf(out, "%s  %d chunks\n", sourceStyle.Render(name), n)
		}
	}
	return nil
}
