package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var expandJSON bool

var expandCmd = &cobra.Command{
	Use:   "expand <chunk-hash>",
	Short: "Show the full section behind a chunk hash",
	Long: `Print the complete content of the memory section a chunk hash points to.
Chunk hashes appear in context blocks and search output. Requires the
memsearch backend.`,
	Args: cobra.ExactArgs(1),
	RunE: runExpand,
}

func init() {
	rootCmd.AddCommand(expandCmd)
	expandCmd.Flags().BoolVar(&expandJSON, "json", false, "Print results as JSON")
}

func runExpand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.backend.cli == nil {
		return fmt.Errorf("expand requires the memsearch backend, got %s", a.backend.name)
	}
	results, err := a.backend.cli.Expand(ctx, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if expandJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	if len(results) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("No chunk found for "+args[0]))
		return nil
	}
	for _, r := range results {
		title := r.Origin
		if r.Heading != "" {
			title += " > " + r.Heading
		}
		fmt.Fprintln(out, sourceStyle.Render(title))
		fmt.Fprintln(out, bodyStyle.Render(r.Content))
		fmt.Fprintln(out)
	}
	return nil
}
