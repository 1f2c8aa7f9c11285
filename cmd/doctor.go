package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/Yates-Labs/memctx/internal/doctor"
	"github.com/Yates-Labs/memctx/internal/search/memsearch"
	"github.com/spf13/cobra"
)

var doctorJSON bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose the memctx environment",
	Long: `Check that the memsearch CLI is installed, that an embedding API key is
set when the backend needs one, and that the memory directory is writable.
Exits non-zero when a check fails.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "Print the report as JSON")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cli := a.backend.cli
	if cli == nil {
		cli = memsearch.New(memsearch.Config{Binary: a.cfg.Memsearch.Binary}, a.logger)
	}
	report := doctor.Run(ctx, a.cfg, cli)

	out := cmd.OutOrStdout()
	if doctorJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		for _, c := range report.Checks {
			mark := successStyle.Render("✓")
			if !c.OK {
				mark = headerStyle.Render("✗")
			}
			fmt.Fprintf(out, "%s %s: %s\n", mark, sourceStyle.Render(c.Name), c.Detail)
			if c.Fix != "" {
				fmt.Fprintln(out, "  "+mutedStyle.Render(c.Fix))
			}
		}
	}

	if !report.OK {
		return fmt.Errorf("doctor found problems")
	}
	return nil
}
