package cmd

import (
	"fmt"

	"github.com/Yates-Labs/memctx/internal/search/memsearch"
	"github.com/Yates-Labs/memctx/internal/server"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the memctx version and the memsearch CLI it finds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "memctx %s\n", server.Version)

		v, err := memsearch.New(memsearch.DefaultConfig(), nil).Version(cmd.Context())
		if err != nil {
			fmt.Fprintln(out, mutedStyle.Render("memsearch: not available"))
			return nil
		}
		fmt.Fprintf(out, "memsearch %s\n", v)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
