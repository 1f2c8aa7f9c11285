package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var memConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Get or set memsearch configuration values",
	Long: `Read or change the configuration of the memsearch CLI itself, such as its
embedding provider. memctx's own settings live in memctx.yaml or opencode.json.

Examples:
  memctx config get
  memctx config get embedding.provider
  memctx config set embedding.provider ollama`,
}

var memConfigGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print memsearch configuration as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		admin := a.backend.admin()
		if admin == nil {
			return fmt.Errorf("config requires the memsearch backend, got %s", a.backend.name)
		}
		key := ""
		if len(args) == 1 {
			key = args[0]
		}
		conf, err := admin.ConfigGet(ctx, key)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(conf)
	},
}

var memConfigSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a memsearch configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		admin := a.backend.admin()
		if admin == nil {
			return fmt.Errorf("config requires the memsearch backend, got %s", a.backend.name)
		}
		if err := admin.ConfigSet(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("✓ Set %s = %s", args[0], args[1])))
		return nil
	},
}

func init() {
	memConfigCmd.AddCommand(memConfigGetCmd, memConfigSetCmd)
	rootCmd.AddCommand(memConfigCmd)
}
