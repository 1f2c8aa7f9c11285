package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop the whole memsearch index",
	Long: `Drop every indexed chunk through memsearch reset. This cannot be undone;
pass --yes to confirm. Requires the memsearch backend.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "Confirm dropping the index")
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetYes {
		return fmt.Errorf("refusing to drop the index without --yes")
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	admin := a.backend.admin()
	if admin == nil {
		return fmt.Errorf("reset requires the memsearch backend, got %s", a.backend.name)
	}
	if err := admin.Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓ Index reset"))
	return nil
}
