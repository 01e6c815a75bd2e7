package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dittoblocks/blocks/cmd/blockstorectl/cmdutil"
	"github.com/dittoblocks/blocks/pkg/store"
)

var eraseForce bool

var eraseCmd = &cobra.Command{
	Use:   "erase",
	Short: "Remove every block the store holds",
	Long: `Remove every block the store holds.

If the backend implements a native erase (file, s3, badger), that is
used. Otherwise every block is listed and deleted individually, which
is not atomic.`,
	Args: cobra.NoArgs,
	RunE: runErase,
}

func init() {
	eraseCmd.Flags().BoolVar(&eraseForce, "force", false, "skip the confirmation prompt")
}

func runErase(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if !eraseForce {
		fmt.Fprint(cmd.OutOrStdout(), "This will permanently delete every block. Re-run with --force to confirm.\n")
		return nil
	}

	s, err := cmdutil.ResolveStore(ctx)
	if err != nil {
		return err
	}
	defer cmdutil.StopIfLifecycle(ctx, s)

	if err := store.Erase(ctx, s); err != nil {
		return fmt.Errorf("erase: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "erased")
	return nil
}
