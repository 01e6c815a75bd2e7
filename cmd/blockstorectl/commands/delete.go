package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dittoblocks/blocks/cmd/blockstorectl/cmdutil"
	"github.com/dittoblocks/blocks/pkg/multihash"
)

var deleteAlgorithm string

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored block",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	deleteCmd.Flags().StringVar(&deleteAlgorithm, "algorithm", string(multihash.SHA2_256), "hash algorithm, when <id> is a bare hex digest")
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	id, err := cmdutil.ParseID(args[0], deleteAlgorithm)
	if err != nil {
		return fmt.Errorf("parse id: %w", err)
	}

	s, err := cmdutil.ResolveStore(ctx)
	if err != nil {
		return err
	}
	defer cmdutil.StopIfLifecycle(ctx, s)

	existed, err := s.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if !existed {
		return fmt.Errorf("block %s not found", id)
	}

	fmt.Printf("deleted %s\n", id)
	return nil
}
