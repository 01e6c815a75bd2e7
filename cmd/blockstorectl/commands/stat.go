package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dittoblocks/blocks/cmd/blockstorectl/cmdutil"
	"github.com/dittoblocks/blocks/pkg/multihash"
)

var statAlgorithm string

var statCmd = &cobra.Command{
	Use:   "stat <id>",
	Short: "Show a block's metadata without reading its content",
	Args:  cobra.ExactArgs(1),
	RunE:  runStat,
}

func init() {
	statCmd.Flags().StringVar(&statAlgorithm, "algorithm", string(multihash.SHA2_256), "hash algorithm, when <id> is a bare hex digest")
}

func runStat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	id, err := cmdutil.ParseID(args[0], statAlgorithm)
	if err != nil {
		return fmt.Errorf("parse id: %w", err)
	}

	s, err := cmdutil.ResolveStore(ctx)
	if err != nil {
		return err
	}
	defer cmdutil.StopIfLifecycle(ctx, s)

	info, err := s.Stat(ctx, id)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	if info == nil {
		return fmt.Errorf("block %s not found", id)
	}

	fmt.Printf("id:        %s\n", info.ID)
	fmt.Printf("size:      %d\n", info.Size)
	fmt.Printf("stored_at: %s\n", info.StoredAt.Format("2006-01-02T15:04:05Z07:00"))
	return nil
}
