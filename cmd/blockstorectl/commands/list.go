package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dittoblocks/blocks/cmd/blockstorectl/cmdutil"
	"github.com/dittoblocks/blocks/pkg/multihash"
	"github.com/dittoblocks/blocks/pkg/store"
)

var (
	listAlgorithm string
	listAfter     string
	listBefore    string
	listLimit     int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored blocks in ascending id order",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listAlgorithm, "algorithm", "", "restrict the listing to ids hashed with this algorithm")
	listCmd.Flags().StringVar(&listAfter, "after", "", "exclusive lower bound hex id")
	listCmd.Flags().StringVar(&listBefore, "before", "", "exclusive upper bound hex id")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "maximum number of blocks to list (0 = unlimited)")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := cmdutil.ResolveStore(ctx)
	if err != nil {
		return err
	}
	defer cmdutil.StopIfLifecycle(ctx, s)

	opts := store.ListOptions{
		Algorithm: multihash.Algorithm(listAlgorithm),
		After:     listAfter,
		Before:    listBefore,
		Limit:     listLimit,
	}
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("invalid list options: %w", err)
	}

	count := 0
	for item := range s.List(ctx, opts) {
		if item.Err != nil {
			return fmt.Errorf("list: %w", item.Err)
		}
		fmt.Printf("%s\t%d\t%s\n", item.Block.ID(), item.Block.Size(), item.Block.StoredAt().Format("2006-01-02T15:04:05Z07:00"))
		count++
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "%d block(s)\n", count)
	return nil
}
