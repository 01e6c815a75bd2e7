package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dittoblocks/blocks/cmd/blockstorectl/cmdutil"
	"github.com/dittoblocks/blocks/pkg/block"
	"github.com/dittoblocks/blocks/pkg/multihash"
)

var putAlgorithm string

var putCmd = &cobra.Command{
	Use:   "put [file]",
	Short: "Hash and store a block, reading from a file or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPut,
}

func init() {
	putCmd.Flags().StringVar(&putAlgorithm, "algorithm", string(multihash.SHA2_256), "hash algorithm to address the block with")
}

func runPut(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var b *block.Block
	var err error
	if len(args) == 1 {
		b, err = block.FromFile(multihash.Algorithm(putAlgorithm), args[0])
	} else {
		b, err = block.FromReader(multihash.Algorithm(putAlgorithm), os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("read content: %w", err)
	}

	s, err := cmdutil.ResolveStore(ctx)
	if err != nil {
		return err
	}
	defer cmdutil.StopIfLifecycle(ctx, s)

	stored, err := s.Put(ctx, b)
	if err != nil {
		return fmt.Errorf("put: %w", err)
	}

	fmt.Println(stored.ID().String())
	return nil
}
