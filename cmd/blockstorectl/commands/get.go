package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dittoblocks/blocks/cmd/blockstorectl/cmdutil"
	"github.com/dittoblocks/blocks/pkg/block"
	"github.com/dittoblocks/blocks/pkg/multihash"
)

var getAlgorithm string

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Stream a stored block's content to stdout",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func init() {
	getCmd.Flags().StringVar(&getAlgorithm, "algorithm", string(multihash.SHA2_256), "hash algorithm, when <id> is a bare hex digest")
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	id, err := cmdutil.ParseID(args[0], getAlgorithm)
	if err != nil {
		return fmt.Errorf("parse id: %w", err)
	}

	s, err := cmdutil.ResolveStore(ctx)
	if err != nil {
		return err
	}
	defer cmdutil.StopIfLifecycle(ctx, s)

	b, err := s.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get: %w", err)
	}
	if b == nil {
		return fmt.Errorf("block %s not found", id)
	}

	r, err := block.Open(b, nil, nil)
	if err != nil {
		return fmt.Errorf("open content: %w", err)
	}
	defer r.Close()

	_, err = io.Copy(os.Stdout, r)
	return err
}
