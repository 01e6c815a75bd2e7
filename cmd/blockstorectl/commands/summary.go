package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dittoblocks/blocks/cmd/blockstorectl/cmdutil"
	"github.com/dittoblocks/blocks/pkg/store"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print aggregate count, total size, and size-bucket histogram",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

func runSummary(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := cmdutil.ResolveStore(ctx)
	if err != nil {
		return err
	}
	defer cmdutil.StopIfLifecycle(ctx, s)

	summary, err := store.Summarize(ctx, s, store.ListOptions{})
	if err != nil {
		return fmt.Errorf("summary: %w", err)
	}

	fmt.Printf("count\t%d\n", summary.Count)
	fmt.Printf("total_size\t%d\n", summary.TotalSize)

	buckets := make([]string, 0, len(summary.SizeBucket))
	for label := range summary.SizeBucket {
		buckets = append(buckets, label)
	}
	sort.Strings(buckets)
	for _, label := range buckets {
		fmt.Printf("bucket\t%s\t%d\n", label, summary.SizeBucket[label])
	}
	return nil
}
