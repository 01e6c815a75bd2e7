// Package commands implements the blockstorectl CLI commands.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/dittoblocks/blocks/cmd/blockstorectl/cmdutil"
)

// Build-time variables injected via ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "blockstorectl",
	Short: "Drive a content-addressable block store from the command line",
	Long: `blockstorectl puts, gets, lists, stats, deletes, and erases blocks
against any store.Store backend: memory, file, s3, or badger.

Point it at a store with either a connection URI:

  blockstorectl --store file:///var/lib/blocks list

or a config file naming several stores:

  blockstorectl --config blocks.yaml --name primary list

Use "blockstorectl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		startMetricsIfEnabled()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cmdutil.Flags.StoreURI, "store", "", "store connection URI (mem:, file://path, s3://bucket, badger://path)")
	rootCmd.PersistentFlags().StringVar(&cmdutil.Flags.Config, "config", "", "path to a store config file")
	rootCmd.PersistentFlags().StringVar(&cmdutil.Flags.StoreRef, "name", "", "store name to use from --config (defaults to the config's default store)")
	rootCmd.PersistentFlags().BoolVar(&cmdutil.Flags.Metrics, "metrics", false, "enable Prometheus metrics collection and serve /metrics")
	rootCmd.PersistentFlags().StringVar(&cmdutil.Flags.MetricsAddr, "metrics-addr", ":9090", "address to serve /metrics on when --metrics is set")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(eraseCmd)
	rootCmd.AddCommand(summaryCmd)
}
