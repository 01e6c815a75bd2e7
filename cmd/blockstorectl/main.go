package main

import (
	"fmt"
	"os"

	"github.com/dittoblocks/blocks/cmd/blockstorectl/commands"

	// Registers the Prometheus recorder constructor with pkg/metrics.
	_ "github.com/dittoblocks/blocks/pkg/metrics/prometheus"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
