// Package cmdutil provides shared utilities for blockstorectl commands.
package cmdutil

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dittoblocks/blocks/internal/logger"
	"github.com/dittoblocks/blocks/pkg/config"
	"github.com/dittoblocks/blocks/pkg/multihash"
	"github.com/dittoblocks/blocks/pkg/registry"
	"github.com/dittoblocks/blocks/pkg/store"
)

// Flags stores global flag values accessible by subcommands.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values shared by every subcommand.
type GlobalFlags struct {
	StoreURI    string
	Config      string
	StoreRef    string
	Metrics     bool
	MetricsAddr string
}

// ResolveStore returns the store to operate on, preferring an explicit
// --store URI over a --config file. When a config file is given, --name
// selects which configured store to use, falling back to the config's
// Default.
//
// Each invocation is tagged with a fresh trace id so a run's log lines
// can be correlated even when several blockstorectl invocations
// interleave in a shared log stream.
func ResolveStore(ctx context.Context) (store.Store, error) {
	ctx = logger.WithContext(ctx, logger.NewLogContext("").WithTrace(uuid.NewString(), ""))

	if Flags.StoreURI != "" {
		logger.DebugCtx(ctx, "resolving store from uri")
		return registry.Open(ctx, Flags.StoreURI)
	}

	if Flags.Config == "" {
		return nil, fmt.Errorf("specify --store <uri> or --config <path>")
	}

	cfg, err := config.Load(Flags.Config)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if Flags.StoreRef != "" {
		logger.DebugCtx(ctx, "resolving store from config", logger.Store(Flags.StoreRef))
		return config.CreateStore(ctx, cfg, Flags.StoreRef)
	}
	logger.DebugCtx(ctx, "resolving default store from config")
	return config.CreateDefaultStore(ctx, cfg)
}

// StopIfLifecycle stops s if it implements store.Lifecycle, ignoring
// stores that don't.
func StopIfLifecycle(ctx context.Context, s store.Store) {
	if lc, ok := s.(store.Lifecycle); ok {
		_ = lc.Stop(ctx)
	}
}

// ParseID accepts either a canonical "<algorithm>:<hex>" identifier (as
// printed by "put") or a bare hex digest paired with algorithm.
func ParseID(id, algorithm string) (multihash.Multihash, error) {
	if strings.Contains(id, ":") {
		return multihash.Parse(id)
	}
	return multihash.ParseHex(multihash.Algorithm(algorithm), id)
}
