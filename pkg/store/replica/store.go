// Package replica provides an N-way fan-out store: writes are
// replicated to every inner store, reads are satisfied by the first
// inner store that has the block.
package replica

import (
	"context"
	"fmt"

	"github.com/dittoblocks/blocks/internal/logger"
	"github.com/dittoblocks/blocks/pkg/block"
	"github.com/dittoblocks/blocks/pkg/multihash"
	"github.com/dittoblocks/blocks/pkg/store"
	"github.com/dittoblocks/blocks/pkg/store/stream"
	"golang.org/x/sync/errgroup"
)

// Store holds an ordered list of inner stores. The first store is
// canonical: its stat/get/put results win, and a Put's representation
// choice is derived from it before fanning out to the rest.
type Store struct {
	stores []store.Store
}

var _ store.Store = (*Store)(nil)

// New constructs a replica Store over stores, in priority order. At
// least one store is required; with a single store, every call goes to
// that store alone.
func New(stores ...store.Store) (*Store, error) {
	if len(stores) == 0 {
		return nil, fmt.Errorf("%w: replica store requires at least one inner store", store.ErrMisconfiguredStore)
	}
	return &Store{stores: stores}, nil
}

// Stat tries each inner store in order until one yields a hit.
func (s *Store) Stat(ctx context.Context, id multihash.Multihash) (*store.StatInfo, error) {
	for _, inner := range s.stores {
		info, err := inner.Stat(ctx, id)
		if err != nil {
			return nil, err
		}
		if info != nil {
			return info, nil
		}
	}
	return nil, nil
}

// Get tries each inner store in order until one yields a hit.
func (s *Store) Get(ctx context.Context, id multihash.Multihash) (*block.Block, error) {
	for _, inner := range s.stores {
		b, err := inner.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if b != nil {
			return b, nil
		}
	}
	return nil, nil
}

// Put writes to the first store to obtain the canonical stored block,
// then fans the preferred representation out to the remaining stores in
// parallel, waiting for all to complete before returning.
func (s *Store) Put(ctx context.Context, b *block.Block) (*block.Block, error) {
	stored, err := s.stores[0].Put(ctx, b)
	if err != nil {
		return nil, err
	}

	copyBlock := preferred(b, stored)

	if len(s.stores) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		for _, inner := range s.stores[1:] {
			inner := inner
			g.Go(func() error {
				_, err := inner.Put(gctx, copyBlock)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			logger.Warn("replica fan-out failed", logger.BlockIDHex(stored.ID().Hex()), logger.Err(err))
			return nil, err
		}
	}

	return stored, nil
}

// preferred returns b when it is loaded, else stored.
func preferred(b, stored *block.Block) *block.Block {
	if b.Loaded() {
		return b
	}
	return stored
}

// Delete fans out to every inner store; the result is the OR of
// per-store outcomes.
func (s *Store) Delete(ctx context.Context, id multihash.Multihash) (bool, error) {
	results := make([]bool, len(s.stores))
	g, gctx := errgroup.WithContext(ctx)
	for i, inner := range s.stores {
		i, inner := i, inner
		g.Go(func() error {
			ok, err := inner.Delete(gctx, id)
			if err != nil {
				return err
			}
			results[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	any := false
	for _, ok := range results {
		any = any || ok
	}
	return any, nil
}

// List merges every inner store's listing in ascending order,
// de-duplicating by id.
func (s *Store) List(ctx context.Context, opts store.ListOptions) <-chan store.ListItem {
	channels := make([]<-chan store.ListItem, len(s.stores))
	for i, inner := range s.stores {
		channels[i] = inner.List(ctx, opts)
	}
	return stream.Merge(ctx, channels...)
}
