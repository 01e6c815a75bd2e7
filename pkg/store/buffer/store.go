// Package buffer provides a write-through staging store that composes a
// small buffer store in front of a primary store, deferring (or
// skipping) the migration of blocks into the primary.
package buffer

import (
	"context"
	"fmt"

	"github.com/dittoblocks/blocks/internal/logger"
	"github.com/dittoblocks/blocks/pkg/block"
	"github.com/dittoblocks/blocks/pkg/multihash"
	"github.com/dittoblocks/blocks/pkg/store"
	"github.com/dittoblocks/blocks/pkg/store/stream"
)

// FlushSummary reports the outcome of a Flush call.
type FlushSummary struct {
	Flushed int
	Failed  int
}

// Config composes a Store from a Buffer and Primary inner store, with an
// optional size threshold above which blocks bypass the buffer.
type Config struct {
	Buffer  store.Store
	Primary store.Store

	// MaxBlockSize, when > 0, routes blocks larger than this size
	// straight to Primary, skipping Buffer entirely.
	MaxBlockSize int64
}

// Store composes Buffer and Primary per Config.
type Store struct {
	buffer       store.Store
	primary      store.Store
	maxBlockSize int64
}

var _ store.Store = (*Store)(nil)

// New constructs a buffer Store. Both Buffer and Primary are required.
func New(cfg Config) (*Store, error) {
	if cfg.Buffer == nil || cfg.Primary == nil {
		return nil, fmt.Errorf("%w: buffer store requires both buffer and primary", store.ErrMisconfiguredStore)
	}
	return &Store{buffer: cfg.Buffer, primary: cfg.Primary, maxBlockSize: cfg.MaxBlockSize}, nil
}

// Stat tries the buffer first, then falls back to primary.
func (s *Store) Stat(ctx context.Context, id multihash.Multihash) (*store.StatInfo, error) {
	info, err := s.buffer.Stat(ctx, id)
	if err != nil {
		return nil, err
	}
	if info != nil {
		return info, nil
	}
	return s.primary.Stat(ctx, id)
}

// Get tries the buffer first, then falls back to primary.
func (s *Store) Get(ctx context.Context, id multihash.Multihash) (*block.Block, error) {
	b, err := s.buffer.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b != nil {
		return b, nil
	}
	return s.primary.Get(ctx, id)
}

// Put writes b to buffer, primary, or neither depending on whether
// primary already has the block and how b's size compares to
// MaxBlockSize.
func (s *Store) Put(ctx context.Context, b *block.Block) (*block.Block, error) {
	if existing, err := s.primary.Stat(ctx, b.ID()); err != nil {
		return nil, err
	} else if existing != nil {
		got, err := s.primary.Get(ctx, b.ID())
		if err != nil {
			return nil, err
		}
		return got, nil
	}

	if s.maxBlockSize > 0 && b.Size() > s.maxBlockSize {
		return s.primary.Put(ctx, b)
	}
	return s.buffer.Put(ctx, b)
}

// Delete removes from both inner stores; success is the logical OR.
func (s *Store) Delete(ctx context.Context, id multihash.Multihash) (bool, error) {
	bufOK, err := s.buffer.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	priOK, err := s.primary.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	return bufOK || priOK, nil
}

// List merges the buffer and primary listings in ascending order,
// de-duplicating by id (buffer wins on overlap since it is merged
// first).
func (s *Store) List(ctx context.Context, opts store.ListOptions) <-chan store.ListItem {
	return stream.Merge(ctx, s.buffer.List(ctx, opts), s.primary.List(ctx, opts))
}

// Flush copies the given buffered ids (or every buffered block, when ids
// is empty) to primary and deletes each from buffer on success.
func (s *Store) Flush(ctx context.Context, ids []multihash.Multihash) (FlushSummary, error) {
	targets := ids
	if len(targets) == 0 {
		for item := range s.buffer.List(ctx, store.ListOptions{}) {
			if item.Err != nil {
				return FlushSummary{}, item.Err
			}
			targets = append(targets, item.Block.ID())
		}
	}

	var summary FlushSummary
	for _, id := range targets {
		b, err := s.buffer.Get(ctx, id)
		if err != nil {
			summary.Failed++
			continue
		}
		if b == nil {
			continue
		}
		if _, err := s.primary.Put(ctx, b); err != nil {
			summary.Failed++
			continue
		}
		if _, err := s.buffer.Delete(ctx, id); err != nil {
			summary.Failed++
			continue
		}
		summary.Flushed++
	}
	logger.Debug("buffer flush complete", logger.Count(summary.Flushed))
	if summary.Failed > 0 {
		logger.Warn("buffer flush had failures", logger.Count(summary.Failed))
	}
	return summary, nil
}

// Clear drops every buffered block without flushing it to primary.
func (s *Store) Clear(ctx context.Context) error {
	logger.Warn("clearing buffer")
	return store.Erase(ctx, s.buffer)
}
