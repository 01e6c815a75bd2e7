// Package memory provides a reference in-memory implementation of the
// store contract, backed by a map guarded by a single read-write mutex,
// whose keys are sorted on each List call. It
// exists both as a usable store and as the baseline other backends are
// tested against.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dittoblocks/blocks/pkg/block"
	"github.com/dittoblocks/blocks/pkg/multihash"
	"github.com/dittoblocks/blocks/pkg/store"
)

// Store is an in-memory, concurrency-safe implementation of store.Store.
// It holds every block's content resident in memory; Put always
// materializes lazy blocks via block.Load before storing, so Get never
// touches a caller-supplied reader after the call returns.
type Store struct {
	mu     sync.RWMutex
	blocks map[string]*block.Block
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{blocks: make(map[string]*block.Block)}
}

var _ store.Store = (*Store)(nil)
var _ store.Eraser = (*Store)(nil)

// List streams blocks matching opts in ascending hex-id order from a
// point-in-time snapshot taken under the read lock.
func (s *Store) List(ctx context.Context, opts store.ListOptions) <-chan store.ListItem {
	out := make(chan store.ListItem)

	if err := opts.Validate(); err != nil {
		go func() {
			defer close(out)
			out <- store.ListItem{Err: err}
		}()
		return out
	}

	s.mu.RLock()
	keys := make([]string, 0, len(s.blocks))
	for k := range s.blocks {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	snapshot := make([]*block.Block, 0, len(keys))
	for _, k := range keys {
		b := s.blocks[k]
		if opts.Algorithm != "" && b.ID().Algorithm() != opts.Algorithm {
			continue
		}
		if opts.After != "" && k <= opts.After {
			continue
		}
		if opts.Before != "" && k >= opts.Before {
			break
		}
		snapshot = append(snapshot, b)
		if opts.Limit > 0 && len(snapshot) >= opts.Limit {
			break
		}
	}
	s.mu.RUnlock()

	go func() {
		defer close(out)
		for _, b := range snapshot {
			select {
			case out <- store.ListItem{Block: b}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// Stat returns the block's metadata without its content.
func (s *Store) Stat(_ context.Context, id multihash.Multihash) (*store.StatInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.blocks[id.Hex()]
	if !ok {
		return nil, nil
	}
	return store.StatOf(b), nil
}

// Get returns the stored block, or (nil, nil) if absent.
func (s *Store) Get(_ context.Context, id multihash.Multihash) (*block.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.blocks[id.Hex()]
	if !ok {
		return nil, nil
	}
	return b, nil
}

// Put materializes b (if lazy) and stores it. Storing an id already
// present is a no-op that returns the extant block.
func (s *Store) Put(_ context.Context, b *block.Block) (*block.Block, error) {
	key := b.ID().Hex()

	s.mu.RLock()
	existing, ok := s.blocks[key]
	s.mu.RUnlock()
	if ok {
		return existing, nil
	}

	loaded, err := block.Load(b)
	if err != nil {
		return nil, store.NewError("put", "memory", key, "memory", err)
	}
	stored := loaded.WithMeta(time.Now().UTC(), loaded.Meta())

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.blocks[key]; ok {
		return existing, nil
	}
	s.blocks[key] = stored
	return stored, nil
}

// Delete removes the block with id, reporting whether it was present.
func (s *Store) Delete(_ context.Context, id multihash.Multihash) (bool, error) {
	key := id.Hex()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blocks[key]; !ok {
		return false, nil
	}
	delete(s.blocks, key)
	return true, nil
}

// Erase removes every block the store holds.
func (s *Store) Erase(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = make(map[string]*block.Block)
	return nil
}
