// Package store defines the asynchronous store contract shared by every
// block storage backend and composite store: list, stat, get, put,
// delete, and the optional erase capability.
package store

import (
	"context"
	"time"

	"github.com/dittoblocks/blocks/pkg/block"
	"github.com/dittoblocks/blocks/pkg/multihash"
)

// ListOptions constrains a List call. The zero value lists every block in
// ascending hex-id order.
type ListOptions struct {
	// Algorithm, when non-empty, restricts the listing to ids hashed
	// with this algorithm.
	Algorithm multihash.Algorithm

	// After is an exclusive lower bound: only ids with hex(id) > After
	// are emitted. Must match [0-9a-f]*.
	After string

	// Before is an exclusive upper bound: only ids with hex(id) < Before
	// are emitted. Must match [0-9a-f]*.
	Before string

	// Limit caps the number of blocks emitted. Zero means unlimited.
	Limit int
}

// Validate checks option shape before any I/O is attempted, per the
// facade's fail-fast argument validation policy.
func (o ListOptions) Validate() error {
	if o.Limit < 0 {
		return newInvalidArgument("limit must be >= 0, got %d", o.Limit)
	}
	if !multihash.IsHex(o.After) {
		return newInvalidArgument("after %q is not valid hex", o.After)
	}
	if !multihash.IsHex(o.Before) {
		return newInvalidArgument("before %q is not valid hex", o.Before)
	}
	return nil
}

// StatInfo is the lightweight projection of a block returned by Stat: its
// identity, size, and storage timestamp, without the content reader.
type StatInfo struct {
	ID       multihash.Multihash
	Size     int64
	StoredAt time.Time
}

// StatOf projects a StatInfo from a full Block.
func StatOf(b *block.Block) *StatInfo {
	if b == nil {
		return nil
	}
	return &StatInfo{ID: b.ID(), Size: b.Size(), StoredAt: b.StoredAt()}
}

// ListItem is one element of a List stream: either a Block in ascending
// id order, or a terminal Err. Once Err is non-nil the stream is closed
// immediately after — no further items follow.
type ListItem struct {
	Block *block.Block
	Err   error
}

// Store is the contract implemented by every storage backend and
// composite store. Get, Stat, and Delete represent "not found" as a nil
// value with a nil error, never as a sentinel error. Put is idempotent:
// storing an id already present returns the extant stored block.
//
// Implementations must be safe for concurrent use. List must emit blocks
// in strictly ascending hex-id order within a single call and must honor
// context cancellation, closing its output channel promptly once the
// context is done.
type Store interface {
	// List streams blocks matching opts in ascending id order. The
	// returned channel is closed when the listing is exhausted, the
	// context is cancelled, or after a single terminal error item.
	List(ctx context.Context, opts ListOptions) <-chan ListItem

	// Stat returns the block's metadata, or (nil, nil) if absent.
	Stat(ctx context.Context, id multihash.Multihash) (*StatInfo, error)

	// Get returns the block, or (nil, nil) if absent. The returned
	// block's ID always equals the requested id.
	Get(ctx context.Context, id multihash.Multihash) (*block.Block, error)

	// Put stores b and returns the canonical stored block (with
	// StoredAt populated). Storing an id already present is a no-op
	// that returns the extant stored block; b's content may be
	// discarded in that case.
	Put(ctx context.Context, b *block.Block) (*block.Block, error)

	// Delete removes the block with id, returning true iff it was
	// present.
	Delete(ctx context.Context, id multihash.Multihash) (bool, error)
}

// Eraser is the optional capability to atomically remove every block a
// store holds. Stores that do not implement Eraser can still be erased
// via EraseViaListDelete.
type Eraser interface {
	Erase(ctx context.Context) error
}

// Lifecycle is the optional capability for stores with backing resources
// to initialize (Start) and release (Stop) them. Stores with nothing to
// initialize (e.g. the memory store) need not implement it.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Summary is the aggregate result of a Summarize scan: the number of
// blocks seen, their total size, and a histogram of counts by size
// bucket (bucket boundaries are powers of two: <1KiB, <4KiB, <16KiB,
// <64KiB, <256KiB, <1MiB, <4MiB, <16MiB, <64MiB, <256MiB, <1GiB, and
// >=1GiB).
type Summary struct {
	Count      int
	TotalSize  int64
	SizeBucket map[string]int
}

var sizeBuckets = []struct {
	label string
	limit int64
}{
	{"<1KiB", 1 << 10},
	{"<4KiB", 4 << 10},
	{"<16KiB", 16 << 10},
	{"<64KiB", 64 << 10},
	{"<256KiB", 256 << 10},
	{"<1MiB", 1 << 20},
	{"<4MiB", 4 << 20},
	{"<16MiB", 16 << 20},
	{"<64MiB", 64 << 20},
	{"<256MiB", 256 << 20},
	{"<1GiB", 1 << 30},
}

const sizeBucketOverflow = ">=1GiB"

func bucketFor(size int64) string {
	for _, b := range sizeBuckets {
		if size < b.limit {
			return b.label
		}
	}
	return sizeBucketOverflow
}

// Summarize scans every block in s via List, returning aggregate count,
// total size, and a size-bucket histogram. It is a read-only O(n) scan;
// callers wanting a bounded view should pass opts with a Limit or
// After/Before range.
func Summarize(ctx context.Context, s Store, opts ListOptions) (Summary, error) {
	summary := Summary{SizeBucket: make(map[string]int)}
	for item := range s.List(ctx, opts) {
		if item.Err != nil {
			return Summary{}, item.Err
		}
		size := item.Block.Size()
		summary.Count++
		summary.TotalSize += size
		summary.SizeBucket[bucketFor(size)]++
	}
	return summary, nil
}

// Erase removes every block s holds. If s implements Eraser, its native
// implementation is used; otherwise every block is listed and deleted
// individually, which is not atomic.
func Erase(ctx context.Context, s Store) error {
	if e, ok := s.(Eraser); ok {
		return e.Erase(ctx)
	}
	return EraseViaListDelete(ctx, s)
}

// EraseViaListDelete implements Erase by listing every block and deleting
// each in turn. It is the fallback used when a store has no native erase
// capability; it is not atomic and a crash partway through leaves a
// partially erased store.
func EraseViaListDelete(ctx context.Context, s Store) error {
	items := s.List(ctx, ListOptions{})
	var ids []multihash.Multihash
	for item := range items {
		if item.Err != nil {
			return item.Err
		}
		ids = append(ids, item.Block.ID())
	}
	for _, id := range ids {
		if _, err := s.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
