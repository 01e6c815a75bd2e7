// Package block defines the immutable block value — the unit of storage
// for the content-addressable store — along with its construction,
// validation, loading, and streaming-access helpers.
package block

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dittoblocks/blocks/pkg/content"
	"github.com/dittoblocks/blocks/pkg/multihash"
	"github.com/dittoblocks/blocks/pkg/pbytes"
)

// ErrInvalidArgument is returned for malformed inputs detected before any
// I/O is attempted: out-of-range open bounds, non-multihash ids, and the
// like.
var ErrInvalidArgument = errors.New("block: invalid argument")

// ErrInvalidBlock is returned by Validate when a block's content does not
// hash to its claimed id, or its byte count does not match its claimed
// size.
var ErrInvalidBlock = errors.New("block: invalid block")

// Block is an immutable tuple of (id, size, stored_at, content, meta).
// Blocks are values: "updating" a block means producing a new Block, never
// mutating one in place. Two blocks compare equal under Equal iff their id
// and size match; StoredAt and Meta never affect equality.
type Block struct {
	id       multihash.Multihash
	size     int64
	storedAt time.Time
	content  content.Reader
	loaded   bool
	meta     map[string]any
}

// ID returns the block's multihash identifier.
func (b *Block) ID() multihash.Multihash { return b.id }

// Size returns the block's payload size in bytes. It is always > 0 for a
// validly constructed Block.
func (b *Block) Size() int64 { return b.size }

// StoredAt returns the timestamp a store recorded when it accepted the
// block. It does not participate in equality.
func (b *Block) StoredAt() time.Time { return b.storedAt }

// Meta returns the block's side-channel attributes. It does not
// participate in equality. The returned map must not be mutated; use
// WithMeta to derive a new Block with different metadata.
func (b *Block) Meta() map[string]any { return b.meta }

// WithMeta returns a new Block with the given StoredAt and metadata,
// leaving id, size, and content untouched. This is the only way to
// "update" a Block, consistent with its value semantics.
func (b *Block) WithMeta(storedAt time.Time, meta map[string]any) *Block {
	return &Block{
		id:       b.id,
		size:     b.size,
		storedAt: storedAt,
		content:  b.content,
		loaded:   b.loaded,
		meta:     meta,
	}
}

// WithContent returns a new Block sharing b's id, size, stored_at,
// loaded flag, and meta, but backed by a different content reader. It
// exists for instrumentation overlays that need to observe reads
// without altering the block's value semantics.
func (b *Block) WithContent(reader content.Reader) *Block {
	return &Block{
		id:       b.id,
		size:     b.size,
		storedAt: b.storedAt,
		content:  reader,
		loaded:   b.loaded,
		meta:     b.meta,
	}
}

// Loaded reports whether the block's content is resident in memory
// (pbytes-backed) as opposed to produced on demand (lazy).
func (b *Block) Loaded() bool { return b.loaded }

// Equal reports whether two blocks have the same id and size. StoredAt
// and Meta are deliberately excluded.
func (b *Block) Equal(other *Block) bool {
	if b == nil || other == nil {
		return b == other
	}
	return b.id.Equal(other.id) && b.size == other.size
}

// FromReader consumes src fully, hashes it with algo, and returns a loaded
// block. It returns (nil, nil) for an empty source, since empty content is
// never a block.
func FromReader(algo multihash.Algorithm, src io.Reader) (*Block, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("block: read source: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	id, err := multihash.Sum(algo, data)
	if err != nil {
		return nil, err
	}

	payload := pbytes.Wrap(data)
	return &Block{
		id:      id,
		size:    int64(payload.Len()),
		content: content.NewPBytes(payload),
		loaded:  true,
	}, nil
}

// FromFile stats path for its size and streams it once through algo's hash
// function, producing a lazy block whose reader opens a fresh file stream
// on each access. It returns (nil, nil) for an empty file.
func FromFile(algo multihash.Algorithm, path string) (*Block, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("block: stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("block: open %s: %w", path, err)
	}
	defer f.Close()

	h, err := multihash.New(algo)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("block: hash %s: %w", path, err)
	}

	id, err := multihash.NewMultihash(algo, h.Sum(nil))
	if err != nil {
		return nil, err
	}

	size := info.Size()
	reader := content.NewDeferred(size, func() (io.ReadCloser, error) {
		return os.Open(path)
	})

	return &Block{
		id:      id,
		size:    size,
		content: reader,
		loaded:  false,
	}, nil
}

// Direct constructs a lazy block from a known id, size, and reader without
// rehashing. It is the trusted path used by stores returning blocks they
// already hold: the store has already established the invariant that
// reader.OpenAll() yields exactly size bytes hashing to id.
func Direct(id multihash.Multihash, size int64, reader content.Reader) (*Block, error) {
	if id.IsZero() {
		return nil, fmt.Errorf("%w: zero-value id", ErrInvalidArgument)
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: size must be > 0, got %d", ErrInvalidArgument, size)
	}
	return &Block{id: id, size: size, content: reader, loaded: false}, nil
}

// DirectLoaded constructs a loaded block from a known id and in-memory
// payload without rehashing. Used by composite stores that already hold
// the canonical bytes (e.g. the cache store preferring a loaded
// representation).
func DirectLoaded(id multihash.Multihash, data *pbytes.Bytes) (*Block, error) {
	if id.IsZero() {
		return nil, fmt.Errorf("%w: zero-value id", ErrInvalidArgument)
	}
	size := int64(data.Len())
	if size <= 0 {
		return nil, fmt.Errorf("%w: size must be > 0, got %d", ErrInvalidArgument, size)
	}
	return &Block{id: id, size: size, content: content.NewPBytes(data), loaded: true}, nil
}

// Validate re-reads b's content through a counting stream and returns
// ErrInvalidBlock if the recomputed digest does not match b.ID(), or if
// the observed byte count differs from b.Size().
func Validate(b *Block) error {
	h, err := multihash.New(b.id.Algorithm())
	if err != nil {
		return err
	}

	r, err := b.content.OpenAll()
	if err != nil {
		return fmt.Errorf("block: open for validation: %w", err)
	}
	defer r.Close()

	n, err := io.Copy(h, r)
	if err != nil {
		return fmt.Errorf("block: read for validation: %w", err)
	}
	if n != b.size {
		return fmt.Errorf("%w: read %d bytes, want %d", ErrInvalidBlock, n, b.size)
	}

	sum, err := multihash.NewMultihash(b.id.Algorithm(), h.Sum(nil))
	if err != nil {
		return err
	}
	if !sum.Equal(b.id) {
		return fmt.Errorf("%w: content hashes to %s, want %s", ErrInvalidBlock, sum, b.id)
	}
	return nil
}

// Load returns a loaded equivalent of b: for lazy blocks, its full content
// is read into memory and wrapped; for already-loaded blocks, b itself is
// returned unchanged.
func Load(b *Block) (*Block, error) {
	if b.loaded {
		return b, nil
	}

	r, err := b.content.OpenAll()
	if err != nil {
		return nil, fmt.Errorf("block: open for load: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("block: read for load: %w", err)
	}

	payload := pbytes.Wrap(data)
	return &Block{
		id:       b.id,
		size:     b.size,
		storedAt: b.storedAt,
		content:  content.NewPBytes(payload),
		loaded:   true,
		meta:     b.meta,
	}, nil
}

// Open returns a fresh input stream over b's content. With no bounds it
// streams the whole payload; with bounds it validates 0 <= start < size,
// 0 < end <= size, start < end and returns ErrInvalidArgument on
// violation.
func Open(b *Block, start, end *int64) (io.ReadCloser, error) {
	if start == nil && end == nil {
		return b.content.OpenAll()
	}
	if start == nil || end == nil {
		return nil, fmt.Errorf("%w: start and end must both be set or both unset", ErrInvalidArgument)
	}

	s, e := *start, *end
	if s < 0 || s >= b.size {
		return nil, fmt.Errorf("%w: start %d out of [0, %d)", ErrInvalidArgument, s, b.size)
	}
	if e <= 0 || e > b.size {
		return nil, fmt.Errorf("%w: end %d out of (0, %d]", ErrInvalidArgument, e, b.size)
	}
	if s >= e {
		return nil, fmt.Errorf("%w: start %d must be < end %d", ErrInvalidArgument, s, e)
	}

	return b.content.OpenRange(s, e)
}
