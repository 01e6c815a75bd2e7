// Package content defines the block value's streaming-access capability:
// a polymorphic Reader that can open a full or ranged input stream without
// requiring the whole payload to be resident in memory.
package content

import (
	"errors"
	"fmt"
	"io"

	"github.com/dittoblocks/blocks/pkg/pbytes"
)

// ErrInvalidRange is returned when open-range bounds fail validation.
var ErrInvalidRange = errors.New("content: invalid range")

// Reader is the capability to open input streams over a block's payload,
// either in full or over a byte range. Implementations must support being
// opened repeatedly and concurrently; each Open call yields an independent
// stream.
type Reader interface {
	// OpenAll returns a stream over the entire payload.
	OpenAll() (io.ReadCloser, error)

	// OpenRange returns a stream over [start, end). start is inclusive,
	// end is exclusive; both must lie in [0, size]. Implementations that
	// cannot seek natively fall back to reading and discarding up to
	// start, then bounding the read to end-start bytes.
	OpenRange(start, end int64) (io.ReadCloser, error)
}

func validateRange(size, start, end int64) error {
	if start < 0 || start >= size {
		return fmt.Errorf("%w: start %d out of [0, %d)", ErrInvalidRange, start, size)
	}
	if end <= 0 || end > size {
		return fmt.Errorf("%w: end %d out of (0, %d]", ErrInvalidRange, end, size)
	}
	if start >= end {
		return fmt.Errorf("%w: start %d must be < end %d", ErrInvalidRange, start, end)
	}
	return nil
}

// nopCloser adapts an io.Reader without a Close method.
type nopCloser struct {
	io.Reader
}

func (nopCloser) Close() error { return nil }

// boundedReadCloser reads from r (a length-limited view built by
// skipAndBound) and closes the underlying closer c when done.
type boundedReadCloser struct {
	r io.Reader
	c io.Closer
}

func (b *boundedReadCloser) Read(p []byte) (int, error) { return b.r.Read(p) }
func (b *boundedReadCloser) Close() error {
	if b.c == nil {
		return nil
	}
	return b.c.Close()
}

func skipAndBound(full io.ReadCloser, start, length int64) (io.ReadCloser, error) {
	if start > 0 {
		if _, err := io.CopyN(io.Discard, full, start); err != nil {
			full.Close()
			return nil, fmt.Errorf("content: skip to range start: %w", err)
		}
	}
	return &boundedReadCloser{r: io.LimitReader(full, length), c: full}, nil
}

// PBytes wraps an in-memory payload as a Reader. It is the concrete
// content variant used by loaded blocks.
type PBytes struct {
	data *pbytes.Bytes
}

// NewPBytes returns a Reader backed by an in-memory pbytes.Bytes value.
func NewPBytes(data *pbytes.Bytes) *PBytes {
	return &PBytes{data: data}
}

// OpenAll returns a reader over the full in-memory payload.
func (p *PBytes) OpenAll() (io.ReadCloser, error) {
	return nopCloser{Reader: p.data.Open()}, nil
}

// OpenRange returns a reader over [start, end) of the in-memory payload.
// Consistent with the deferred variant, ranging is implemented as
// skip+bounded over a fresh full stream rather than a direct slice.
func (p *PBytes) OpenRange(start, end int64) (io.ReadCloser, error) {
	size := int64(p.data.Len())
	if err := validateRange(size, start, end); err != nil {
		return nil, err
	}
	full, err := p.OpenAll()
	if err != nil {
		return nil, err
	}
	return skipAndBound(full, start, end-start)
}

// Deferred wraps a thunk that produces a fresh stream on each call. It is
// the concrete content variant used by lazy blocks whose bytes live
// outside the process (on disk, in a remote object store, etc).
// NewDeferred's OpenRange falls back to skip+bounded over a fresh full
// stream; callers needing a native ranged read (e.g. a ranged GetObject
// or a pread) implement their own Reader instead, as pkg/store/s3 does.
type Deferred struct {
	size int64
	open func() (io.ReadCloser, error)
}

// NewDeferred returns a Reader that calls open to produce a fresh stream
// each time OpenAll or OpenRange is invoked. size must equal the number of
// bytes each opened stream yields.
func NewDeferred(size int64, open func() (io.ReadCloser, error)) *Deferred {
	return &Deferred{size: size, open: open}
}

// OpenAll invokes the thunk to produce a fresh full stream.
func (d *Deferred) OpenAll() (io.ReadCloser, error) {
	return d.open()
}

// OpenRange validates bounds then falls back to skip+bounded over a fresh
// full stream from the thunk.
func (d *Deferred) OpenRange(start, end int64) (io.ReadCloser, error) {
	if err := validateRange(d.size, start, end); err != nil {
		return nil, err
	}
	full, err := d.open()
	if err != nil {
		return nil, err
	}
	return skipAndBound(full, start, end-start)
}
