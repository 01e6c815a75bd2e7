// Package pbytes implements an immutable, length-prefixed byte sequence
// value with content equality, a stable hash, and lexicographic ordering.
package pbytes

import (
	"bytes"
	"hash/fnv"
	"io"
)

// Bytes is an immutable byte sequence. The zero value is not meaningful;
// use Wrap, Copy, or Empty to construct one. Bytes never represents a
// zero-length sequence directly — Wrap and Copy of empty input both
// return nil, matching the block model's rule that empty content never
// becomes a stored value.
type Bytes struct {
	data []byte
	sum  uint64
}

// Wrap takes ownership of data without copying it. The caller must not
// mutate data after the call. Wrapping a nil or zero-length slice returns
// nil, never a zero-length Bytes.
func Wrap(data []byte) *Bytes {
	if len(data) == 0 {
		return nil
	}
	return &Bytes{data: data, sum: fnvSum(data)}
}

// Copy defensively duplicates data into a new Bytes. Copying a nil or
// zero-length slice returns nil.
func Copy(data []byte) *Bytes {
	if len(data) == 0 {
		return nil
	}
	dup := make([]byte, len(data))
	copy(dup, data)
	return &Bytes{data: dup, sum: fnvSum(dup)}
}

func fnvSum(data []byte) uint64 {
	h := fnv.New64a()
	h.Write(data)
	return h.Sum64()
}

// Len returns the number of bytes held.
func (b *Bytes) Len() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// Bytes returns the underlying byte slice. Callers must treat it as
// read-only: Bytes is immutable by contract, not by copy-on-read.
func (b *Bytes) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.data
}

// Equal reports whether two Bytes hold identical content. A nil receiver
// equals another nil (or empty) Bytes.
func (b *Bytes) Equal(other *Bytes) bool {
	if b == nil || other == nil {
		return b.Len() == 0 && other.Len() == 0
	}
	if b.sum != other.sum {
		return false
	}
	return bytes.Equal(b.data, other.data)
}

// Hash returns a stable, content-derived hash suitable for use as a map
// key component. It is not cryptographic.
func (b *Bytes) Hash() uint64 {
	if b == nil {
		return fnvSum(nil)
	}
	return b.sum
}

// Compare returns -1, 0, or 1 as b is lexicographically less than, equal
// to, or greater than other.
func (b *Bytes) Compare(other *Bytes) int {
	return bytes.Compare(b.Bytes(), other.Bytes())
}

// Open returns a fresh io.Reader over the content. Each call yields an
// independent reader positioned at the start.
func (b *Bytes) Open() io.Reader {
	return bytes.NewReader(b.Bytes())
}
