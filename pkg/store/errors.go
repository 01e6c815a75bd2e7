package store

import (
	"errors"
	"fmt"

	"github.com/dittoblocks/blocks/pkg/block"
)

// ErrInvalidArgument is re-exported from block for convenience; facades
// raise it synchronously before any I/O, per spec: bad option types,
// non-multihash ids, out-of-range offsets.
var ErrInvalidArgument = block.ErrInvalidArgument

// ErrInvalidBlock is re-exported from block: Validate failed, hash
// mismatch, or wrong size.
var ErrInvalidBlock = block.ErrInvalidBlock

// ErrIncompatibleLayout is returned by the file store when on-disk
// metadata declares an unrecognized layout version.
var ErrIncompatibleLayout = errors.New("store: incompatible on-disk layout")

// ErrMisconfiguredStore is returned when a composite store is started
// without its required inner stores.
var ErrMisconfiguredStore = errors.New("store: misconfigured composite store")

func newInvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Error wraps a sentinel store error with structured debugging context:
// the operation, the store's label, the affected block id (when known),
// and the backend type. It is modeled directly on the block-storage
// error shape the wider codebase uses for payload errors, so that
// errors.Is/errors.As keep working through the wrapper.
type Error struct {
	// Op names the failed operation: "list", "stat", "get", "put",
	// "delete", "erase", "start", "stop".
	Op string

	// Store is a human-readable label for the store instance (its
	// configured name or backend kind).
	Store string

	// BlockID is the hex id of the affected block, if any.
	BlockID string

	// Backend identifies the storage backend type: "memory", "file",
	// "buffer", "cache", "replica", "meter", "s3", "badger".
	Backend string

	// Err is the wrapped sentinel or underlying I/O error.
	Err error
}

// Error implements error.
func (e *Error) Error() string {
	if e.BlockID == "" {
		return fmt.Sprintf("store %s: %s (store=%s, backend=%s)", e.Op, e.Err, e.Store, e.Backend)
	}
	return fmt.Sprintf("store %s: %s (store=%s, block=%s, backend=%s)", e.Op, e.Err, e.Store, e.BlockID, e.Backend)
}

// Unwrap exposes the wrapped error for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Err }

// NewError constructs an Error wrapping err with operational context.
func NewError(op, storeName, blockID, backend string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Store: storeName, BlockID: blockID, Backend: backend, Err: err}
}
