// Package badger provides a badger/v4-backed embedded block store: one
// key-value entry per block, keyed by the raw multihash digest, value
// holding a small header (size, stored_at) followed by the
// block's content.
package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/dittoblocks/blocks/internal/logger"
	"github.com/dittoblocks/blocks/pkg/block"
	"github.com/dittoblocks/blocks/pkg/content"
	"github.com/dittoblocks/blocks/pkg/multihash"
	"github.com/dittoblocks/blocks/pkg/pbytes"
	"github.com/dittoblocks/blocks/pkg/store"
)

// Config configures a badger-backed Store.
type Config struct {
	// Dir is the on-disk directory badger stores its files in.
	Dir string

	// InMemory runs badger without persisting to disk, for tests.
	InMemory bool

	// Algorithm is the multihash algorithm assumed for keys found
	// during List; badger keys carry the raw digest only, so a single
	// database commits to one algorithm.
	Algorithm multihash.Algorithm
}

// Store is a badger/v4-backed implementation of store.Store.
type Store struct {
	db        *badgerdb.DB
	algorithm multihash.Algorithm
}

var _ store.Store = (*Store)(nil)
var _ store.Eraser = (*Store)(nil)
var _ store.Lifecycle = (*Store)(nil)

// New opens (or creates) the badger database at cfg.Dir.
func New(cfg Config) (*Store, error) {
	algo := cfg.Algorithm
	if algo == "" {
		algo = multihash.SHA2_256
	}

	opts := badgerdb.DefaultOptions(cfg.Dir).WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, store.NewError("start", "badger", "", "badger", err)
	}
	logger.Debug("badger store opened", logger.Dir(cfg.Dir), logger.Algorithm(string(algo)))
	return &Store{db: db, algorithm: algo}, nil
}

// Start is a no-op; New already opens the database. It satisfies
// store.Lifecycle so badger stores compose uniformly with others that
// need initialization.
func (s *Store) Start(_ context.Context) error { return nil }

// Stop closes the underlying database.
func (s *Store) Stop(_ context.Context) error {
	return s.db.Close()
}

// header is the fixed-size prefix stored ahead of every block's bytes:
// size (8 bytes, big-endian) then stored_at as a Unix nanosecond
// timestamp (8 bytes, big-endian).
const headerLen = 16

func encodeHeader(size int64, storedAt time.Time) []byte {
	buf := make([]byte, headerLen)
	binary.BigEndian.PutUint64(buf[0:8], uint64(size))
	binary.BigEndian.PutUint64(buf[8:16], uint64(storedAt.UnixNano()))
	return buf
}

func decodeHeader(buf []byte) (size int64, storedAt time.Time, err error) {
	if len(buf) < headerLen {
		return 0, time.Time{}, fmt.Errorf("badger: truncated header (%d bytes)", len(buf))
	}
	size = int64(binary.BigEndian.Uint64(buf[0:8]))
	storedAt = time.Unix(0, int64(binary.BigEndian.Uint64(buf[8:16]))).UTC()
	return size, storedAt, nil
}

// Stat reads the header for id without copying its content.
func (s *Store) Stat(_ context.Context, id multihash.Multihash) (*store.StatInfo, error) {
	var info *store.StatInfo
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(id.Digest())
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			size, storedAt, err := decodeHeader(val)
			if err != nil {
				return err
			}
			info = &store.StatInfo{ID: id, Size: size, StoredAt: storedAt}
			return nil
		})
	})
	if err != nil {
		return nil, store.NewError("stat", "badger", id.Hex(), "badger", err)
	}
	return info, nil
}

// Get returns a loaded block: badger values are already resident in
// memory once read, so there is no benefit to a lazy reader here.
func (s *Store) Get(_ context.Context, id multihash.Multihash) (*block.Block, error) {
	var (
		size     int64
		storedAt time.Time
		payload  []byte
		found    bool
	)

	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(id.Digest())
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			var decErr error
			size, storedAt, decErr = decodeHeader(val)
			if decErr != nil {
				return decErr
			}
			payload = append([]byte(nil), val[headerLen:]...)
			return nil
		})
	})
	if err != nil {
		return nil, store.NewError("get", "badger", id.Hex(), "badger", err)
	}
	if !found {
		return nil, nil
	}

	b, err := block.DirectLoaded(id, pbytes.Wrap(payload))
	if err != nil {
		return nil, store.NewError("get", "badger", id.Hex(), "badger", err)
	}
	_ = size // size is recomputed from payload length by DirectLoaded
	return b.WithMeta(storedAt, nil), nil
}

// Put writes b's full content under id's raw digest, preceded by its
// header. Storing an id already present is a no-op that returns the
// extant stored block.
func (s *Store) Put(ctx context.Context, b *block.Block) (*block.Block, error) {
	id := b.ID()

	if existing, err := s.Get(ctx, id); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	r, err := block.Open(b, nil, nil)
	if err != nil {
		return nil, store.NewError("put", "badger", id.Hex(), "badger", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, store.NewError("put", "badger", id.Hex(), "badger", err)
	}

	storedAt := time.Now().UTC()
	value := append(encodeHeader(int64(len(data)), storedAt), data...)

	err = s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(id.Digest(), value)
	})
	if err != nil {
		return nil, store.NewError("put", "badger", id.Hex(), "badger", err)
	}

	stored, err := block.DirectLoaded(id, pbytes.Wrap(data))
	if err != nil {
		return nil, store.NewError("put", "badger", id.Hex(), "badger", err)
	}
	return stored.WithMeta(storedAt, nil), nil
}

// Delete removes id's entry, reporting whether it was present.
func (s *Store) Delete(_ context.Context, id multihash.Multihash) (bool, error) {
	var found bool
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(id.Digest())
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return txn.Delete(id.Digest())
	})
	if err != nil {
		return false, store.NewError("delete", "badger", id.Hex(), "badger", err)
	}
	return found, nil
}

// Erase drops every entry via badger's DropAll.
func (s *Store) Erase(_ context.Context) error {
	logger.Warn("erasing store", logger.Backend("badger"))
	if err := s.db.DropAll(); err != nil {
		return store.NewError("erase", "badger", "", "badger", err)
	}
	return nil
}

// List iterates every key in ascending order (badger's native iterator
// order is key-sorted), applying the After/Before/Algorithm/Limit
// filters.
func (s *Store) List(ctx context.Context, opts store.ListOptions) <-chan store.ListItem {
	out := make(chan store.ListItem)

	if err := opts.Validate(); err != nil {
		go func() {
			defer close(out)
			out <- store.ListItem{Err: err}
		}()
		return out
	}

	go func() {
		defer close(out)

		if opts.Algorithm != "" && opts.Algorithm != s.algorithm {
			return
		}

		emitted := 0
		err := s.db.View(func(txn *badgerdb.Txn) error {
			it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
			defer it.Close()

			for it.Rewind(); it.Valid(); it.Next() {
				item := it.Item()
				hex := fmt.Sprintf("%x", item.KeyCopy(nil))

				if opts.After != "" && hex <= opts.After {
					continue
				}
				if opts.Before != "" && hex >= opts.Before {
					return nil
				}

				id, err := multihash.ParseHex(s.algorithm, hex)
				if err != nil {
					continue
				}

				var size int64
				var storedAt time.Time
				if err := item.Value(func(val []byte) error {
					var decErr error
					size, storedAt, decErr = decodeHeader(val)
					return decErr
				}); err != nil {
					return err
				}

				reader := content.NewDeferred(size, func() (io.ReadCloser, error) {
					return s.openBlobReader(id)
				})
				b, err := block.Direct(id, size, reader)
				if err != nil {
					continue
				}
				b = b.WithMeta(storedAt, nil)

				select {
				case out <- store.ListItem{Block: b}:
				case <-ctx.Done():
					return nil
				}
				emitted++
				if opts.Limit > 0 && emitted >= opts.Limit {
					return nil
				}
			}
			return nil
		})
		if err != nil {
			out <- store.ListItem{Err: store.NewError("list", "badger", "", "badger", err)}
		}
	}()

	return out
}

// openBlobReader re-reads a block's content from badger for a lazy
// List-produced reference, since badger requires a transaction for
// every read.
func (s *Store) openBlobReader(id multihash.Multihash) (io.ReadCloser, error) {
	var data []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(id.Digest())
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) < headerLen {
				return fmt.Errorf("badger: truncated value for %s", id.Hex())
			}
			data = append([]byte(nil), val[headerLen:]...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
