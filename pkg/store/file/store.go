// Package file provides an on-disk block store. Blocks are written
// read-only under a two-level hex-prefix directory fan-out, staged
// through a landing area and published atomically via rename.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dittoblocks/blocks/internal/logger"
	"github.com/dittoblocks/blocks/pkg/block"
	"github.com/dittoblocks/blocks/pkg/content"
	"github.com/dittoblocks/blocks/pkg/multihash"
	"github.com/dittoblocks/blocks/pkg/store"
)

const (
	layoutVersion  = "1"
	metaFileName   = "meta.properties"
	blocksDirName  = "blocks"
	landingDirName = "landing"
	prefixLen      = 8
)

// Config configures a Store rooted at Root.
type Config struct {
	// Root is the store's root directory. It is created if AutoCreate is
	// set and does not yet exist.
	Root string

	// AutoCreate creates Root (and its meta.properties) when it does not
	// already exist.
	AutoCreate bool

	// AutoMigrate allows starting against a v0 layout (bare hex-prefix
	// directories directly under Root, no meta.properties). Without it,
	// Start refuses to run against a v0 layout.
	AutoMigrate bool

	// Algorithm is the multihash algorithm assumed for entries found on
	// disk during List; the on-disk path encodes only the raw hex
	// digest, not which algorithm produced it, so a single store rooted
	// at one path commits to one algorithm. Defaults to SHA2_256.
	Algorithm multihash.Algorithm
}

// Store is a filesystem-backed block store. Every exported method is
// safe for concurrent use; per-block atomicity comes from the
// landing-then-rename publish sequence, not from locking.
type Store struct {
	root       string
	blocksDir  string
	landingDir string
	algorithm  multihash.Algorithm

	autoCreate  bool
	autoMigrate bool

	mu      sync.Mutex
	started bool
}

var _ store.Store = (*Store)(nil)
var _ store.Eraser = (*Store)(nil)
var _ store.Lifecycle = (*Store)(nil)

// New constructs a Store for cfg without touching the filesystem; call
// Start to initialize or migrate the on-disk layout.
func New(cfg Config) (*Store, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("%w: root is required", store.ErrInvalidArgument)
	}
	algo := cfg.Algorithm
	if algo == "" {
		algo = multihash.SHA2_256
	}
	return &Store{
		root:        cfg.Root,
		blocksDir:   filepath.Join(cfg.Root, blocksDirName),
		landingDir:  filepath.Join(cfg.Root, landingDirName),
		algorithm:   algo,
		autoCreate:  cfg.AutoCreate,
		autoMigrate: cfg.AutoMigrate,
	}, nil
}

// Start initializes the on-disk layout: writes meta.properties for a
// fresh root, migrates a v0 layout when AutoMigrate is set, validates an
// existing meta.properties' version, and sweeps stale landing files.
func (s *Store) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	if s.autoCreate {
		if err := os.MkdirAll(s.root, 0755); err != nil {
			return store.NewError("start", "file", "", "file", err)
		}
	}

	empty, err := dirEmpty(s.root)
	if err != nil {
		return store.NewError("start", "file", "", "file", err)
	}

	metaPath := filepath.Join(s.root, metaFileName)

	switch {
	case empty:
		if err := s.writeMeta(); err != nil {
			return store.NewError("start", "file", "", "file", err)
		}

	default:
		version, err := readMetaVersion(metaPath)
		switch {
		case err == nil:
			if version != layoutVersion {
				return store.NewError("start", "file", "", "file",
					fmt.Errorf("%w: unsupported version %q", store.ErrIncompatibleLayout, version))
			}
		case os.IsNotExist(err):
			if !s.autoMigrate {
				return store.NewError("start", "file", "", "file",
					fmt.Errorf("%w: v0 layout detected, set auto_migrate to proceed", store.ErrIncompatibleLayout))
			}
			logger.Warn("migrating v0 layout", logger.Dir(s.root))
			if err := s.migrateV0(); err != nil {
				return store.NewError("start", "file", "", "file", err)
			}
			if err := s.writeMeta(); err != nil {
				return store.NewError("start", "file", "", "file", err)
			}
		default:
			return store.NewError("start", "file", "", "file", err)
		}
	}

	if err := os.MkdirAll(s.blocksDir, 0755); err != nil {
		return store.NewError("start", "file", "", "file", err)
	}
	if err := os.MkdirAll(s.landingDir, 0755); err != nil {
		return store.NewError("start", "file", "", "file", err)
	}
	s.sweepLanding()

	s.started = true
	logger.Debug("file store started", logger.Dir(s.root))
	return nil
}

// Stop is a no-op; the file store holds no resources beyond the
// filesystem itself.
func (s *Store) Stop(_ context.Context) error { return nil }

func (s *Store) writeMeta() error {
	content := fmt.Sprintf("version=%s\n", layoutVersion)
	return os.WriteFile(filepath.Join(s.root, metaFileName), []byte(content), 0644)
}

// migrateV0 moves every top-level hex-prefix directory under the new
// blocks/ subdirectory. Best-effort: a failure partway through leaves a
// mix of migrated and unmigrated directories, which a future start can
// retry.
func (s *Store) migrateV0() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.blocksDir, 0755); err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() || len(e.Name()) != prefixLen || !multihash.IsHex(e.Name()) {
			continue
		}
		oldPath := filepath.Join(s.root, e.Name())
		newPath := filepath.Join(s.blocksDir, e.Name())
		if err := os.Rename(oldPath, newPath); err != nil {
			return fmt.Errorf("migrate %s: %w", e.Name(), err)
		}
	}
	return nil
}

func (s *Store) sweepLanding() {
	entries, err := os.ReadDir(s.landingDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		os.Remove(filepath.Join(s.landingDir, e.Name()))
	}
}

func dirEmpty(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}
	defer f.Close()
	_, err = f.Readdirnames(1)
	if err == io.EOF {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

func readMetaVersion(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "version=") {
			return strings.TrimPrefix(line, "version="), nil
		}
	}
	return "", fmt.Errorf("%w: meta.properties missing version key", store.ErrIncompatibleLayout)
}

// blockPath returns the two-level fan-out path for id.
func (s *Store) blockPath(id multihash.Multihash) string {
	hex := id.Hex()
	return filepath.Join(s.blocksDir, hex[:prefixLen], hex[prefixLen:])
}

// Stat returns the block's on-disk metadata, or (nil, nil) if absent.
func (s *Store) Stat(_ context.Context, id multihash.Multihash) (*store.StatInfo, error) {
	info, err := os.Stat(s.blockPath(id))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, store.NewError("stat", "file", id.Hex(), "file", err)
	}
	return &store.StatInfo{ID: id, Size: info.Size(), StoredAt: info.ModTime()}, nil
}

// Get returns a lazy block whose reader opens a fresh file input stream,
// or (nil, nil) if absent.
func (s *Store) Get(_ context.Context, id multihash.Multihash) (*block.Block, error) {
	path := s.blockPath(id)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, store.NewError("get", "file", id.Hex(), "file", err)
	}

	reader := content.NewDeferred(info.Size(), func() (io.ReadCloser, error) {
		return os.Open(path)
	})
	b, err := block.Direct(id, info.Size(), reader)
	if err != nil {
		return nil, store.NewError("get", "file", id.Hex(), "file", err)
	}
	return b.WithMeta(info.ModTime(), nil), nil
}

// Put stages content in landing/ and publishes it atomically via
// rename. If the target already exists, the extant stored block is
// returned without touching the filesystem again.
func (s *Store) Put(_ context.Context, b *block.Block) (*block.Block, error) {
	id := b.ID()
	target := s.blockPath(id)

	if info, err := os.Stat(target); err == nil {
		return s.directFromFile(id, target, info)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return nil, store.NewError("put", "file", id.Hex(), "file", err)
	}

	tmp, err := os.CreateTemp(s.landingDir, "block.*.tmp")
	if err != nil {
		return nil, store.NewError("put", "file", id.Hex(), "file", err)
	}
	tmpPath := tmp.Name()

	r, err := block.Open(b, nil, nil)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, store.NewError("put", "file", id.Hex(), "file", err)
	}

	_, copyErr := io.Copy(tmp, r)
	r.Close()
	closeErr := tmp.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return nil, store.NewError("put", "file", id.Hex(), "file", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return nil, store.NewError("put", "file", id.Hex(), "file", closeErr)
	}

	if err := os.Chmod(tmpPath, 0444); err != nil {
		os.Remove(tmpPath)
		return nil, store.NewError("put", "file", id.Hex(), "file", err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return nil, store.NewError("put", "file", id.Hex(), "file", err)
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, store.NewError("put", "file", id.Hex(), "file", err)
	}
	logger.Debug("block written", logger.BlockIDHex(id.Hex()), logger.Size(info.Size()))
	return s.directFromFile(id, target, info)
}

func (s *Store) directFromFile(id multihash.Multihash, path string, info os.FileInfo) (*block.Block, error) {
	reader := content.NewDeferred(info.Size(), func() (io.ReadCloser, error) {
		return os.Open(path)
	})
	b, err := block.Direct(id, info.Size(), reader)
	if err != nil {
		return nil, err
	}
	return b.WithMeta(info.ModTime(), nil), nil
}

// Delete unlinks the block's file, reporting whether it existed.
func (s *Store) Delete(_ context.Context, id multihash.Multihash) (bool, error) {
	err := os.Remove(s.blockPath(id))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, store.NewError("delete", "file", id.Hex(), "file", err)
	}
	return true, nil
}

// Erase removes the blocks/ and landing/ trees and recreates them empty.
func (s *Store) Erase(_ context.Context) error {
	logger.Warn("erasing store", logger.Dir(s.root))
	if err := os.RemoveAll(s.blocksDir); err != nil {
		return store.NewError("erase", "file", "", "file", err)
	}
	if err := os.RemoveAll(s.landingDir); err != nil {
		return store.NewError("erase", "file", "", "file", err)
	}
	if err := os.MkdirAll(s.blocksDir, 0755); err != nil {
		return store.NewError("erase", "file", "", "file", err)
	}
	if err := os.MkdirAll(s.landingDir, 0755); err != nil {
		return store.NewError("erase", "file", "", "file", err)
	}
	return nil
}

// List enumerates blocks/ depth-first in lexicographic order on a
// background goroutine, skipping prefix directories that precede
// opts.After's common prefix and stopping once opts.Before is exceeded.
// Non-hex entries are skipped, with a Debug log line for each.
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

		prefixes, err := sortedHexEntries(s.blocksDir)
		if err != nil {
			send(ctx, out, store.ListItem{Err: store.NewError("list", "file", "", "file", err)})
			return
		}

		if opts.Algorithm != "" && opts.Algorithm != s.algorithm {
			return
		}

		emitted := 0
		for _, prefix := range prefixes {
			if opts.Limit > 0 && emitted >= opts.Limit {
				return
			}
			// Skip prefix directories that precede after's own prefix;
			// the suffix loop handles exact boundaries within a prefix.
			if opts.After != "" && len(opts.After) >= prefixLen && prefix < opts.After[:prefixLen] {
				continue
			}
			if opts.Before != "" && len(opts.Before) >= prefixLen && prefix > opts.Before[:prefixLen] {
				return
			}

			suffixes, err := sortedHexEntries(filepath.Join(s.blocksDir, prefix))
			if err != nil {
				send(ctx, out, store.ListItem{Err: store.NewError("list", "file", "", "file", err)})
				return
			}

			for _, suffix := range suffixes {
				hex := prefix + suffix
				if opts.After != "" && hex <= opts.After {
					continue
				}
				if opts.Before != "" && hex >= opts.Before {
					return
				}

				id, err := multihash.ParseHex(s.algorithm, hex)
				if err != nil {
					continue
				}

				b, getErr := s.Get(ctx, id)
				if getErr != nil {
					send(ctx, out, store.ListItem{Err: getErr})
					return
				}
				if b == nil {
					continue
				}

				if !send(ctx, out, store.ListItem{Block: b}) {
					return
				}
				emitted++
				if opts.Limit > 0 && emitted >= opts.Limit {
					return
				}
			}
		}
	}()

	return out
}

func send(ctx context.Context, out chan<- store.ListItem, item store.ListItem) bool {
	select {
	case out <- item:
		return true
	case <-ctx.Done():
		return false
	}
}

func sortedHexEntries(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !multihash.IsHex(e.Name()) {
			logger.Debug("skipping non-hex directory entry", logger.Dir(dir), "entry", e.Name())
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
