// Package meter wraps a store with latency and byte-flow instrumentation,
// emitting events to a user-supplied recorder. With no recorder
// configured, a meter Store behaves identically to its inner store.
package meter

import (
	"context"
	"io"
	"time"

	"github.com/dittoblocks/blocks/pkg/block"
	"github.com/dittoblocks/blocks/pkg/multihash"
	"github.com/dittoblocks/blocks/pkg/store"
)

// Event describes one observed measurement: a named metric, its value,
// and the operation/label it is attributed to.
type Event struct {
	Type  string // "latency" or "bytes"
	Label string // "list", "stat", "get", "put", "delete", "erase"
	Value float64
}

// Recorder receives Events. Implementations must not block the calling
// store operation for long; a slow or panicking Recorder only affects
// observability, never correctness.
type Recorder func(Event)

// Store wraps Inner, measuring latency per method call and, for Get and
// Put, the bytes flowing through the returned/consumed content stream.
type Store struct {
	inner    store.Store
	recorder Recorder
}

var _ store.Store = (*Store)(nil)

// New wraps inner with a meter Store. A nil recorder disables all
// instrumentation overhead beyond a branch per call.
func New(inner store.Store, recorder Recorder) *Store {
	return &Store{inner: inner, recorder: recorder}
}

func (s *Store) emit(e Event) {
	if s.recorder == nil {
		return
	}
	defer func() {
		// The recorder is user-supplied and untrusted; a panic inside it
		// must not propagate into the store call it is observing.
		recover()
	}()
	s.recorder(e)
}

func (s *Store) timed(label string, fn func() error) error {
	if s.recorder == nil {
		return fn()
	}
	start := time.Now()
	err := fn()
	s.emit(Event{Type: "latency", Label: label, Value: float64(time.Since(start))})
	return err
}

// List delegates to the inner store, measuring call latency and
// wrapping no per-item bytes (listings carry metadata, not content).
func (s *Store) List(ctx context.Context, opts store.ListOptions) <-chan store.ListItem {
	if s.recorder == nil {
		return s.inner.List(ctx, opts)
	}
	start := time.Now()
	out := s.inner.List(ctx, opts)
	s.emit(Event{Type: "latency", Label: "list", Value: float64(time.Since(start))})
	return out
}

// Stat delegates to the inner store, measuring call latency.
func (s *Store) Stat(ctx context.Context, id multihash.Multihash) (*store.StatInfo, error) {
	var info *store.StatInfo
	err := s.timed("stat", func() error {
		var innerErr error
		info, innerErr = s.inner.Stat(ctx, id)
		return innerErr
	})
	return info, err
}

// Get delegates to the inner store, measuring latency and wrapping the
// returned block's content reader to count bytes read.
func (s *Store) Get(ctx context.Context, id multihash.Multihash) (*block.Block, error) {
	var b *block.Block
	err := s.timed("get", func() error {
		var innerErr error
		b, innerErr = s.inner.Get(ctx, id)
		return innerErr
	})
	if err != nil || b == nil || s.recorder == nil {
		return b, err
	}
	return wrapBlockReader(b, s, "get"), nil
}

// Put delegates to the inner store, measuring latency and counting the
// bytes consumed from the supplied block's content stream.
func (s *Store) Put(ctx context.Context, b *block.Block) (*block.Block, error) {
	if s.recorder != nil && b != nil {
		b = wrapBlockReader(b, s, "put")
	}
	var stored *block.Block
	err := s.timed("put", func() error {
		var innerErr error
		stored, innerErr = s.inner.Put(ctx, b)
		return innerErr
	})
	return stored, err
}

// Delete delegates to the inner store, measuring call latency.
func (s *Store) Delete(ctx context.Context, id multihash.Multihash) (bool, error) {
	var ok bool
	err := s.timed("delete", func() error {
		var innerErr error
		ok, innerErr = s.inner.Delete(ctx, id)
		return innerErr
	})
	return ok, err
}

// Erase delegates to the inner store's Eraser capability, if present.
func (s *Store) Erase(ctx context.Context) error {
	return s.timed("erase", func() error {
		return store.Erase(ctx, s.inner)
	})
}

// Start delegates to the inner store's Lifecycle capability, if
// present.
func (s *Store) Start(ctx context.Context) error {
	if lc, ok := s.inner.(store.Lifecycle); ok {
		return lc.Start(ctx)
	}
	return nil
}

// Stop delegates to the inner store's Lifecycle capability, if present.
func (s *Store) Stop(ctx context.Context) error {
	if lc, ok := s.inner.(store.Lifecycle); ok {
		return lc.Stop(ctx)
	}
	return nil
}

// wrapBlockReader returns a Block equivalent to b whose content reader
// counts bytes flowing through Open/OpenRange and reports them to s
// under label.
func wrapBlockReader(b *block.Block, s *Store, label string) *block.Block {
	return b.WithContent(&meteringReader{source: b, s: s, label: label})
}

// meteringReader re-opens source's original content on every call (via
// block.Open, which is what callers would have done anyway) and wraps
// the resulting stream to count bytes read.
type meteringReader struct {
	source *block.Block
	s      *Store
	label  string
}

func (m *meteringReader) OpenAll() (io.ReadCloser, error) {
	r, err := block.Open(m.source, nil, nil)
	if err != nil {
		return nil, err
	}
	return countBytes(r, m.s, m.label), nil
}

func (m *meteringReader) OpenRange(start, end int64) (io.ReadCloser, error) {
	r, err := block.Open(m.source, &start, &end)
	if err != nil {
		return nil, err
	}
	return countBytes(r, m.s, m.label), nil
}

// countBytes wraps r so every Read call reports its byte count to s
// under label, and returns the wrapped reader.
func countBytes(r io.ReadCloser, s *Store, label string) io.ReadCloser {
	return &countingReadCloser{r: r, s: s, label: label}
}

type countingReadCloser struct {
	r     io.ReadCloser
	s     *Store
	label string
}

func (c *countingReadCloser) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.s.emit(Event{Type: "bytes", Label: c.label, Value: float64(n)})
	}
	return n, err
}

func (c *countingReadCloser) Close() error { return c.r.Close() }
