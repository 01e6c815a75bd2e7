package memory

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/dittoblocks/blocks/pkg/block"
	"github.com/dittoblocks/blocks/pkg/content"
	"github.com/dittoblocks/blocks/pkg/multihash"
	"github.com/dittoblocks/blocks/pkg/store"
)

func mustBlock(t *testing.T, data string) *block.Block {
	t.Helper()
	b, err := block.FromReader(multihash.SHA2_256, strings.NewReader(data))
	if err != nil {
		t.Fatalf("FromReader failed: %v", err)
	}
	return b
}

func TestPutGetRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()
	b := mustBlock(t, "round trip content")

	stored, err := s.Put(ctx, b)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if stored.StoredAt().IsZero() {
		t.Fatal("expected StoredAt to be populated")
	}

	got, err := s.Get(ctx, b.ID())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.Equal(b) {
		t.Fatal("round-tripped block does not match original")
	}
}

func TestGetMissingReturnsNilNil(t *testing.T) {
	s := New()
	id, _ := multihash.Sum(multihash.SHA2_256, []byte("never stored"))

	got, err := s.Get(context.Background(), id)
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil) for missing block, got (%v, %v)", got, err)
	}
}

func TestPutIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()
	b := mustBlock(t, "idempotent content")

	first, err := s.Put(ctx, b)
	if err != nil {
		t.Fatalf("first Put failed: %v", err)
	}
	second, err := s.Put(ctx, b)
	if err != nil {
		t.Fatalf("second Put failed: %v", err)
	}
	if first.StoredAt() != second.StoredAt() {
		t.Fatal("expected second Put to return the extant stored block unchanged")
	}
}

func TestDeleteReportsPresence(t *testing.T) {
	s := New()
	ctx := context.Background()
	b := mustBlock(t, "to delete")

	if ok, err := s.Delete(ctx, b.ID()); err != nil || ok {
		t.Fatalf("expected false for not-yet-present block, got (%v, %v)", ok, err)
	}

	s.Put(ctx, b)

	if ok, err := s.Delete(ctx, b.ID()); err != nil || !ok {
		t.Fatalf("expected true deleting present block, got (%v, %v)", ok, err)
	}
	if ok, _ := s.Delete(ctx, b.ID()); ok {
		t.Fatal("expected false deleting already-deleted block")
	}
}

func TestListAscendingOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, data := range []string{"alpha", "beta", "gamma", "delta"} {
		s.Put(ctx, mustBlock(t, data))
	}

	var hexes []string
	for item := range s.List(ctx, store.ListOptions{}) {
		if item.Err != nil {
			t.Fatalf("unexpected list error: %v", item.Err)
		}
		hexes = append(hexes, item.Block.ID().Hex())
	}

	if len(hexes) != 4 {
		t.Fatalf("expected 4 items, got %d", len(hexes))
	}
	for i := 1; i < len(hexes); i++ {
		if hexes[i-1] >= hexes[i] {
			t.Fatalf("expected ascending order, got %v", hexes)
		}
	}
}

func TestListRespectsLimitAndBounds(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, data := range []string{"one", "two", "three", "four", "five"} {
		s.Put(ctx, mustBlock(t, data))
	}

	var all []string
	for item := range s.List(ctx, store.ListOptions{}) {
		all = append(all, item.Block.ID().Hex())
	}

	limited := s.List(ctx, store.ListOptions{Limit: 2})
	count := 0
	for range limited {
		count++
	}
	if count != 2 {
		t.Fatalf("expected limit to cap at 2, got %d", count)
	}

	bounded := s.List(ctx, store.ListOptions{After: all[0], Before: all[len(all)-1]})
	count = 0
	for range bounded {
		count++
	}
	if count != len(all)-2 {
		t.Fatalf("expected %d items strictly between bounds, got %d", len(all)-2, count)
	}
}

func TestErase(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.Put(ctx, mustBlock(t, "will be erased"))

	if err := store.Erase(ctx, s); err != nil {
		t.Fatalf("Erase failed: %v", err)
	}

	count := 0
	for range s.List(ctx, store.ListOptions{}) {
		count++
	}
	if count != 0 {
		t.Fatalf("expected empty store after erase, got %d items", count)
	}
}

func TestPutMaterializesLazyBlock(t *testing.T) {
	s := New()
	ctx := context.Background()

	const data = "will be loaded on put"
	src := mustBlock(t, data)
	b, err := block.Direct(src.ID(), src.Size(), content.NewDeferred(src.Size(), func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(data)), nil
	}))
	if err != nil {
		t.Fatalf("Direct failed: %v", err)
	}

	stored, err := s.Put(ctx, b)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if !stored.Loaded() {
		t.Fatal("expected stored block to be loaded")
	}
}
