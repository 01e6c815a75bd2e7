package replica

import (
	"context"
	"strings"
	"testing"

	"github.com/dittoblocks/blocks/pkg/block"
	"github.com/dittoblocks/blocks/pkg/multihash"
	"github.com/dittoblocks/blocks/pkg/store"
	"github.com/dittoblocks/blocks/pkg/store/memory"
)

func mustBlock(t *testing.T, data string) *block.Block {
	t.Helper()
	b, err := block.FromReader(multihash.SHA2_256, strings.NewReader(data))
	if err != nil {
		t.Fatalf("FromReader failed: %v", err)
	}
	return b
}

func TestPutReplicatesToAllStores(t *testing.T) {
	a, b, c := memory.New(), memory.New(), memory.New()
	s, err := New(a, b, c)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := context.Background()
	blk := mustBlock(t, "replicated content")

	if _, err := s.Put(ctx, blk); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	for i, inner := range []*memory.Store{a, b, c} {
		got, err := inner.Get(ctx, blk.ID())
		if err != nil || got == nil {
			t.Fatalf("expected replica %d to hold the block, got (%v, %v)", i, got, err)
		}
	}
}

func TestGetTriesInOrder(t *testing.T) {
	a, b := memory.New(), memory.New()
	ctx := context.Background()
	blk := mustBlock(t, "only in second")
	b.Put(ctx, blk)

	s, _ := New(a, b)
	got, err := s.Get(ctx, blk.ID())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected Get to fall through to the second store")
	}
}

func TestDeleteIsLogicalOr(t *testing.T) {
	a, b := memory.New(), memory.New()
	ctx := context.Background()
	blk := mustBlock(t, "delete from one replica")
	b.Put(ctx, blk)

	s, _ := New(a, b)
	ok, err := s.Delete(ctx, blk.ID())
	if err != nil || !ok {
		t.Fatalf("expected delete to report true, got (%v, %v)", ok, err)
	}
}

func TestListMergesAllReplicas(t *testing.T) {
	a, b := memory.New(), memory.New()
	ctx := context.Background()
	a.Put(ctx, mustBlock(t, "in a"))
	b.Put(ctx, mustBlock(t, "in b"))

	s, _ := New(a, b)
	count := 0
	for item := range s.List(ctx, store.ListOptions{}) {
		if item.Err != nil {
			t.Fatalf("unexpected error: %v", item.Err)
		}
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 merged items, got %d", count)
	}
}

func TestNewRequiresAtLeastOneStore(t *testing.T) {
	if _, err := New(); err == nil {
		t.Fatal("expected error constructing replica store with no inner stores")
	}
}
