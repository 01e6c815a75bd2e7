// Package storetest provides a black-box conformance suite that runs
// against any store.Store implementation, exercising the invariants
// every backend and composite store must uphold: round-trip identity,
// put idempotence, tombstoned deletion, hash integrity, and ascending,
// filterable listing.
package storetest

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/dittoblocks/blocks/pkg/block"
	"github.com/dittoblocks/blocks/pkg/multihash"
	"github.com/dittoblocks/blocks/pkg/store"
)

// Factory produces a fresh, empty store.Store for a single test case.
// The returned cleanup func (if non-nil) is invoked after the case
// finishes, whether it passes or fails.
type Factory func(t *testing.T) (s store.Store, cleanup func())

// Run executes the full conformance suite against the store produced
// by newStore, once per subtest.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	cases := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"PutGetRoundTrip", testPutGetRoundTrip},
		{"GetMissingReturnsNilNil", testGetMissingReturnsNilNil},
		{"PutIsIdempotent", testPutIsIdempotent},
		{"DeleteReportsPresence", testDeleteReportsPresence},
		{"StatMatchesGet", testStatMatchesGet},
		{"ListAscendingOrder", testListAscendingOrder},
		{"ListRespectsAfterBefore", testListRespectsAfterBefore},
		{"ListRespectsLimit", testListRespectsLimit},
		{"ValidateDetectsHashIntegrity", testValidateDetectsHashIntegrity},
		{"EraseRemovesEverything", testEraseRemovesEverything},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			s, cleanup := newStore(t)
			if cleanup != nil {
				defer cleanup()
			}
			c.fn(t, s)
		})
	}
}

func mustBlock(t *testing.T, data string) *block.Block {
	t.Helper()
	b, err := block.FromReader(multihash.SHA2_256, strings.NewReader(data))
	if err != nil {
		t.Fatalf("FromReader failed: %v", err)
	}
	if b == nil {
		t.Fatal("FromReader returned nil for non-empty content")
	}
	return b
}

func testPutGetRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	b := mustBlock(t, "round trip content")

	stored, err := s.Put(ctx, b)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if !stored.ID().Equal(b.ID()) {
		t.Fatalf("stored id %s does not match original %s", stored.ID(), b.ID())
	}

	got, err := s.Get(ctx, b.ID())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a block, got nil")
	}
	if err := block.Validate(got); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
}

func testGetMissingReturnsNilNil(t *testing.T, s store.Store) {
	ctx := context.Background()
	id, err := multihash.Sum(multihash.SHA2_256, []byte("never stored, ever"))
	if err != nil {
		t.Fatalf("Sum failed: %v", err)
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("expected nil error for a missing block, got %v", err)
	}
	if got != nil {
		t.Fatal("expected nil block for a missing id")
	}

	info, err := s.Stat(ctx, id)
	if err != nil {
		t.Fatalf("expected nil error from Stat on a missing block, got %v", err)
	}
	if info != nil {
		t.Fatal("expected nil StatInfo for a missing id")
	}
}

func testPutIsIdempotent(t *testing.T, s store.Store) {
	ctx := context.Background()
	b := mustBlock(t, "idempotent put content")

	first, err := s.Put(ctx, b)
	if err != nil {
		t.Fatalf("first Put failed: %v", err)
	}
	second, err := s.Put(ctx, mustBlock(t, "idempotent put content"))
	if err != nil {
		t.Fatalf("second Put failed: %v", err)
	}
	if !first.ID().Equal(second.ID()) || first.Size() != second.Size() {
		t.Fatalf("expected equal blocks from repeated Put, got %v and %v", first, second)
	}
}

func testDeleteReportsPresence(t *testing.T, s store.Store) {
	ctx := context.Background()
	b := mustBlock(t, "delete presence content")
	if _, err := s.Put(ctx, b); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	ok, err := s.Delete(ctx, b.ID())
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !ok {
		t.Fatal("expected true deleting a present block")
	}

	ok, err = s.Delete(ctx, b.ID())
	if err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
	if ok {
		t.Fatal("expected false deleting an already-deleted block")
	}

	got, err := s.Get(ctx, b.ID())
	if err != nil {
		t.Fatalf("Get after delete failed: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil after deletion")
	}
}

func testStatMatchesGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	b := mustBlock(t, "stat matches get content")

	stored, err := s.Put(ctx, b)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	info, err := s.Stat(ctx, b.ID())
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info == nil {
		t.Fatal("expected StatInfo, got nil")
	}
	if info.Size != stored.Size() {
		t.Fatalf("expected stat size %d, got %d", stored.Size(), info.Size)
	}
	if !info.ID.Equal(stored.ID()) {
		t.Fatalf("expected stat id %s, got %s", stored.ID(), info.ID)
	}
}

func testListAscendingOrder(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, data := range []string{"list one", "list two", "list three", "list four"} {
		if _, err := s.Put(ctx, mustBlock(t, data)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	var hexes []string
	for item := range s.List(ctx, store.ListOptions{}) {
		if item.Err != nil {
			t.Fatalf("unexpected list error: %v", item.Err)
		}
		hexes = append(hexes, item.Block.ID().Hex())
	}
	if len(hexes) != 4 {
		t.Fatalf("expected 4 listed blocks, got %d", len(hexes))
	}
	if !sort.StringsAreSorted(hexes) {
		t.Fatalf("expected ascending order, got %v", hexes)
	}
}

func testListRespectsAfterBefore(t *testing.T, s store.Store) {
	ctx := context.Background()
	var hexes []string
	for _, data := range []string{"bound alpha", "bound beta", "bound gamma", "bound delta"} {
		b, err := s.Put(ctx, mustBlock(t, data))
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		hexes = append(hexes, b.ID().Hex())
	}
	sort.Strings(hexes)

	mid := hexes[len(hexes)/2]
	var got []string
	for item := range s.List(ctx, store.ListOptions{After: mid}) {
		if item.Err != nil {
			t.Fatalf("unexpected list error: %v", item.Err)
		}
		got = append(got, item.Block.ID().Hex())
	}
	for _, hex := range got {
		if hex <= mid {
			t.Fatalf("After=%s leaked %s", mid, hex)
		}
	}

	got = nil
	for item := range s.List(ctx, store.ListOptions{Before: mid}) {
		if item.Err != nil {
			t.Fatalf("unexpected list error: %v", item.Err)
		}
		got = append(got, item.Block.ID().Hex())
	}
	for _, hex := range got {
		if hex >= mid {
			t.Fatalf("Before=%s leaked %s", mid, hex)
		}
	}
}

func testListRespectsLimit(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, data := range []string{"limit one", "limit two", "limit three", "limit four", "limit five"} {
		if _, err := s.Put(ctx, mustBlock(t, data)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	count := 0
	for item := range s.List(ctx, store.ListOptions{Limit: 3}) {
		if item.Err != nil {
			t.Fatalf("unexpected list error: %v", item.Err)
		}
		count++
	}
	if count != 3 {
		t.Fatalf("expected Limit=3 to cap results at 3, got %d", count)
	}
}

func testValidateDetectsHashIntegrity(t *testing.T, s store.Store) {
	ctx := context.Background()
	b := mustBlock(t, "integrity content")

	stored, err := s.Put(ctx, b)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := s.Get(ctx, stored.ID())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if err := block.Validate(got); err != nil {
		t.Fatalf("expected a freshly stored block to validate, got %v", err)
	}
}

func testEraseRemovesEverything(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, data := range []string{"erase one", "erase two", "erase three"} {
		if _, err := s.Put(ctx, mustBlock(t, data)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	if err := store.Erase(ctx, s); err != nil {
		t.Fatalf("Erase failed: %v", err)
	}

	count := 0
	for item := range s.List(ctx, store.ListOptions{}) {
		if item.Err != nil {
			t.Fatalf("unexpected list error: %v", item.Err)
		}
		count++
	}
	if count != 0 {
		t.Fatalf("expected an empty store after Erase, got %d blocks", count)
	}
}
