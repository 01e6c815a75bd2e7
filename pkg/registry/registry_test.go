package registry

import (
	"context"
	"testing"

	"github.com/dittoblocks/blocks/pkg/config"
	"github.com/dittoblocks/blocks/pkg/store/memory"
)

func TestRegisterAndGet(t *testing.T) {
	r := New()
	s := memory.New()

	if err := r.Register("primary", s); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	got, err := r.Get("primary")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != s {
		t.Fatal("expected Get to return the registered store")
	}
}

func TestRegisterDuplicateNameFails(t *testing.T) {
	r := New()
	if err := r.Register("primary", memory.New()); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := r.Register("primary", memory.New()); err == nil {
		t.Fatal("expected an error registering a duplicate name")
	}
}

func TestGetMissingFails(t *testing.T) {
	r := New()
	if _, err := r.Get("missing"); err == nil {
		t.Fatal("expected an error for a missing store name")
	}
}

func TestListAndCount(t *testing.T) {
	r := New()
	r.Register("a", memory.New())
	r.Register("b", memory.New())

	if r.Count() != 2 {
		t.Fatalf("expected count 2, got %d", r.Count())
	}
	names := r.List()
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %v", names)
	}
}

func TestInitializeBuildsEveryConfiguredStore(t *testing.T) {
	cfg := &config.Config{
		Stores: map[string]config.StoreConfig{
			"mem-a": {Type: "memory"},
			"mem-b": {Type: "memory"},
		},
	}

	r, err := Initialize(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if r.Count() != 2 {
		t.Fatalf("expected 2 stores, got %d", r.Count())
	}
	if _, err := r.Get("mem-a"); err != nil {
		t.Fatalf("expected mem-a to be registered: %v", err)
	}
}

func TestOpenMemoryURI(t *testing.T) {
	s, err := Open(context.Background(), "mem:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if s == nil {
		t.Fatal("expected a store")
	}
}

func TestOpenFileURI(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(context.Background(), "file://"+dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if s == nil {
		t.Fatal("expected a store")
	}
}

func TestOpenUnknownSchemeFails(t *testing.T) {
	if _, err := Open(context.Background(), "ftp://somewhere"); err == nil {
		t.Fatal("expected an error for an unsupported scheme")
	}
}
