package config

import (
	"context"
	"os"
	"testing"
)

func TestCreateStoreMemory(t *testing.T) {
	cfg := &Config{Stores: map[string]StoreConfig{"mem": {Type: "memory"}}}

	s, err := CreateStore(context.Background(), cfg, "mem")
	if err != nil {
		t.Fatalf("CreateStore failed: %v", err)
	}
	if s == nil {
		t.Fatal("expected a store")
	}
}

func TestCreateStoreUnknownNameFails(t *testing.T) {
	cfg := &Config{Stores: map[string]StoreConfig{}}
	if _, err := CreateStore(context.Background(), cfg, "missing"); err == nil {
		t.Fatal("expected an error for an undefined store name")
	}
}

func TestCreateDefaultStoreRequiresDefault(t *testing.T) {
	cfg := &Config{Stores: map[string]StoreConfig{"mem": {Type: "memory"}}}
	if _, err := CreateDefaultStore(context.Background(), cfg); err == nil {
		t.Fatal("expected an error when no default store is configured")
	}
}

func TestCreateStoreUnknownTypeFails(t *testing.T) {
	cfg := &Config{Stores: map[string]StoreConfig{"bad": {Type: "nfs"}}}
	if _, err := CreateStore(context.Background(), cfg, "bad"); err == nil {
		t.Fatal("expected an error for an unknown store type")
	}
}

func TestCreateBufferStoreComposesInnerStores(t *testing.T) {
	cfg := &Config{
		Stores: map[string]StoreConfig{
			"staging": {Type: "memory"},
			"primary": {Type: "memory"},
			"buf": {
				Type: "buffer",
				Buffer: &BufferConfig{
					Buffer:       "staging",
					Primary:      "primary",
					MaxBlockSize: 4 << 20,
				},
			},
		},
	}

	s, err := CreateStore(context.Background(), cfg, "buf")
	if err != nil {
		t.Fatalf("CreateStore failed: %v", err)
	}
	if s == nil {
		t.Fatal("expected a store")
	}
}

func TestCreateCacheStoreComposesInnerStores(t *testing.T) {
	cfg := &Config{
		Stores: map[string]StoreConfig{
			"primary": {Type: "memory"},
			"hot":     {Type: "memory"},
			"cached": {
				Type: "cache",
				Cache: &CacheConfig{
					Primary:      "primary",
					Cache:        "hot",
					SizeLimit:    1 << 20,
					MaxBlockSize: 1 << 16,
				},
			},
		},
	}

	s, err := CreateStore(context.Background(), cfg, "cached")
	if err != nil {
		t.Fatalf("CreateStore failed: %v", err)
	}
	if s == nil {
		t.Fatal("expected a store")
	}
}

func TestCreateReplicaStoreRequiresInnerStores(t *testing.T) {
	cfg := &Config{
		Stores: map[string]StoreConfig{
			"replicated": {Type: "replica", Replica: &ReplicaConfig{}},
		},
	}
	if _, err := CreateStore(context.Background(), cfg, "replicated"); err == nil {
		t.Fatal("expected an error for a replica store with no inner stores")
	}
}

func TestCreateReplicaStoreComposesInnerStores(t *testing.T) {
	cfg := &Config{
		Stores: map[string]StoreConfig{
			"a": {Type: "memory"},
			"b": {Type: "memory"},
			"replicated": {
				Type:    "replica",
				Replica: &ReplicaConfig{Stores: []string{"a", "b"}},
			},
		},
	}

	s, err := CreateStore(context.Background(), cfg, "replicated")
	if err != nil {
		t.Fatalf("CreateStore failed: %v", err)
	}
	if s == nil {
		t.Fatal("expected a store")
	}
}

func TestCreateStoreMeteredWrapsWithMeter(t *testing.T) {
	cfg := &Config{
		Stores: map[string]StoreConfig{
			"mem": {Type: "memory", Metered: true},
		},
	}

	s, err := CreateStore(context.Background(), cfg, "mem")
	if err != nil {
		t.Fatalf("CreateStore failed: %v", err)
	}
	if s == nil {
		t.Fatal("expected a store")
	}
}

func TestBufferConfigParsesHumanReadableSize(t *testing.T) {
	path := t.TempDir() + "/blocks.yaml"
	contents := `
stores:
  staging:
    type: memory
  primary:
    type: memory
  buf:
    type: buffer
    buffer:
      buffer: staging
      primary: primary
      max_block_size: 4Mi
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	got := cfg.Stores["buf"].Buffer.MaxBlockSize.Int64()
	want := int64(4 * 1024 * 1024)
	if got != want {
		t.Fatalf("expected max_block_size %d, got %d", want, got)
	}
}
