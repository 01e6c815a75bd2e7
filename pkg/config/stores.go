package config

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/dittoblocks/blocks/internal/bytesize"
	"github.com/dittoblocks/blocks/pkg/metrics"
	"github.com/dittoblocks/blocks/pkg/multihash"
	"github.com/dittoblocks/blocks/pkg/store"
	"github.com/dittoblocks/blocks/pkg/store/badger"
	"github.com/dittoblocks/blocks/pkg/store/buffer"
	"github.com/dittoblocks/blocks/pkg/store/cache"
	"github.com/dittoblocks/blocks/pkg/store/file"
	"github.com/dittoblocks/blocks/pkg/store/memory"
	"github.com/dittoblocks/blocks/pkg/store/meter"
	"github.com/dittoblocks/blocks/pkg/store/replica"
	"github.com/dittoblocks/blocks/pkg/store/s3"
)

// metricsRecorder returns the process-wide Prometheus recorder if
// metrics collection is enabled, or nil otherwise.
func metricsRecorder() meter.Recorder {
	return metrics.NewRecorder()
}

// StoreConfig describes one named store: its backend Type plus the
// nested, backend-specific settings decoded via mapstructure. Only the
// map matching Type is consulted.
type StoreConfig struct {
	// Type selects the backend: "memory", "file", "s3", "badger",
	// "buffer", "cache", or "replica".
	Type string `mapstructure:"type" yaml:"type"`

	File    map[string]any `mapstructure:"file" yaml:"file,omitempty"`
	S3      map[string]any `mapstructure:"s3" yaml:"s3,omitempty"`
	Badger  map[string]any `mapstructure:"badger" yaml:"badger,omitempty"`
	Buffer  *BufferConfig  `mapstructure:"buffer" yaml:"buffer,omitempty"`
	Cache   *CacheConfig   `mapstructure:"cache" yaml:"cache,omitempty"`
	Replica *ReplicaConfig `mapstructure:"replica" yaml:"replica,omitempty"`

	// Metered wraps the constructed store in pkg/store/meter using the
	// process-wide Prometheus recorder from pkg/metrics, when enabled.
	Metered bool `mapstructure:"metered" yaml:"metered,omitempty"`
}

// BufferConfig names the inner stores a "buffer" store composes.
// MaxBlockSize accepts a human-readable size ("256MB", "1Gi") or a plain
// byte count.
type BufferConfig struct {
	Buffer       string            `mapstructure:"buffer" yaml:"buffer"`
	Primary      string            `mapstructure:"primary" yaml:"primary"`
	MaxBlockSize bytesize.ByteSize `mapstructure:"max_block_size" yaml:"max_block_size,omitempty"`
}

// CacheConfig names the inner stores a "cache" store composes.
// SizeLimit and MaxBlockSize accept a human-readable size ("256MB",
// "1Gi") or a plain byte count.
type CacheConfig struct {
	Primary      string            `mapstructure:"primary" yaml:"primary"`
	Cache        string            `mapstructure:"cache" yaml:"cache"`
	SizeLimit    bytesize.ByteSize `mapstructure:"size_limit" yaml:"size_limit"`
	MaxBlockSize bytesize.ByteSize `mapstructure:"max_block_size" yaml:"max_block_size,omitempty"`
}

// ReplicaConfig names the inner stores a "replica" store fans out to.
type ReplicaConfig struct {
	Stores []string `mapstructure:"stores" yaml:"stores"`
}

// CreateStore constructs the named store from cfg.Stores[name],
// recursively resolving composite backends' inner store references.
// Stores are constructed and started on demand; callers own calling
// Stop when done.
func CreateStore(ctx context.Context, cfg *Config, name string) (store.Store, error) {
	sc, ok := cfg.Stores[name]
	if !ok {
		return nil, fmt.Errorf("config: store %q is not defined", name)
	}
	return createStore(ctx, cfg, sc)
}

// CreateDefaultStore constructs the store named by cfg.Default.
func CreateDefaultStore(ctx context.Context, cfg *Config) (store.Store, error) {
	if cfg.Default == "" {
		return nil, fmt.Errorf("config: no default store configured")
	}
	return CreateStore(ctx, cfg, cfg.Default)
}

func createStore(ctx context.Context, cfg *Config, sc StoreConfig) (store.Store, error) {
	s, err := createBackend(ctx, cfg, sc)
	if err != nil {
		return nil, err
	}
	if lc, ok := s.(store.Lifecycle); ok {
		if err := lc.Start(ctx); err != nil {
			return nil, fmt.Errorf("config: start %s store: %w", sc.Type, err)
		}
	}
	if sc.Metered {
		s = meter.New(s, metricsRecorder())
	}
	return s, nil
}

func createBackend(ctx context.Context, cfg *Config, sc StoreConfig) (store.Store, error) {
	switch sc.Type {
	case "memory":
		return memory.New(), nil
	case "file":
		return createFileStore(sc)
	case "s3":
		return createS3Store(ctx, sc)
	case "badger":
		return createBadgerStore(sc)
	case "buffer":
		return createBufferStore(ctx, cfg, sc)
	case "cache":
		return createCacheStore(ctx, cfg, sc)
	case "replica":
		return createReplicaStore(ctx, cfg, sc)
	default:
		return nil, fmt.Errorf("config: unknown store type %q", sc.Type)
	}
}

func createFileStore(sc StoreConfig) (store.Store, error) {
	var fc struct {
		Root        string `mapstructure:"root"`
		AutoCreate  bool   `mapstructure:"auto_create"`
		AutoMigrate bool   `mapstructure:"auto_migrate"`
		Algorithm   string `mapstructure:"algorithm"`
	}
	if err := mapstructure.Decode(sc.File, &fc); err != nil {
		return nil, fmt.Errorf("config: invalid file store config: %w", err)
	}
	if fc.Root == "" {
		return nil, fmt.Errorf("config: file store requires root to be set")
	}
	return file.New(file.Config{
		Root:        fc.Root,
		AutoCreate:  fc.AutoCreate,
		AutoMigrate: fc.AutoMigrate,
		Algorithm:   multihash.Algorithm(fc.Algorithm),
	})
}

func createS3Store(ctx context.Context, sc StoreConfig) (store.Store, error) {
	var s3c struct {
		Bucket         string `mapstructure:"bucket"`
		KeyPrefix      string `mapstructure:"key_prefix"`
		Region         string `mapstructure:"region"`
		Endpoint       string `mapstructure:"endpoint"`
		ForcePathStyle bool   `mapstructure:"force_path_style"`
		Algorithm      string `mapstructure:"algorithm"`
	}
	if err := mapstructure.Decode(sc.S3, &s3c); err != nil {
		return nil, fmt.Errorf("config: invalid s3 store config: %w", err)
	}
	if s3c.Bucket == "" {
		return nil, fmt.Errorf("config: s3 store requires bucket to be set")
	}
	return s3.NewFromConfig(ctx, s3.Config{
		Bucket:         s3c.Bucket,
		KeyPrefix:      s3c.KeyPrefix,
		Region:         s3c.Region,
		Endpoint:       s3c.Endpoint,
		ForcePathStyle: s3c.ForcePathStyle,
		Algorithm:      multihash.Algorithm(s3c.Algorithm),
	})
}

func createBadgerStore(sc StoreConfig) (store.Store, error) {
	var bc struct {
		Dir       string `mapstructure:"dir"`
		InMemory  bool   `mapstructure:"in_memory"`
		Algorithm string `mapstructure:"algorithm"`
	}
	if err := mapstructure.Decode(sc.Badger, &bc); err != nil {
		return nil, fmt.Errorf("config: invalid badger store config: %w", err)
	}
	if bc.Dir == "" && !bc.InMemory {
		return nil, fmt.Errorf("config: badger store requires dir (or in_memory) to be set")
	}
	return badger.New(badger.Config{
		Dir:       bc.Dir,
		InMemory:  bc.InMemory,
		Algorithm: multihash.Algorithm(bc.Algorithm),
	})
}

func createBufferStore(ctx context.Context, cfg *Config, sc StoreConfig) (store.Store, error) {
	if sc.Buffer == nil {
		return nil, fmt.Errorf("config: buffer store requires a buffer section")
	}
	inner, err := CreateStore(ctx, cfg, sc.Buffer.Buffer)
	if err != nil {
		return nil, fmt.Errorf("config: buffer store's buffer: %w", err)
	}
	primary, err := CreateStore(ctx, cfg, sc.Buffer.Primary)
	if err != nil {
		return nil, fmt.Errorf("config: buffer store's primary: %w", err)
	}
	return buffer.New(buffer.Config{Buffer: inner, Primary: primary, MaxBlockSize: sc.Buffer.MaxBlockSize.Int64()})
}

func createCacheStore(ctx context.Context, cfg *Config, sc StoreConfig) (store.Store, error) {
	if sc.Cache == nil {
		return nil, fmt.Errorf("config: cache store requires a cache section")
	}
	primary, err := CreateStore(ctx, cfg, sc.Cache.Primary)
	if err != nil {
		return nil, fmt.Errorf("config: cache store's primary: %w", err)
	}
	inner, err := CreateStore(ctx, cfg, sc.Cache.Cache)
	if err != nil {
		return nil, fmt.Errorf("config: cache store's cache: %w", err)
	}
	return cache.New(cache.Config{
		Primary:      primary,
		Cache:        inner,
		SizeLimit:    sc.Cache.SizeLimit.Int64(),
		MaxBlockSize: sc.Cache.MaxBlockSize.Int64(),
	})
}

func createReplicaStore(ctx context.Context, cfg *Config, sc StoreConfig) (store.Store, error) {
	if sc.Replica == nil || len(sc.Replica.Stores) == 0 {
		return nil, fmt.Errorf("config: replica store requires at least one inner store")
	}
	inner := make([]store.Store, 0, len(sc.Replica.Stores))
	for _, name := range sc.Replica.Stores {
		s, err := CreateStore(ctx, cfg, name)
		if err != nil {
			return nil, fmt.Errorf("config: replica store's %q: %w", name, err)
		}
		inner = append(inner, s)
	}
	return replica.New(inner...)
}
