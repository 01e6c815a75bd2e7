// Package s3 provides an S3-backed block store: one object per block,
// keyed by its hex id, with metadata carried in the stored_at header.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dittoblocks/blocks/internal/logger"
	"github.com/dittoblocks/blocks/pkg/block"
	"github.com/dittoblocks/blocks/pkg/content"
	"github.com/dittoblocks/blocks/pkg/multihash"
	"github.com/dittoblocks/blocks/pkg/store"
)

// storedAtMetaKey is the S3 object metadata key carrying the block's
// stored_at timestamp in RFC3339, since S3's own LastModified reflects
// the object's last write time rather than the store's accepted-at
// time a migration or copy might otherwise disturb.
const storedAtMetaKey = "dittoblocks-stored-at"

// Config configures an S3-backed Store.
type Config struct {
	// Client is a pre-configured S3 client, required by New.
	// NewFromConfig ignores this field and always builds a new client
	// from the ambient AWS configuration.
	Client *s3.Client

	Bucket string

	// KeyPrefix is prepended to every object key; should end in "/" if
	// non-empty.
	KeyPrefix string

	// Region is used only when Client is nil.
	Region string

	// Endpoint overrides the S3 endpoint, for S3-compatible services.
	Endpoint string

	// ForcePathStyle is required by most S3-compatible services
	// (MinIO, LocalStack).
	ForcePathStyle bool

	// Algorithm is the multihash algorithm assumed for keys encountered
	// during List, since the object key encodes only the raw hex
	// digest.
	Algorithm multihash.Algorithm
}

// Store is an S3-backed implementation of store.Store.
type Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	algorithm multihash.Algorithm
}

var _ store.Store = (*Store)(nil)
var _ store.Eraser = (*Store)(nil)

// New constructs a Store from a pre-configured client.
func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("%w: s3 store requires a client", store.ErrInvalidArgument)
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 store requires a bucket", store.ErrInvalidArgument)
	}
	algo := cfg.Algorithm
	if algo == "" {
		algo = multihash.SHA2_256
	}
	return &Store{client: cfg.Client, bucket: cfg.Bucket, keyPrefix: cfg.KeyPrefix, algorithm: algo}, nil
}

// NewFromConfig builds an S3 client from the ambient AWS configuration
// (environment, shared config, IAM role) and constructs a Store.
func NewFromConfig(ctx context.Context, cfg Config) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(cfg.Endpoint) })
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	cfg.Client = s3.NewFromConfig(awsCfg, s3Opts...)
	return New(cfg)
}

func (s *Store) key(hex string) string {
	return s.keyPrefix + hex
}

// Stat issues a HeadObject and translates the result into a StatInfo.
func (s *Store) Stat(ctx context.Context, id multihash.Multihash) (*store.StatInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id.Hex())),
	})
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, store.NewError("stat", "s3", id.Hex(), "s3", err)
	}

	storedAt := storedAtFromMeta(out.Metadata, aws.ToTime(out.LastModified))
	return &store.StatInfo{ID: id, Size: aws.ToInt64(out.ContentLength), StoredAt: storedAt}, nil
}

// Get returns a lazy block whose reader issues fresh GetObject (or
// ranged GetObject) calls on demand.
func (s *Store) Get(ctx context.Context, id multihash.Multihash) (*block.Block, error) {
	info, err := s.Stat(ctx, id)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, nil
	}

	reader := &objectReader{ctx: ctx, store: s, key: s.key(id.Hex()), size: info.Size}
	b, err := block.Direct(id, info.Size, reader)
	if err != nil {
		return nil, store.NewError("get", "s3", id.Hex(), "s3", err)
	}
	return b.WithMeta(info.StoredAt, nil), nil
}

// objectReader is a content.Reader over a single S3 object, reopening a
// fresh GetObject stream on every call (OpenAll relies on S3 returning
// the whole body; OpenRange issues a ranged GetObject directly, rather
// than falling back to skip+bounded, since S3 already charges for the
// full object on an unranged read).
type objectReader struct {
	ctx   context.Context
	store *Store
	key   string
	size  int64
}

var _ content.Reader = (*objectReader)(nil)

func (r *objectReader) OpenAll() (io.ReadCloser, error) {
	out, err := r.store.client.GetObject(r.ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.store.bucket),
		Key:    aws.String(r.key),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

func (r *objectReader) OpenRange(start, end int64) (io.ReadCloser, error) {
	rangeHeader := fmt.Sprintf("bytes=%d-%d", start, end-1)
	out, err := r.store.client.GetObject(r.ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.store.bucket),
		Key:    aws.String(r.key),
		Range:  aws.String(rangeHeader),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

// Put uploads b's full content as a single PutObject, carrying
// stored_at in object metadata. If the object already exists, the
// extant stored block is returned without re-uploading.
func (s *Store) Put(ctx context.Context, b *block.Block) (*block.Block, error) {
	id := b.ID()

	if existing, err := s.Get(ctx, id); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	r, err := block.Open(b, nil, nil)
	if err != nil {
		return nil, store.NewError("put", "s3", id.Hex(), "s3", err)
	}
	defer r.Close()

	storedAt := time.Now().UTC()
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(id.Hex())),
		Body:          r,
		ContentLength: aws.Int64(b.Size()),
		Metadata:      map[string]string{storedAtMetaKey: storedAt.Format(time.RFC3339Nano)},
	})
	if err != nil {
		return nil, store.NewError("put", "s3", id.Hex(), "s3", err)
	}

	reader := &objectReader{ctx: ctx, store: s, key: s.key(id.Hex()), size: b.Size()}
	stored, err := block.Direct(id, b.Size(), reader)
	if err != nil {
		return nil, store.NewError("put", "s3", id.Hex(), "s3", err)
	}
	logger.Debug("block uploaded", logger.BlockIDHex(id.Hex()), logger.Size(b.Size()), logger.Bucket(s.bucket))
	return stored.WithMeta(storedAt, nil), nil
}

// Delete removes the object, reporting whether it existed beforehand.
func (s *Store) Delete(ctx context.Context, id multihash.Multihash) (bool, error) {
	info, err := s.Stat(ctx, id)
	if err != nil {
		return false, err
	}
	if info == nil {
		return false, nil
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id.Hex())),
	})
	if err != nil {
		return false, store.NewError("delete", "s3", id.Hex(), "s3", err)
	}
	return true, nil
}

// Erase lists and batch-deletes every object under the key prefix.
func (s *Store) Erase(ctx context.Context) error {
	logger.Warn("erasing store", logger.Bucket(s.bucket), logger.Dir(s.keyPrefix))
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.keyPrefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return store.NewError("erase", "s3", "", "s3", err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		objects := make([]types.ObjectIdentifier, len(page.Contents))
		for i, obj := range page.Contents {
			objects[i] = types.ObjectIdentifier{Key: obj.Key}
		}
		_, err = s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objects},
		})
		if err != nil {
			return store.NewError("erase", "s3", "", "s3", err)
		}
	}
	return nil
}

// List enumerates every object under the key prefix via ListObjectsV2,
// sorts the resulting hex keys (S3 already returns them in
// lexicographic UTF-8 order, but a defensive sort costs little),
// applies the After/Before/Algorithm/Limit filters, and emits one Get
// per surviving key.
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

		var hexes []string
		paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
			Prefix: aws.String(s.keyPrefix),
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				send(ctx, out, store.ListItem{Err: store.NewError("list", "s3", "", "s3", err)})
				return
			}
			for _, obj := range page.Contents {
				key := aws.ToString(obj.Key)
				hex := strings.TrimPrefix(key, s.keyPrefix)
				if multihash.IsHex(hex) {
					hexes = append(hexes, hex)
				}
			}
		}
		sort.Strings(hexes)

		emitted := 0
		for _, hex := range hexes {
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

			b, err := s.Get(ctx, id)
			if err != nil {
				send(ctx, out, store.ListItem{Err: err})
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

func storedAtFromMeta(meta map[string]string, fallback time.Time) time.Time {
	raw, ok := meta[storedAtMetaKey]
	if !ok {
		return fallback
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return fallback
	}
	return t
}

// isNotFound reports whether err represents an S3 "no such key"
// response. The SDK's typed NotFound errors aren't always returned
// consistently across S3-compatible backends, so this also matches on
// the common substrings real services emit.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "NotFound") || strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "404")
}
