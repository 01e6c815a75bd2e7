package registry

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/dittoblocks/blocks/pkg/multihash"
	"github.com/dittoblocks/blocks/pkg/store"
	"github.com/dittoblocks/blocks/pkg/store/badger"
	"github.com/dittoblocks/blocks/pkg/store/file"
	"github.com/dittoblocks/blocks/pkg/store/memory"
	"github.com/dittoblocks/blocks/pkg/store/s3"
)

// Open dispatches a connection-string URI to the matching backend
// constructor, so a CLI flag like "file:///var/lib/blocks" or
// "s3://my-bucket?region=us-east-1" can be turned directly into a
// usable store.Store without a full Config file.
//
// Supported schemes:
//
//	mem:                      in-memory store, opts ignored
//	file:///absolute/path     file store rooted at the path
//	s3://bucket/key-prefix    s3 store, query params: region, endpoint,
//	                          force_path_style, algorithm
//	badger:///path/to/dir     badger store, query param: algorithm
func Open(ctx context.Context, uri string) (store.Store, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("registry: parse store uri %q: %w", uri, err)
	}

	switch u.Scheme {
	case "mem", "memory":
		return memory.New(), nil

	case "file":
		s, err := file.New(file.Config{
			Root:       u.Path,
			AutoCreate: true,
			Algorithm:  algorithmParam(u),
		})
		if err != nil {
			return nil, err
		}
		if err := s.Start(ctx); err != nil {
			return nil, err
		}
		return s, nil

	case "s3":
		cfg := s3.Config{
			Bucket:         u.Host,
			KeyPrefix:      strings.TrimPrefix(u.Path, "/"),
			Region:         u.Query().Get("region"),
			Endpoint:       u.Query().Get("endpoint"),
			ForcePathStyle: boolParam(u, "force_path_style"),
			Algorithm:      algorithmParam(u),
		}
		return s3.NewFromConfig(ctx, cfg)

	case "badger":
		s, err := badger.New(badger.Config{
			Dir:       u.Path,
			Algorithm: algorithmParam(u),
		})
		if err != nil {
			return nil, err
		}
		if err := s.Start(ctx); err != nil {
			return nil, err
		}
		return s, nil

	default:
		return nil, fmt.Errorf("registry: unknown store scheme %q", u.Scheme)
	}
}

func algorithmParam(u *url.URL) multihash.Algorithm {
	return multihash.Algorithm(u.Query().Get("algorithm"))
}

func boolParam(u *url.URL, key string) bool {
	v, err := strconv.ParseBool(u.Query().Get(key))
	if err != nil {
		return false
	}
	return v
}
