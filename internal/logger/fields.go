package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging across every store backend
// and composite store. Use these keys consistently so log aggregation
// and querying stay uniform regardless of which backend emitted them.
const (
	// Distributed tracing, propagated through context.Context.
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Store identity and the operation being performed.
	KeyStore     = "store"     // named store identifier, from registry or config
	KeyBackend   = "backend"   // backend kind: memory, file, s3, badger, buffer, cache, replica, meter
	KeyOperation = "operation" // List, Stat, Get, Put, Delete, Erase
	KeyBlockID   = "block_id"  // hex-encoded multihash digest
	KeyAlgorithm = "algorithm" // multihash algorithm tag

	// Block shape and I/O volume.
	KeySize         = "size"
	KeyBytesRead    = "bytes_read"
	KeyBytesWritten = "bytes_written"

	// Cloud/embedded backend identity.
	KeyBucket = "bucket" // S3 bucket name
	KeyRegion = "region" // S3 region
	KeyDir    = "dir"    // badger/file root directory

	// Cache overlay state.
	KeyCacheHit      = "cache_hit"
	KeyCacheSize     = "cache_size"
	KeyCacheCapacity = "cache_capacity"
	KeyEvicted       = "evicted"

	// Listing.
	KeyCount = "count" // number of items in a List result

	// Operation outcome.
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeySource     = "source" // which inner store satisfied a composite read
)

// TraceID returns a slog.Attr for a trace ID.
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for a span ID.
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Store returns a slog.Attr for a named store identifier.
func Store(name string) slog.Attr {
	return slog.String(KeyStore, name)
}

// Backend returns a slog.Attr for a backend kind.
func Backend(kind string) slog.Attr {
	return slog.String(KeyBackend, kind)
}

// Operation returns a slog.Attr for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// BlockID returns a slog.Attr for a block id, formatted as its string form.
func BlockID(id fmt.Stringer) slog.Attr {
	return slog.String(KeyBlockID, id.String())
}

// BlockIDHex returns a slog.Attr for a block id already in hex form.
func BlockIDHex(hex string) slog.Attr {
	return slog.String(KeyBlockID, hex)
}

// Algorithm returns a slog.Attr for a multihash algorithm tag.
func Algorithm(algo string) slog.Attr {
	return slog.String(KeyAlgorithm, algo)
}

// Size returns a slog.Attr for a block's byte size.
func Size(n int64) slog.Attr {
	return slog.Int64(KeySize, n)
}

// BytesRead returns a slog.Attr for bytes read during an operation.
func BytesRead(n int) slog.Attr {
	return slog.Int(KeyBytesRead, n)
}

// BytesWritten returns a slog.Attr for bytes written during an operation.
func BytesWritten(n int) slog.Attr {
	return slog.Int(KeyBytesWritten, n)
}

// Bucket returns a slog.Attr for an S3 bucket name.
func Bucket(name string) slog.Attr {
	return slog.String(KeyBucket, name)
}

// Region returns a slog.Attr for an S3 region.
func Region(r string) slog.Attr {
	return slog.String(KeyRegion, r)
}

// Dir returns a slog.Attr for a backend's root directory.
func Dir(path string) slog.Attr {
	return slog.String(KeyDir, path)
}

// CacheHit returns a slog.Attr for a cache hit/miss indicator.
func CacheHit(hit bool) slog.Attr {
	return slog.Bool(KeyCacheHit, hit)
}

// CacheSize returns a slog.Attr for the current cache occupancy in bytes.
func CacheSize(size int64) slog.Attr {
	return slog.Int64(KeyCacheSize, size)
}

// CacheCapacity returns a slog.Attr for the cache's size limit in bytes.
func CacheCapacity(capacity int64) slog.Attr {
	return slog.Int64(KeyCacheCapacity, capacity)
}

// Evicted returns a slog.Attr for the number of blocks evicted.
func Evicted(n int) slog.Attr {
	return slog.Int(KeyEvicted, n)
}

// Count returns a slog.Attr for a list result's item count.
func Count(n int) slog.Attr {
	return slog.Int(KeyCount, n)
}

// DurationMs returns a slog.Attr for an operation's duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error, or a zero Attr for a nil error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Source returns a slog.Attr for which inner store satisfied a composite
// store's read (e.g. "cache" vs "primary").
func Source(src string) slog.Attr {
	return slog.String(KeySource, src)
}
