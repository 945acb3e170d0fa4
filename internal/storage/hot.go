// Package storage holds the hot (low-latency object) and cold
// (archival) storage clients used by the pipeline workers.
package storage

import (
	"context"
	"io"
)

// ObjectStore is the hot tier: active inputs and results, addressed by
// bucket and key.
type ObjectStore interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64) error
	DeleteObject(ctx context.Context, bucket, key string) error
}
