// Package kv holds the key-value backends the catalog persists its blob into.
package kv

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("kv store closed")

// Store keeps opaque values under string keys. Get reports ok=false for a
// missing key instead of an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}
