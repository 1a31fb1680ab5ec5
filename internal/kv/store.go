// Package kv holds the external key-value store the session state is mirrored into.
package kv

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get and Delete for keys the store does not hold
var ErrKeyNotFound = errors.New("key not found")

// Store is a flat string key-value store with no transactions or batch operations
type Store interface {
	Keys(ctx context.Context) ([]string, error)
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}
