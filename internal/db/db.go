// Package db defines the key-value store contract used for caching. The only
// consumer today is the query-embedding cache; keep the surface narrow.
package db

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for store operations.
var ErrKeyNotFound = errors.New("db: key not found")

// Store provides key-value operations with expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close()
}

// Error wraps an underlying error with the command name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
