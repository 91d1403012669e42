package cache

import (
	"context"
	"time"
)

// Entry is one cached value. A zero ExpiresAt never expires.
type Entry struct {
	Key       string
	Value     []byte
	ExpiresAt time.Time
}

// Expired reports whether the entry is logically absent at now.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Key joins a namespace and identifier into a cache key.
func Key(namespace, id string) string {
	return namespace + ":" + id
}

// FastCache is the in-process tier. Implementations never block on I/O.
type FastCache interface {
	Get(key string) (Entry, bool)
	Set(entry Entry)
	Delete(key string)
	DeleteExpired(now time.Time) int
	Clear()
	Len() int
}

// DurableCache is the persistent tier.
type DurableCache interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	Clear(ctx context.Context) error
	Close() error
}
