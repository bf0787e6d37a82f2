// Package cache provides the settlement snapshot cache: a string-keyed
// store with TTL, either in-process (LRU) or shared (Redis).
package cache

import "context"

// Store is the snapshot cache contract. Implementations are safe for
// concurrent use; a miss is never an error.
type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
