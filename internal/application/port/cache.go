package port

import "context"

// Cache stores computed reliability reports between requests.
// Keys are built by the cache adapter; every report key shares one prefix so a new or
// closed downtime can drop them all with DeletePattern.
type Cache interface {
	// Get decodes the cached value into dest; a miss is an error.
	Get(ctx context.Context, key string, dest interface{}) error

	// Set stores value with the adapter's configured TTL.
	Set(ctx context.Context, key string, value interface{}) error

	Delete(ctx context.Context, key string) error

	// DeletePattern removes every key matching a glob such as "reliability:*".
	DeletePattern(ctx context.Context, pattern string) error

	Close() error
}
