package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL applied to every derivative entry. Expiry is the only invalidation
// path; an expired derivative is simply recomputed on the next request.
const TTL = 7 * 24 * time.Hour

// ErrMiss is returned by Get when no entry exists for the key.
var ErrMiss = errors.New("cache miss")

// Cache stores encoded derivatives in Redis under a namespace prefix.
type Cache struct {
	Redis     redis.UniversalClient
	Namespace string
}

func New(namespace string, redisCl redis.UniversalClient) *Cache {
	return &Cache{
		Namespace: namespace,
		Redis:     redisCl,
	}
}

// Get returns the cached derivative bytes for key, or ErrMiss. Backing
// store failures are reported as-is; callers are expected to degrade them
// to a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.Redis.Get(ctx, c.Namespace+":"+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, err
	}
	return b, nil
}

// Store writes the derivative bytes under key with the fixed TTL.
// Overwriting an existing entry is allowed and simply replaces it.
func (c *Cache) Store(ctx context.Context, key string, value []byte) error {
	return c.Redis.Set(ctx, c.Namespace+":"+key, value, TTL).Err()
}
