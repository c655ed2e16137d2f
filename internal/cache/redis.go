package cache

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// redisCache keeps each operation on a short leash so a slow Redis never
// stalls a detection cycle; a miss is always an acceptable answer.
type redisCache struct {
	r *redis.Client
}

const redisOpTimeout = 500 * time.Millisecond

func newRedis(addr string) Cache {
	return &redisCache{r: redis.NewClient(&redis.Options{Addr: addr})}
}

func (c *redisCache) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	v, err := c.r.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return v, true
}

func (c *redisCache) Set(key string, val []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	_ = c.r.Set(ctx, key, val, ttl).Err()
}
