// Package cache provides the byte cache used for market data responses.
// The in-memory store is the default; a Redis backend is selected when
// REDIS_ADDR is set, so multiple instances can share fetched klines.
package cache

import (
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, val []byte, ttl time.Duration)
}

// NewAuto picks the Redis backend when REDIS_ADDR is set, in-memory
// otherwise.
func NewAuto() Cache {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		log.Info().Str("addr", addr).Msg("using redis cache")
		return newRedis(addr)
	}
	return NewMemory()
}
