package cachedsource

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/morningstar-transit/morningstar/pkg/realtime"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "morningstar:calls:"

// Source serves vehicle calls out of Redis for TTL before asking the
// wrapped source again. Cache failures fall through to the wrapped source.
type Source struct {
	Source realtime.Source
	TTL    time.Duration

	Cache *cache.Cache[string]
}

func New(client *redis.Client, source realtime.Source, ttl time.Duration) *Source {
	redisStore := redisstore.NewRedis(client, store.WithExpiration(ttl))

	return &Source{
		Source: source,
		TTL:    ttl,
		Cache:  cache.New[string](redisStore),
	}
}

func cacheKey(stopID string) string {
	return keyPrefix + stopID
}

func (s *Source) NextCalls(ctx context.Context, stopID string) ([]realtime.RealtimeStop, error) {
	key := cacheKey(stopID)

	if cached, err := s.Cache.Get(ctx, key); err == nil {
		var calls []realtime.RealtimeStop
		if err := json.Unmarshal([]byte(cached), &calls); err == nil {
			return calls, nil
		}
		log.Debug().Str("key", key).Msg("Discarding unreadable cached calls")
	}

	calls, err := s.Source.NextCalls(ctx, stopID)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(calls)
	if err != nil {
		return nil, fmt.Errorf("encoding calls for %s: %w", stopID, err)
	}

	if err := s.Cache.Set(ctx, key, string(encoded), store.WithExpiration(s.TTL)); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to cache vehicle calls")
	}

	return calls, nil
}
