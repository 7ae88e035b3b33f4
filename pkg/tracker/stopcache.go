package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	cachestore "github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const stopCacheExpiration = 15 * time.Minute

// CachedStopCatalog keeps route stop sets in redis so the matcher does
// not hit the entity store on every report.
type CachedStopCatalog struct {
	inner StopCatalog
	cache *cache.Cache[string]
}

func NewCachedStopCatalog(inner StopCatalog, redisClient *redis.Client) *CachedStopCatalog {
	redisStore := redisstore.NewRedis(redisClient, cachestore.WithExpiration(stopCacheExpiration))

	return &CachedStopCatalog{
		inner: inner,
		cache: cache.New[string](redisStore),
	}
}

func (c *CachedStopCatalog) RouteStops(ctx context.Context, routeRef string) ([]StopCandidate, error) {
	cacheKey := fmt.Sprintf("route-stops/%s", routeRef)

	cachedCandidates, _ := c.cache.Get(ctx, cacheKey)
	if cachedCandidates != "" {
		var candidates []StopCandidate
		if err := json.Unmarshal([]byte(cachedCandidates), &candidates); err == nil {
			return candidates, nil
		}
	}

	candidates, err := c.inner.RouteStops(ctx, routeRef)
	if err != nil {
		return nil, err
	}

	candidatesJSON, _ := json.Marshal(candidates)
	if err := c.cache.Set(ctx, cacheKey, string(candidatesJSON)); err != nil {
		log.Debug().Err(err).Str("route", routeRef).Msg("Failed to cache route stops")
	}

	return candidates, nil
}
