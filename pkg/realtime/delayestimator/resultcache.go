package delayestimator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const resultCacheExpiration = 30 * time.Minute

// ResultCache keeps the latest estimation result of every journey in Redis
type ResultCache struct {
	cache *cache.Cache[string]
}

func NewResultCache(client *redis.Client) *ResultCache {
	redisStore := redisstore.NewRedis(client, store.WithExpiration(resultCacheExpiration))

	return &ResultCache{cache: cache.New[string](redisStore)}
}

func resultCacheKey(journeyID string) string {
	return fmt.Sprintf("delay_estimate:%s", journeyID)
}

func (c *ResultCache) Set(ctx context.Context, result *EstimationResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return c.cache.Set(ctx, resultCacheKey(result.JourneyRef), string(resultJSON))
}

// Get returns the latest cached result for the journey, or nil when none is cached
func (c *ResultCache) Get(ctx context.Context, journeyID string) (*EstimationResult, error) {
	cached, err := c.cache.Get(ctx, resultCacheKey(journeyID))
	if errors.Is(err, redis.Nil) || errors.Is(err, store.NotFound{}) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	var result *EstimationResult
	if err := json.Unmarshal([]byte(cached), &result); err != nil {
		return nil, fmt.Errorf("decode cached estimate of %s: %w", journeyID, err)
	}

	return result, nil
}

func (c *ResultCache) ObserveEstimation(ctx context.Context, result *EstimationResult) {
	if err := c.Set(ctx, result); err != nil {
		log.Error().Err(err).Str("journey", result.JourneyRef).Msg("Failed to cache delay estimate")
	}
}
