package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-scoring-engine/internal/observability"
	"github.com/noah-isme/gema-scoring-engine/internal/scoring"
)

const keyPrefix = "scoring:result:"

// ResultCache stores integrated results keyed by request content. A nil client disables it.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewResultCache wraps client. client may be nil.
func NewResultCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *ResultCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ResultCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "result_cache").Logger(),
	}
}

// Enabled reports whether a backing client is configured.
func (c *ResultCache) Enabled() bool {
	return c != nil && c.client != nil
}

// Key derives the cache key of one scoring request. variant separates results produced by
// different scoring paths for the same input.
func Key(variant, answer string, question scoring.QuestionData) string {
	payload, _ := json.Marshal(struct {
		Variant  string               `json:"variant"`
		Answer   string               `json:"answer"`
		Question scoring.QuestionData `json:"question"`
	}{variant, answer, question})
	sum := sha256.Sum256(payload)
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached result for key. Read errors count as a miss.
func (c *ResultCache) Get(ctx context.Context, key string) (scoring.IntegratedResult, bool) {
	if !c.Enabled() {
		return scoring.IntegratedResult{}, false
	}

	cached, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			observability.ResultCache().WithLabelValues("error").Inc()
			c.logger.Warn().Err(err).Msg("failed to read result cache")
			return scoring.IntegratedResult{}, false
		}
		observability.ResultCache().WithLabelValues("miss").Inc()
		return scoring.IntegratedResult{}, false
	}

	var result scoring.IntegratedResult
	if err := json.Unmarshal(cached, &result); err != nil {
		observability.ResultCache().WithLabelValues("error").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		return scoring.IntegratedResult{}, false
	}
	observability.ResultCache().WithLabelValues("hit").Inc()
	return result, true
}

// Set stores result under key. Degraded results are never stored.
func (c *ResultCache) Set(ctx context.Context, key string, result scoring.IntegratedResult) {
	if !c.Enabled() {
		return
	}
	if result.Degraded() {
		observability.ResultCache().WithLabelValues("skip").Inc()
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to encode result for cache")
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		observability.ResultCache().WithLabelValues("error").Inc()
		c.logger.Warn().Err(err).Msg("failed to store result cache")
		return
	}
	observability.ResultCache().WithLabelValues("store").Inc()
}
