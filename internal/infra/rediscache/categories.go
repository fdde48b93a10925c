package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dvloznov/fraud-scoring/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	keyPrefix = "category:"
	codesKey  = keyPrefix + "codes"

	// DefaultTTL is used when no positive TTL is configured.
	DefaultTTL = time.Hour
)

// cachedCode is the stored form of one lookup. Misses are cached too so an
// unknown label does not reach the ledger on every transaction.
type cachedCode struct {
	Code  string `json:"code"`
	Found bool   `json:"found"`
}

// CategoryCache is a read-through Redis cache in front of a CategoryLookup.
// Redis failures fall back to the wrapped lookup.
type CategoryCache struct {
	next   domain.CategoryLookup
	client redis.UniversalClient
	ttl    time.Duration
	log    zerolog.Logger
}

var _ domain.CategoryLookup = (*CategoryCache)(nil)

// NewCategoryCache wraps next with a cache entry lifetime of ttl.
func NewCategoryCache(client redis.UniversalClient, next domain.CategoryLookup, ttl time.Duration, log zerolog.Logger) *CategoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CategoryCache{
		next:   next,
		client: client,
		ttl:    ttl,
		log:    log.With().Str("component", "category_cache").Logger(),
	}
}

func lookupKey(name string) string {
	return keyPrefix + "mcc:" + name
}

// LookupMCCCode returns the cached code, reading through on a miss.
func (c *CategoryCache) LookupMCCCode(ctx context.Context, name string) (string, bool, error) {
	key := lookupKey(name)

	var cached cachedCode
	status, err := c.get(ctx, key, &cached)
	if status == "HIT" {
		return cached.Code, cached.Found, nil
	}
	if err != nil {
		c.log.Debug().Err(err).Str("status", status).Str("key", key).Msg("Category cache read failed")
	}

	code, found, err := c.next.LookupMCCCode(ctx, name)
	if err != nil {
		return "", false, err
	}
	c.set(ctx, key, cachedCode{Code: code, Found: found})
	return code, found, nil
}

// ListCategoryCodes returns the cached table, reading through on a miss.
func (c *CategoryCache) ListCategoryCodes(ctx context.Context) ([]domain.CategoryCode, error) {
	var cached []domain.CategoryCode
	status, err := c.get(ctx, codesKey, &cached)
	if status == "HIT" {
		return cached, nil
	}
	if err != nil {
		c.log.Debug().Err(err).Str("status", status).Str("key", codesKey).Msg("Category cache read failed")
	}

	codes, err := c.next.ListCategoryCodes(ctx)
	if err != nil {
		return nil, err
	}
	c.set(ctx, codesKey, codes)
	return codes, nil
}

// Invalidate drops every cached category entry. Call it after the
// category table changes.
func (c *CategoryCache) Invalidate(ctx context.Context) error {
	var keys []string
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("Invalidate: scanning keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("Invalidate: deleting keys: %w", err)
	}
	return nil
}

// get reports HIT, MISS, REDIS_ISSUE or UNMARSHAL_ISSUE.
func (c *CategoryCache) get(ctx context.Context, key string, dst any) (string, error) {
	value, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "MISS", nil
	} else if err != nil {
		return "REDIS_ISSUE", err
	}
	if err := json.Unmarshal([]byte(value), dst); err != nil {
		return "UNMARSHAL_ISSUE", err
	}
	return "HIT", nil
}

func (c *CategoryCache) set(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.log.Debug().Err(err).Str("key", key).Msg("Category cache marshal failed")
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Debug().Err(err).Str("key", key).Msg("Category cache write failed")
	}
}
