package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"b2bmarket/internal/models"
)

const keyCategoryTree = "catalog:categories:all"

// CategoryTree caches the public category tree.
type CategoryTree interface {
	Get(ctx context.Context) ([]models.Category, bool)
	Set(ctx context.Context, tree []models.Category)
	Invalidate(ctx context.Context)
}

type cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisCategoryTree stores the tree as JSON. Errors degrade to a cache miss.
type RedisCategoryTree struct {
	rdb cmdable
	ttl time.Duration
}

func NewRedisCategoryTree(rdb cmdable, ttl time.Duration) *RedisCategoryTree {
	return &RedisCategoryTree{rdb: rdb, ttl: ttl}
}

func (c *RedisCategoryTree) Get(ctx context.Context) ([]models.Category, bool) {
	raw, err := c.rdb.Get(ctx, keyCategoryTree).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Msg("category cache read failed")
		}
		return nil, false
	}
	var tree []models.Category
	if err := json.Unmarshal(raw, &tree); err != nil {
		log.Warn().Err(err).Msg("category cache entry corrupt")
		return nil, false
	}
	return tree, true
}

func (c *RedisCategoryTree) Set(ctx context.Context, tree []models.Category) {
	raw, err := json.Marshal(tree)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, keyCategoryTree, raw, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("category cache write failed")
	}
}

func (c *RedisCategoryTree) Invalidate(ctx context.Context) {
	if err := c.rdb.Del(ctx, keyCategoryTree).Err(); err != nil {
		log.Warn().Err(err).Msg("category cache invalidate failed")
	}
}

// Noop never hits.
type Noop struct{}

func (Noop) Get(context.Context) ([]models.Category, bool) { return nil, false }
func (Noop) Set(context.Context, []models.Category)        {}
func (Noop) Invalidate(context.Context)                    {}
