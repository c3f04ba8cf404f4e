package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b2bmarket/internal/models"
)

type fakeRedis struct {
	data   map[string]string
	ttl    time.Duration
	getErr error
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx, "get", key)
	if f.getErr != nil {
		cmd.SetErr(f.getErr)
		return cmd
	}
	v, ok := f.data[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(v)
	return cmd
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.data[key] = string(value.([]byte))
	f.ttl = ttl
	cmd := redis.NewStatusCmd(ctx, "set", key)
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.data, k)
	}
	cmd := redis.NewIntCmd(ctx, "del")
	cmd.SetVal(int64(len(keys)))
	return cmd
}

func TestRedisCategoryTreeRoundTrip(t *testing.T) {
	rdb := &fakeRedis{data: map[string]string{}}
	c := NewRedisCategoryTree(rdb, 10*time.Minute)
	ctx := context.Background()

	_, hit := c.Get(ctx)
	assert.False(t, hit)

	c.Set(ctx, []models.Category{{CategoryID: 1, Name: "Steel", Slug: "steel", Subcategories: []models.Subcategory{{SubcategoryID: 1, Name: "TMT"}}}})
	assert.Equal(t, 10*time.Minute, rdb.ttl)

	tree, hit := c.Get(ctx)
	require.True(t, hit)
	require.Len(t, tree, 1)
	assert.Equal(t, "steel", tree[0].Slug)
	require.Len(t, tree[0].Subcategories, 1)
	assert.Equal(t, "TMT", tree[0].Subcategories[0].Name)

	c.Invalidate(ctx)
	_, hit = c.Get(ctx)
	assert.False(t, hit)
}

func TestRedisCategoryTreeErrorsAreMisses(t *testing.T) {
	rdb := &fakeRedis{data: map[string]string{keyCategoryTree: "{not json"}}
	c := NewRedisCategoryTree(rdb, time.Minute)

	_, hit := c.Get(context.Background())
	assert.False(t, hit)

	rdb.getErr = errors.New("connection refused")
	_, hit = c.Get(context.Background())
	assert.False(t, hit)
}
