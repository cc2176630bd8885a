package catalogsvc

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/library"
)

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := NewRedisClient(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	cache := NewRedisCache(rdb)
	ctx := context.Background()

	// miss
	results, found, err := cache.Get(ctx, "catalog:search:5:achebe")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, results)

	want := []library.CatalogResult{{ExternalKey: "/works/OL1W", Title: "Things Fall Apart", Pages: 209}}
	require.NoError(t, cache.Set(ctx, "catalog:search:5:achebe", want, time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("catalog:search:5:achebe"))

	results, found, err = cache.Get(ctx, "catalog:search:5:achebe")
	if assert.NoError(t, err) {
		assert.True(t, found)
		assert.Equal(t, want, results)
	}

	mr.FastForward(2 * time.Minute)
	_, found, err = cache.Get(ctx, "catalog:search:5:achebe")
	assert.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, mr.Set("catalog:search:5:broken", "{not json"))
	_, found, err = cache.Get(ctx, "catalog:search:5:broken")
	assert.Error(t, err)
	assert.False(t, found)
}

func TestRedisCache_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := NewRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}))
	mr.Close()

	_, found, err := cache.Get(context.Background(), "catalog:search:5:achebe")
	assert.Error(t, err)
	assert.False(t, found)
	assert.Error(t, cache.Set(context.Background(), "catalog:search:5:achebe", nil, time.Minute))
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedisClient(ctx, addr, "", 0)
	assert.Error(t, err)
}

func TestNoopCache(t *testing.T) {
	cache := new(NoopCache)
	assert.NoError(t, cache.Set(context.Background(), "k", []library.CatalogResult{{Title: "x"}}, time.Minute))
	_, found, err := cache.Get(context.Background(), "k")
	assert.NoError(t, err)
	assert.False(t, found)
}
