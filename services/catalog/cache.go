package catalogsvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/darasa/core/library"
)

// Cache stores catalog search results.
type Cache interface {
	Get(ctx context.Context, key string) ([]library.CatalogResult, bool, error)
	Set(ctx context.Context, key string, results []library.CatalogResult, ttl time.Duration) error
}

type RedisCache struct {
	rdb redis.UniversalClient
}

var _ Cache = (*RedisCache)(nil)

func NewRedisCache(rdb redis.UniversalClient) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]library.CatalogResult, bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	} else if err != nil {
		return nil, false, errors.Wrap(err, "reading cache")
	}

	var results []library.CatalogResult
	if err = json.Unmarshal(data, &results); err != nil {
		return nil, false, errors.Wrap(err, "decoding cached results")
	}
	return results, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, results []library.CatalogResult, ttl time.Duration) error {
	data, err := json.Marshal(results)
	if err != nil {
		return errors.Wrap(err, "encoding results")
	}
	return errors.Wrap(c.rdb.Set(ctx, key, data, ttl).Err(), "writing cache")
}

// NoopCache never hits.
type NoopCache struct{}

var _ Cache = (*NoopCache)(nil)

func (*NoopCache) Get(context.Context, string) ([]library.CatalogResult, bool, error) {
	return nil, false, nil
}

func (*NoopCache) Set(context.Context, string, []library.CatalogResult, time.Duration) error {
	return nil
}

// NewRedisClient connects to redis at `addr`.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return rdb, nil
}
