package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	lserr "github.com/yeonlab/lawsearch/internal/errors"
)

// scopeSetTTL bounds how long a scope's key set outlives its entries. Set
// comfortably above the longest entry TTL so invalidation never misses a
// live key.
const scopeSetTTL = 48 * time.Hour

// RedisCache is the networked cache backend. Each scope maintains a redis
// SET of the keys tagged with it, which Invalidate drains.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to redis and verifies the connection.
func NewRedisCache(ctx context.Context, addr, password string, db int, prefix string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, lserr.New(lserr.ErrCodeStoreUnavailable, "redis ping failed", err)
	}
	return &RedisCache{client: client, prefix: prefix}, nil
}

func (c *RedisCache) entryKey(key string) string {
	return c.prefix + ":entry:" + key
}

func (c *RedisCache) scopeKey(scope string) string {
	return c.prefix + ":scope:" + scope
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.entryKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, lserr.New(lserr.ErrCodeStoreUnavailable, "redis get failed", err)
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration, scopes []string) error {
	if ttl <= 0 {
		return nil
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, c.entryKey(key), val, ttl)
	for _, scope := range scopes {
		sk := c.scopeKey(scope)
		pipe.SAdd(ctx, sk, c.entryKey(key))
		pipe.Expire(ctx, sk, scopeSetTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return lserr.New(lserr.ErrCodeStoreUnavailable, "redis set failed", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, scopes ...string) error {
	for _, scope := range scopes {
		sk := c.scopeKey(scope)
		keys, err := c.client.SMembers(ctx, sk).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return lserr.New(lserr.ErrCodeStoreUnavailable, "redis scope read failed", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return lserr.New(lserr.ErrCodeStoreUnavailable, "redis invalidate failed", err)
			}
		}
		if err := c.client.Del(ctx, sk).Err(); err != nil {
			return lserr.New(lserr.ErrCodeStoreUnavailable, "redis scope delete failed", err)
		}
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

var _ Cache = (*RedisCache)(nil)
