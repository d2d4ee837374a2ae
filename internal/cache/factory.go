package cache

import (
	"context"
	"fmt"

	"github.com/yeonlab/lawsearch/internal/config"
	lserr "github.com/yeonlab/lawsearch/internal/errors"
)

// New creates the cache backend selected by the configuration.
func New(ctx context.Context, cfg config.CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case config.CacheBackendInMemory:
		return NewMemoryCache(), nil
	case config.CacheBackendNetworked:
		return NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.KeyPrefix)
	default:
		return nil, lserr.New(lserr.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown cache backend %q", cfg.Backend), nil)
	}
}
