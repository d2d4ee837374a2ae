package vector

import (
	"context"
	"fmt"

	"github.com/yeonlab/lawsearch/internal/config"
	lserr "github.com/yeonlab/lawsearch/internal/errors"
)

// New creates the vector backend selected by the configuration. The backend
// set is closed: an unknown type is a configuration error, never a silent
// fallback.
func New(ctx context.Context, cfg config.VectorConfig) (Store, error) {
	switch cfg.Backend {
	case config.VectorBackendInMemory:
		return NewHNSWStore(cfg.Dimensions)
	case config.VectorBackendOnDisk:
		return NewDiskStore(cfg.Path, cfg.Dimensions)
	case config.VectorBackendNetworked:
		addr := fmt.Sprintf("%s:%d", cfg.QdrantHost, cfg.QdrantPort)
		return NewQdrantStore(ctx, addr, cfg.QdrantCollection, cfg.Dimensions)
	default:
		return nil, lserr.New(lserr.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown vector backend %q", cfg.Backend), nil)
	}
}
