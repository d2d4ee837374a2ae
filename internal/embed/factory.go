package embed

import (
	"fmt"

	"github.com/yeonlab/lawsearch/internal/config"
	lserr "github.com/yeonlab/lawsearch/internal/errors"
)

// New creates the configured embedding provider wrapped in the query cache.
func New(cfg config.EmbedConfig) (Embedder, error) {
	var inner Embedder
	switch cfg.Provider {
	case "openai":
		e, err := NewOpenAIEmbedder(cfg.APIKey, cfg.Model, cfg.Dimensions)
		if err != nil {
			return nil, err
		}
		inner = e
	case "static", "":
		inner = NewStaticEmbedder()
	default:
		return nil, lserr.New(lserr.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown embed provider %q", cfg.Provider), nil)
	}
	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}
