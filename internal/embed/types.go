// Package embed generates vector embeddings for Korean legal text. The
// openai provider calls the embeddings API; the static provider is a
// deterministic hash-based fallback that works offline.
package embed

import (
	"context"
	"math"
)

// Default embedding parameters.
const (
	// DefaultCacheSize is the default query-embedding LRU size.
	DefaultCacheSize = 1000

	// StaticDimensions is the dimension of the static hash embedder.
	StaticDimensions = 256

	// maxBatchSize bounds a single embeddings API request.
	maxBatchSize = 256
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, index-aligned
	// with the input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Close releases resources.
	Close() error
}

// normalizeVector scales a vector to unit length.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
