package search

import (
	"context"

	"github.com/yeonlab/lawsearch/internal/embed"
	lserr "github.com/yeonlab/lawsearch/internal/errors"
	"github.com/yeonlab/lawsearch/internal/store"
	"github.com/yeonlab/lawsearch/internal/vector"
)

// articleOverfetch widens the article-level vector query so that per-law
// aggregation still fills topK laws.
const articleOverfetch = 5

// SemanticProvider answers queries by embedding them and searching the
// article vector backend. Article hits aggregate to law level by maximum
// similarity.
type SemanticProvider struct {
	embedder embed.Embedder
	vectors  vector.Store
}

// NewSemanticProvider wires the embedder to the vector backend.
func NewSemanticProvider(embedder embed.Embedder, vectors vector.Store) *SemanticProvider {
	return &SemanticProvider{embedder: embedder, vectors: vectors}
}

// Search returns per-law semantic scores in [0,1].
func (p *SemanticProvider) Search(ctx context.Context, queryStr string, topK int, filter store.Filter) ([]ProviderResult, error) {
	if topK <= 0 {
		return []ProviderResult{}, nil
	}

	vec, err := p.embedder.Embed(ctx, queryStr)
	if err != nil {
		return nil, lserr.New(lserr.ErrCodeEmbeddingFailed, "embed query", err)
	}

	articleHits, err := p.vectors.Query(ctx, vec, topK*articleOverfetch, filter)
	if err != nil {
		return nil, err
	}

	// Best article wins per law.
	best := make(map[string]float64, len(articleHits))
	for _, hit := range articleHits {
		lawID := hit.Metadata.LawID
		if lawID == "" {
			continue
		}
		if cur, ok := best[lawID]; !ok || hit.Score > cur {
			best[lawID] = hit.Score
		}
	}

	results := make([]ProviderResult, 0, len(best))
	for lawID, score := range best {
		results = append(results, ProviderResult{ID: lawID, Score: score})
	}
	if len(results) > topK {
		// Rank before trimming so the cut keeps the best laws.
		hits := PassThrough(results, ModeSemantic)
		results = results[:0]
		for _, h := range hits[:topK] {
			results = append(results, ProviderResult{ID: h.LawID, Score: h.Score})
		}
	}
	return results, nil
}

// SearchArticles returns article-level hits within a single law.
func (p *SemanticProvider) SearchArticles(ctx context.Context, lawID, queryStr string, topK int) ([]vector.Result, error) {
	if topK <= 0 {
		return []vector.Result{}, nil
	}

	vec, err := p.embedder.Embed(ctx, queryStr)
	if err != nil {
		return nil, lserr.New(lserr.ErrCodeEmbeddingFailed, "embed query", err)
	}
	return p.vectors.Query(ctx, vec, topK, store.Filter{LawID: lawID})
}
