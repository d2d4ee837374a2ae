// Package search implements hybrid retrieval over the law corpus: a BM25
// lexical provider and an embedding-based semantic provider, fused by
// weighted min-max scoring.
package search

import "github.com/yeonlab/lawsearch/internal/store"

// Mode selects which providers answer a query.
type Mode string

const (
	ModeHybrid   Mode = "hybrid"
	ModeLexical  Mode = "lexical"
	ModeSemantic Mode = "semantic"
)

// Valid reports whether the mode is one of the known values.
func (m Mode) Valid() bool {
	switch m {
	case ModeHybrid, ModeLexical, ModeSemantic:
		return true
	}
	return false
}

// Query is a single search request.
type Query struct {
	Text   string
	Mode   Mode
	Filter store.Filter
	TopK   int
}

// ProviderResult is one scored law id from a single provider.
type ProviderResult struct {
	ID    string
	Score float64
}

// Hit is one fused result. LexicalScore and SemanticScore are the
// per-provider contributions after normalization; zero when the provider
// did not return the id.
type Hit struct {
	LawID         string  `json:"law_id"`
	Score         float64 `json:"score"`
	LexicalScore  float64 `json:"lexical_score"`
	SemanticScore float64 `json:"semantic_score"`
}

// Result is a complete search response.
type Result struct {
	Hits []Hit `json:"hits"`
	Mode Mode  `json:"mode"`

	// Degraded is true when one provider failed and the results come from
	// the surviving provider alone.
	Degraded bool `json:"degraded"`
}
