package search

import "sort"

// FusionWeights are the per-provider fusion weights. They must sum to 1.0,
// enforced at config validation.
type FusionWeights struct {
	Lexical  float64
	Semantic float64
}

// DefaultWeights splits scoring evenly between providers.
var DefaultWeights = FusionWeights{Lexical: 0.5, Semantic: 0.5}

// Fuse combines the two provider lists into a single ranking.
//
// Lexical BM25 scores are unbounded, so they are min-max normalized to [0,1]
// per query before weighting; a single-item list normalizes to 1.0. Semantic
// scores are already bounded and pass through. An id present in only one
// list keeps its normalized score scaled by that provider's weight. Either
// list may be empty (provider failure or single-provider mode), which makes
// the other list pass through scaled by its weight alone only in hybrid
// mode; single-provider modes use weight 1.0 at the call site.
func Fuse(lexical, semantic []ProviderResult, weights FusionWeights) []Hit {
	lexNorm := normalizeMinMax(dedupeMax(lexical))
	semNorm := dedupeMax(semantic)

	hits := make(map[string]*Hit, len(lexNorm)+len(semNorm))
	for id, score := range lexNorm {
		hits[id] = &Hit{LawID: id, LexicalScore: score}
	}
	for id, score := range semNorm {
		h, ok := hits[id]
		if !ok {
			h = &Hit{LawID: id}
			hits[id] = h
		}
		h.SemanticScore = score
	}

	out := make([]Hit, 0, len(hits))
	for _, h := range hits {
		h.Score = clamp01(weights.Lexical*h.LexicalScore + weights.Semantic*h.SemanticScore)
		out = append(out, *h)
	}
	sortHits(out)
	return out
}

// PassThrough converts a single provider's results directly into hits,
// normalizing lexical scores. Used for the lexical and semantic modes.
func PassThrough(results []ProviderResult, mode Mode) []Hit {
	deduped := dedupeMax(results)

	var out []Hit
	switch mode {
	case ModeLexical:
		for id, score := range normalizeMinMax(deduped) {
			out = append(out, Hit{LawID: id, Score: score, LexicalScore: score})
		}
	default:
		for id, score := range deduped {
			out = append(out, Hit{LawID: id, Score: clamp01(score), SemanticScore: score})
		}
	}
	sortHits(out)
	return out
}

// dedupeMax collapses duplicate ids, keeping the maximum score.
func dedupeMax(results []ProviderResult) map[string]float64 {
	m := make(map[string]float64, len(results))
	for _, r := range results {
		if cur, ok := m[r.ID]; !ok || r.Score > cur {
			m[r.ID] = r.Score
		}
	}
	return m
}

// normalizeMinMax rescales scores to [0,1]. A degenerate range (single item
// or all scores equal) maps everything to 1.0.
func normalizeMinMax(scores map[string]float64) map[string]float64 {
	if len(scores) == 0 {
		return scores
	}

	first := true
	var min, max float64
	for _, s := range scores {
		if first {
			min, max = s, s
			first = false
			continue
		}
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}

	out := make(map[string]float64, len(scores))
	if max == min {
		for id := range scores {
			out[id] = 1.0
		}
		return out
	}
	for id, s := range scores {
		out[id] = (s - min) / (max - min)
	}
	return out
}

// sortHits orders by descending fused score, ascending law id on ties.
func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].LawID < hits[j].LawID
	})
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Reranker optionally reorders fused hits. The contract for a real model is
// undefined upstream, so the default implementation returns hits unchanged.
type Reranker interface {
	Rerank(query string, hits []Hit) []Hit
}

// NoopReranker leaves the fused order untouched.
type NoopReranker struct{}

func (NoopReranker) Rerank(query string, hits []Hit) []Hit {
	return hits
}
