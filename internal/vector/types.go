// Package vector provides the pluggable similarity-search backend over
// article embeddings. All backends expose identical semantics: cosine
// similarity scores in [0,1], deterministic ascending-id tie-break, and
// metadata filtering with pushdown where the backend supports it.
package vector

import (
	"context"
	"fmt"
	"sort"

	"github.com/yeonlab/lawsearch/internal/store"
)

// Metadata is the filterable payload stored with each vector.
type Metadata struct {
	LawID       string
	ArticleNo   string
	Department  string
	LawType     string
	Status      string
	EnforceDate string // yyyymmdd
}

// Matches reports whether the metadata satisfies the filter.
// Used for post-query filtering when a backend cannot push a condition down.
func (m Metadata) Matches(f store.Filter) bool {
	if f.LawID != "" && m.LawID != f.LawID {
		return false
	}
	if f.Department != "" && m.Department != f.Department {
		return false
	}
	if f.LawType != "" && m.LawType != f.LawType {
		return false
	}
	if f.Status != "" && m.Status != f.Status {
		return false
	}
	// yyyymmdd strings compare correctly lexicographically.
	if f.EnforceFrom != "" && m.EnforceDate < f.EnforceFrom {
		return false
	}
	if f.EnforceTo != "" && m.EnforceDate > f.EnforceTo {
		return false
	}
	return true
}

// Result is a single similarity hit.
type Result struct {
	ID       string
	Score    float64 // cosine similarity mapped to [0,1]
	Metadata Metadata
}

// Store is the vector similarity backend contract.
type Store interface {
	// Upsert inserts or replaces the vector for id.
	Upsert(ctx context.Context, id string, vec []float32, meta Metadata) error

	// Query returns up to topK nearest neighbours of vec matching the
	// filter, ranked by descending similarity with ascending-id tie-break.
	Query(ctx context.Context, vec []float32, topK int, filter store.Filter) ([]Result, error)

	// Delete removes the vector for id. Deleting an unknown id is a no-op.
	Delete(ctx context.Context, id string) error

	// Count returns the number of stored vectors.
	Count() int

	// Close releases backend resources.
	Close() error
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// sortResults orders results by descending score, ascending id on ties.
func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}
