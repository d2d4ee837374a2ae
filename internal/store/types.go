// Package store provides the canonical persistence layer for laws and
// articles, backed by SQLite. Documents follow a stage-then-flip discipline:
// articles are written to a staging area and become externally visible only
// when the whole document is published.
package store

import (
	"context"
	"time"
)

// Law status values as reported by the upstream source.
const (
	StatusActive   = "현행"
	StatusRepealed = "폐지"
)

// LawDocument is a statutory document owned by the canonical store.
// Mutated only by the ingestion pipeline.
type LawDocument struct {
	LawID          string // unique upstream identifier
	Serial         string // upstream serial number (MST)
	Name           string
	Abbreviation   string
	Department     string // issuing department
	LawType        string // 법률, 대통령령, ...
	Status         string // active/repealed
	EnforceDate    string // yyyymmdd
	PromulgateDate string // yyyymmdd
	DetailLink     string
	FullText       string // optional composed full text

	Visible   bool // false while staged, true once published
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Article is a single provision of a law. Unique per (LawID, ArticleNo).
type Article struct {
	LawID     string
	ArticleNo string
	Title     string
	Content   string
	VectorID  string // id of the article embedding in the vector backend
}

// Filter restricts law queries. Zero values mean "no restriction".
type Filter struct {
	Department  string
	LawType     string
	Status      string
	EnforceFrom string // yyyymmdd inclusive
	EnforceTo   string // yyyymmdd inclusive
	LawID       string // restrict to a single law
}

// Empty reports whether the filter imposes no restriction.
func (f Filter) Empty() bool {
	return f == Filter{}
}

// CanonicalStore is the authoritative structured store of laws and articles.
//
// Reads (GetLaw, QueryLaws, ListArticles) only ever observe published
// documents. StageArticles and PublishLaw implement the two phases of
// ingestion writes.
type CanonicalStore interface {
	// UpsertLaw inserts or updates a law's metadata. A new law starts
	// invisible; an update preserves current visibility.
	UpsertLaw(ctx context.Context, law *LawDocument) error

	// GetLaw returns a published law by id, or a not-found error.
	GetLaw(ctx context.Context, lawID string) (*LawDocument, error)

	// QueryLaws returns published laws matching the filter.
	QueryLaws(ctx context.Context, filter Filter, limit int) ([]*LawDocument, error)

	// ListArticles returns the published articles of a law in article order.
	ListArticles(ctx context.Context, lawID string) ([]*Article, error)

	// StageArticles replaces the staged article set for a law. Staged
	// articles are not observable through read operations.
	StageArticles(ctx context.Context, lawID string, articles []*Article) error

	// PublishLaw atomically swaps a law's live article set for its staged
	// set and marks the document visible.
	PublishLaw(ctx context.Context, lawID string) error

	// VisibleLawIDs returns the ids of all published laws.
	VisibleLawIDs(ctx context.Context) ([]string, error)

	// Close releases the underlying database.
	Close() error
}
