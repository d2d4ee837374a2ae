// Package service composes the search engine, canonical store, result
// cache, and scheduler behind the operations the CLI and server expose.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/yeonlab/lawsearch/internal/cache"
	"github.com/yeonlab/lawsearch/internal/config"
	lserr "github.com/yeonlab/lawsearch/internal/errors"
	"github.com/yeonlab/lawsearch/internal/ingest"
	"github.com/yeonlab/lawsearch/internal/sched"
	"github.com/yeonlab/lawsearch/internal/search"
	"github.com/yeonlab/lawsearch/internal/store"
)

// SearchResponse is a search result plus cache provenance.
type SearchResponse struct {
	*search.Result
	CacheHit bool `json:"cache_hit"`
}

// Detail is a law document with its articles.
type Detail struct {
	Law      *store.LawDocument `json:"law"`
	Articles []*store.Article   `json:"articles,omitempty"`
}

// ArticleHit is one article-level semantic match with its hydrated content.
type ArticleHit struct {
	Article *store.Article `json:"article"`
	Score   float64        `json:"score"`
}

// Service is the application facade over search, detail lookup, and
// ingestion control.
type Service struct {
	engine    *search.Engine
	semantic  *search.SemanticProvider
	store     store.CanonicalStore
	cache     cache.Cache
	scheduler *sched.Scheduler
	logger    *slog.Logger

	searchTTL   time.Duration
	detailTTL   time.Duration
	defaultTopK int
	maxTopK     int
}

// New wires a Service from already-constructed components.
func New(
	engine *search.Engine,
	semantic *search.SemanticProvider,
	canonical store.CanonicalStore,
	resultCache cache.Cache,
	scheduler *sched.Scheduler,
	cfg *config.Config,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		engine:      engine,
		semantic:    semantic,
		store:       canonical,
		cache:       resultCache,
		scheduler:   scheduler,
		logger:      logger,
		searchTTL:   cfg.Cache.SearchTTL,
		detailTTL:   cfg.Cache.DetailTTL,
		defaultTopK: cfg.Search.DefaultTopK,
		maxTopK:     cfg.Search.MaxTopK,
	}
}

// Search answers a query through the cache. Identical queries within the
// search TTL are served from the cache; entries are scoped to the law ids
// they contain, so republishing any of those laws evicts them.
func (s *Service) Search(ctx context.Context, q search.Query) (*SearchResponse, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return nil, lserr.New(lserr.ErrCodeQueryEmpty, "search query is empty", nil)
	}
	if q.Mode == "" {
		q.Mode = search.ModeHybrid
	}
	if !q.Mode.Valid() {
		return nil, lserr.Validation("unknown search mode " + string(q.Mode))
	}
	if q.TopK <= 0 {
		q.TopK = s.defaultTopK
	}
	if q.TopK > s.maxTopK {
		q.TopK = s.maxTopK
	}

	key := cache.Key("search", q.Text, string(q.Mode), filterValues(q.Filter), q.TopK)
	if data, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("cache read failed", slog.String("error", err.Error()))
	} else if ok {
		var result search.Result
		if err := json.Unmarshal(data, &result); err == nil {
			return &SearchResponse{Result: &result, CacheHit: true}, nil
		}
		s.logger.Warn("dropping undecodable cache entry", slog.String("key", key))
	}

	result, err := s.engine.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	// Degraded results are served but never cached, so a recovered
	// provider is visible on the next identical query.
	if !result.Degraded {
		if data, err := json.Marshal(result); err == nil {
			scopes := make([]string, 0, len(result.Hits))
			for _, hit := range result.Hits {
				scopes = append(scopes, hit.LawID)
			}
			if err := s.cache.Set(ctx, key, data, s.searchTTL, scopes); err != nil {
				s.logger.Warn("cache write failed", slog.String("error", err.Error()))
			}
		}
	}
	return &SearchResponse{Result: result, CacheHit: false}, nil
}

// GetDetail returns a published law, optionally with articles and composed
// full text. Cached under the detail TTL, scoped to the law id.
func (s *Service) GetDetail(ctx context.Context, lawID string, includeArticles, includeFullText bool) (*Detail, error) {
	lawID = strings.TrimSpace(lawID)
	if lawID == "" {
		return nil, lserr.Validation("law id is empty")
	}

	mode := "detail"
	if includeArticles {
		mode += "+articles"
	}
	if includeFullText {
		mode += "+fulltext"
	}
	key := cache.Key("detail", lawID, mode, nil, 0)
	if data, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("cache read failed", slog.String("error", err.Error()))
	} else if ok {
		var detail Detail
		if err := json.Unmarshal(data, &detail); err == nil {
			return &detail, nil
		}
	}

	law, err := s.store.GetLaw(ctx, lawID)
	if err != nil {
		return nil, err
	}
	if !includeFullText {
		law.FullText = ""
	}

	detail := &Detail{Law: law}
	if includeArticles {
		articles, err := s.store.ListArticles(ctx, lawID)
		if err != nil {
			return nil, err
		}
		detail.Articles = articles
	}

	if data, err := json.Marshal(detail); err == nil {
		if err := s.cache.Set(ctx, key, data, s.detailTTL, []string{lawID}); err != nil {
			s.logger.Warn("cache write failed", slog.String("error", err.Error()))
		}
	}
	return detail, nil
}

// SearchArticles finds the provisions of one law closest to the query and
// hydrates their text from the canonical store.
func (s *Service) SearchArticles(ctx context.Context, lawID, query string, topK int) ([]ArticleHit, error) {
	lawID = strings.TrimSpace(lawID)
	if lawID == "" {
		return nil, lserr.Validation("law id is empty")
	}
	if strings.TrimSpace(query) == "" {
		return nil, lserr.New(lserr.ErrCodeQueryEmpty, "search query is empty", nil)
	}
	if topK <= 0 {
		topK = s.defaultTopK
	}
	if topK > s.maxTopK {
		topK = s.maxTopK
	}

	articles, err := s.store.ListArticles(ctx, lawID)
	if err != nil {
		return nil, err
	}
	byVectorID := make(map[string]*store.Article, len(articles))
	for _, art := range articles {
		byVectorID[art.VectorID] = art
	}

	results, err := s.semantic.SearchArticles(ctx, lawID, query, topK)
	if err != nil {
		return nil, err
	}

	hits := make([]ArticleHit, 0, len(results))
	for _, r := range results {
		art, ok := byVectorID[r.ID]
		if !ok {
			// Vector not yet reconciled with the published article set.
			continue
		}
		hits = append(hits, ArticleHit{Article: art, Score: r.Score})
	}
	return hits, nil
}

// TriggerIngestion starts a collection run for the seed query (or the
// configured seeds when empty) and returns the job snapshot. A run already
// in flight yields a Skipped job.
func (s *Service) TriggerIngestion(ctx context.Context, seed string) *ingest.Job {
	return s.scheduler.Trigger(ctx, seed).Snapshot()
}

// JobHistory returns snapshots of recent collection jobs.
func (s *Service) JobHistory() []*ingest.Job {
	return s.scheduler.History()
}

// filterValues flattens a store filter into the cache key fields. Empty
// values are dropped by the key builder.
func filterValues(f store.Filter) map[string]string {
	if f.Empty() {
		return nil
	}
	return map[string]string{
		"department":   f.Department,
		"law_type":     f.LawType,
		"status":       f.Status,
		"enforce_from": f.EnforceFrom,
		"enforce_to":   f.EnforceTo,
		"law_id":       f.LawID,
	}
}
