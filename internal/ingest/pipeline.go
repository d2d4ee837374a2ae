package ingest

import (
	"context"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/yeonlab/lawsearch/internal/cache"
	"github.com/yeonlab/lawsearch/internal/embed"
	lserr "github.com/yeonlab/lawsearch/internal/errors"
	"github.com/yeonlab/lawsearch/internal/search"
	"github.com/yeonlab/lawsearch/internal/store"
	"github.com/yeonlab/lawsearch/internal/vector"
)

// Fetcher is the upstream source contract the pipeline consumes.
type Fetcher interface {
	Search(ctx context.Context, query string, topK int) ([]*store.LawDocument, error)
	FetchDetail(ctx context.Context, lawID string, includeFullText bool) (*store.LawDocument, []*store.Article, error)
}

// Pipeline runs collection jobs: fetch, normalize, stage, embed, publish,
// invalidate. Item failures are recorded on the job; only a failed seed
// fetch fails the whole run.
type Pipeline struct {
	fetcher  Fetcher
	store    store.CanonicalStore
	vectors  vector.Store
	embedder embed.Embedder
	lexical  *search.LexicalProvider
	cache    cache.Cache
	workers  int
	logger   *slog.Logger
}

// NewPipeline wires the collection pipeline.
func NewPipeline(
	fetcher Fetcher,
	canonical store.CanonicalStore,
	vectors vector.Store,
	embedder embed.Embedder,
	lexical *search.LexicalProvider,
	resultCache cache.Cache,
	workers int,
	logger *slog.Logger,
) *Pipeline {
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		fetcher:  fetcher,
		store:    canonical,
		vectors:  vectors,
		embedder: embedder,
		lexical:  lexical,
		cache:    resultCache,
		workers:  workers,
		logger:   logger,
	}
}

// Run executes one collection job for the seed query. Cancellation is
// cooperative: the context is checked between laws, never mid-law, so a
// published document is always complete.
func (p *Pipeline) Run(ctx context.Context, job *Job, seed string, topK int) {
	job.Start()

	laws, err := p.fetcher.Search(ctx, seed, topK)
	if err != nil {
		p.logger.Error("seed fetch failed", slog.String("seed", seed), slog.String("error", err.Error()))
		job.Fail(err)
		return
	}

	for _, law := range dedupeByLawID(laws) {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("collection cancelled", slog.String("seed", seed),
				slog.Int("processed", job.Snapshot().Processed))
			job.Fail(lserr.New(lserr.ErrCodeIngestionFailed, "collection cancelled", err))
			return
		}

		if err := p.processLaw(ctx, law.LawID); err != nil {
			p.logger.Warn("law ingestion failed",
				slog.String("law_id", law.LawID), slog.String("error", err.Error()))
			job.RecordError(law.LawID, err)
			continue
		}
		job.RecordProcessed()
	}

	job.Finish()
	snap := job.Snapshot()
	p.logger.Info("collection finished",
		slog.String("seed", seed),
		slog.String("state", string(snap.State)),
		slog.Int("processed", snap.Processed),
		slog.Int("errors", len(snap.Errors)))
}

// processLaw ingests one law end to end. Order matters: articles and
// vectors are staged before PublishLaw flips visibility, so readers never
// observe a partial document.
func (p *Pipeline) processLaw(ctx context.Context, lawID string) error {
	law, articles, err := p.fetcher.FetchDetail(ctx, lawID, true)
	if err != nil {
		return err
	}

	if err := p.store.UpsertLaw(ctx, law); err != nil {
		return err
	}
	if err := p.store.StageArticles(ctx, lawID, articles); err != nil {
		return err
	}
	if err := p.embedArticles(ctx, law, articles); err != nil {
		return err
	}
	if err := p.store.PublishLaw(ctx, lawID); err != nil {
		return err
	}
	// Lexical indexing follows the visibility flip, so a searchable hit
	// always resolves through the canonical store.
	if err := p.lexical.IndexLaw(ctx, law, articles); err != nil {
		return err
	}

	// Published content changed; readers must not see stale results.
	if err := p.cache.Invalidate(ctx, lawID); err != nil {
		p.logger.Warn("cache invalidation failed", slog.String("law_id", lawID),
			slog.String("error", err.Error()))
	}
	return nil
}

// embedArticles computes and upserts article vectors on a worker pool.
func (p *Pipeline) embedArticles(ctx context.Context, law *store.LawDocument, articles []*store.Article) error {
	if len(articles) == 0 {
		return nil
	}

	pool, err := ants.NewPool(p.workers)
	if err != nil {
		return lserr.New(lserr.ErrCodeIngestionFailed, "create worker pool", err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	record := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for _, art := range articles {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()

			text := art.Title
			if text != "" {
				text += " "
			}
			text += art.Content

			vec, err := p.embedder.Embed(ctx, text)
			if err != nil {
				record(lserr.New(lserr.ErrCodeEmbeddingFailed, "embed article "+art.ArticleNo, err))
				return
			}
			meta := vector.Metadata{
				LawID:       law.LawID,
				ArticleNo:   art.ArticleNo,
				Department:  law.Department,
				LawType:     law.LawType,
				Status:      law.Status,
				EnforceDate: law.EnforceDate,
			}
			if err := p.vectors.Upsert(ctx, art.VectorID, vec, meta); err != nil {
				record(err)
			}
		})
		if submitErr != nil {
			wg.Done()
			record(lserr.New(lserr.ErrCodeIngestionFailed, "submit embed task", submitErr))
		}
	}
	wg.Wait()

	return firstErr
}

// dedupeByLawID keeps the first record per law id, preserving order.
func dedupeByLawID(laws []*store.LawDocument) []*store.LawDocument {
	seen := make(map[string]struct{}, len(laws))
	out := make([]*store.LawDocument, 0, len(laws))
	for _, law := range laws {
		if law.LawID == "" {
			continue
		}
		if _, ok := seen[law.LawID]; ok {
			continue
		}
		seen[law.LawID] = struct{}{}
		out = append(out, law)
	}
	return out
}
