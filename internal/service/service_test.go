package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeonlab/lawsearch/internal/cache"
	"github.com/yeonlab/lawsearch/internal/config"
	"github.com/yeonlab/lawsearch/internal/embed"
	lserr "github.com/yeonlab/lawsearch/internal/errors"
	"github.com/yeonlab/lawsearch/internal/ingest"
	"github.com/yeonlab/lawsearch/internal/sched"
	"github.com/yeonlab/lawsearch/internal/search"
	"github.com/yeonlab/lawsearch/internal/store"
	"github.com/yeonlab/lawsearch/internal/vector"
)

type fakeFetcher struct {
	laws     []*store.LawDocument
	articles map[string][]*store.Article
	block    chan struct{}
}

func (f *fakeFetcher) Search(ctx context.Context, query string, topK int) ([]*store.LawDocument, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.laws, nil
}

func (f *fakeFetcher) FetchDetail(ctx context.Context, lawID string, includeFullText bool) (*store.LawDocument, []*store.Article, error) {
	for _, law := range f.laws {
		if law.LawID == lawID {
			return law, f.articles[lawID], nil
		}
	}
	return nil, nil, lserr.NotFound("law", lawID)
}

func corpusFetcher() *fakeFetcher {
	return &fakeFetcher{
		laws: []*store.LawDocument{
			{LawID: "L1", Name: "개인정보 보호법", Department: "개인정보보호위원회",
				LawType: "법률", Status: store.StatusActive, EnforceDate: "20240315",
				FullText: "개인정보 보호법 전문"},
			{LawID: "L2", Name: "저작권법", Department: "문화체육관광부",
				LawType: "법률", Status: store.StatusActive, EnforceDate: "20230101"},
		},
		articles: map[string][]*store.Article{
			"L1": {
				{LawID: "L1", ArticleNo: "제15조", Title: "개인정보의 수집 이용",
					Content: "개인정보처리자는 정보주체의 동의를 받아 개인정보를 수집할 수 있다.", VectorID: "art_L1_001"},
				{LawID: "L1", ArticleNo: "제21조", Title: "개인정보의 파기",
					Content: "보유기간이 지나면 지체 없이 개인정보를 파기하여야 한다.", VectorID: "art_L1_002"},
			},
			"L2": {
				{LawID: "L2", ArticleNo: "제1조", Title: "목적",
					Content: "저작자의 권리 보호와 저작물의 공정한 이용을 도모한다.", VectorID: "art_L2_001"},
			},
		},
	}
}

type testStack struct {
	service   *Service
	scheduler *sched.Scheduler
	cache     *cache.MemoryCache
}

func newTestStack(t *testing.T, fetcher ingest.Fetcher, embedder embed.Embedder) *testStack {
	t.Helper()

	cfg := config.Default()
	cfg.Cache.SearchTTL = time.Minute
	cfg.Cache.DetailTTL = time.Minute
	cfg.Search.QueryDeadline = 5 * time.Second
	cfg.Ingest.LeaseTTL = time.Minute

	canonical, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "laws.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = canonical.Close() })

	vectors, err := vector.NewHNSWStore(embed.StaticDimensions)
	require.NoError(t, err)
	t.Cleanup(func() { _ = vectors.Close() })

	lexical, err := search.NewLexicalProvider("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = lexical.Close() })

	memCache := cache.NewMemoryCache()
	t.Cleanup(func() { _ = memCache.Close() })

	if embedder == nil {
		static := embed.NewStaticEmbedder()
		t.Cleanup(func() { _ = static.Close() })
		embedder = static
	}

	semantic := search.NewSemanticProvider(embedder, vectors)
	engine := search.NewEngine(lexical, semantic, cfg.Search, nil)

	pipeline := ingest.NewPipeline(fetcher, canonical, vectors, embedder, lexical, memCache, 2, nil)
	scheduler, err := sched.New(pipeline, cfg.Ingest, nil)
	require.NoError(t, err)
	t.Cleanup(scheduler.Stop)

	return &testStack{
		service:   New(engine, semantic, canonical, memCache, scheduler, cfg, nil),
		scheduler: scheduler,
		cache:     memCache,
	}
}

func ingestCorpus(t *testing.T, stack *testStack) {
	t.Helper()
	job := stack.scheduler.TriggerAndWait(context.Background(), "개인정보, 저작권")
	require.Equal(t, ingest.JobSucceeded, job.CurrentState())
}

func TestSearch_CacheIdempotence(t *testing.T) {
	stack := newTestStack(t, corpusFetcher(), nil)
	ingestCorpus(t, stack)
	ctx := context.Background()

	q := search.Query{Text: "개인정보 수집", Mode: search.ModeHybrid, TopK: 10}

	first, err := stack.service.Search(ctx, q)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	require.NotEmpty(t, first.Hits)

	second, err := stack.service.Search(ctx, q)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Hits, second.Hits)
}

func TestSearch_CacheKeyDistinguishesShape(t *testing.T) {
	stack := newTestStack(t, corpusFetcher(), nil)
	ingestCorpus(t, stack)
	ctx := context.Background()

	_, err := stack.service.Search(ctx, search.Query{Text: "개인정보", TopK: 10})
	require.NoError(t, err)

	narrowed, err := stack.service.Search(ctx, search.Query{
		Text: "개인정보", TopK: 10, Filter: store.Filter{LawID: "L2"},
	})
	require.NoError(t, err)
	assert.False(t, narrowed.CacheHit, "a different filter must not reuse the unfiltered entry")
	for _, hit := range narrowed.Hits {
		assert.Equal(t, "L2", hit.LawID)
	}
}

func TestSearch_CacheEntryExpiresAfterTTL(t *testing.T) {
	stack := newTestStack(t, corpusFetcher(), nil)
	ingestCorpus(t, stack)
	stack.service.searchTTL = 200 * time.Millisecond
	ctx := context.Background()

	q := search.Query{Text: "개인정보 수집", TopK: 10}

	first, err := stack.service.Search(ctx, q)
	require.NoError(t, err)
	require.False(t, first.CacheHit)

	second, err := stack.service.Search(ctx, q)
	require.NoError(t, err)
	require.True(t, second.CacheHit)

	time.Sleep(300 * time.Millisecond)

	// Past the TTL the entry is gone and the providers run again.
	third, err := stack.service.Search(ctx, q)
	require.NoError(t, err)
	assert.False(t, third.CacheHit)
	assert.Equal(t, first.Hits, third.Hits)
}

func TestSearch_ReingestInvalidatesCachedResults(t *testing.T) {
	stack := newTestStack(t, corpusFetcher(), nil)
	ingestCorpus(t, stack)
	ctx := context.Background()

	q := search.Query{Text: "개인정보 수집", TopK: 10}
	first, err := stack.service.Search(ctx, q)
	require.NoError(t, err)
	require.False(t, first.CacheHit)

	warm, err := stack.service.Search(ctx, q)
	require.NoError(t, err)
	require.True(t, warm.CacheHit)

	// Republishing the laws the entry is scoped to evicts it.
	ingestCorpus(t, stack)

	after, err := stack.service.Search(ctx, q)
	require.NoError(t, err)
	assert.False(t, after.CacheHit)
}

// flakyEmbedder works during ingestion, then starts failing, simulating a
// semantic backend outage after the corpus was built.
type flakyEmbedder struct {
	inner   embed.Embedder
	failing bool
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.failing {
		return nil, lserr.New(lserr.ErrCodeEmbeddingFailed, "embedding backend down", nil)
	}
	return f.inner.Embed(ctx, text)
}

func (f *flakyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.failing {
		return nil, lserr.New(lserr.ErrCodeEmbeddingFailed, "embedding backend down", nil)
	}
	return f.inner.EmbedBatch(ctx, texts)
}

func (f *flakyEmbedder) Dimensions() int { return f.inner.Dimensions() }

func (f *flakyEmbedder) ModelName() string { return f.inner.ModelName() }

func (f *flakyEmbedder) Close() error { return f.inner.Close() }

func TestSearch_DegradedResultsAreNotCached(t *testing.T) {
	embedder := &flakyEmbedder{inner: embed.NewStaticEmbedder()}
	stack := newTestStack(t, corpusFetcher(), embedder)
	ingestCorpus(t, stack)
	ctx := context.Background()

	embedder.failing = true
	q := search.Query{Text: "개인정보 수집", Mode: search.ModeHybrid, TopK: 10}

	degraded, err := stack.service.Search(ctx, q)
	require.NoError(t, err)
	assert.True(t, degraded.Degraded)
	require.NotEmpty(t, degraded.Hits, "lexical side still answers")

	// The outage ends; the next identical query must bypass any cache and
	// come back healthy.
	embedder.failing = false
	recovered, err := stack.service.Search(ctx, q)
	require.NoError(t, err)
	assert.False(t, recovered.CacheHit)
	assert.False(t, recovered.Degraded)
}

func TestSearch_RejectsEmptyQuery(t *testing.T) {
	stack := newTestStack(t, corpusFetcher(), nil)

	_, err := stack.service.Search(context.Background(), search.Query{Text: "   "})
	require.Error(t, err)
	assert.True(t, lserr.HasCode(err, lserr.ErrCodeQueryEmpty))
}

func TestGetDetail(t *testing.T) {
	stack := newTestStack(t, corpusFetcher(), nil)
	ingestCorpus(t, stack)
	ctx := context.Background()

	detail, err := stack.service.GetDetail(ctx, "L1", true, false)
	require.NoError(t, err)
	assert.Equal(t, "개인정보 보호법", detail.Law.Name)
	assert.Empty(t, detail.Law.FullText, "full text withheld unless requested")
	require.Len(t, detail.Articles, 2)
	assert.Equal(t, "제15조", detail.Articles[0].ArticleNo)

	withText, err := stack.service.GetDetail(ctx, "L1", false, true)
	require.NoError(t, err)
	assert.Equal(t, "개인정보 보호법 전문", withText.Law.FullText)
	assert.Empty(t, withText.Articles)

	_, err = stack.service.GetDetail(ctx, "no-such-law", false, false)
	assert.True(t, lserr.IsNotFound(err))
}

func TestSearchArticles_HydratesFromStore(t *testing.T) {
	stack := newTestStack(t, corpusFetcher(), nil)
	ingestCorpus(t, stack)

	hits, err := stack.service.SearchArticles(context.Background(), "L1", "개인정보 파기", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	for _, hit := range hits {
		assert.Equal(t, "L1", hit.Article.LawID)
		assert.NotEmpty(t, hit.Article.Content)
		assert.GreaterOrEqual(t, hit.Score, 0.0)
		assert.LessOrEqual(t, hit.Score, 1.0)
	}

	_, err = stack.service.SearchArticles(context.Background(), "L1", "", 5)
	assert.True(t, lserr.HasCode(err, lserr.ErrCodeQueryEmpty))
}

func TestTriggerIngestion_SkipsWhileRunning(t *testing.T) {
	fetcher := corpusFetcher()
	fetcher.block = make(chan struct{})
	stack := newTestStack(t, fetcher, nil)
	ctx := context.Background()

	first := stack.service.TriggerIngestion(ctx, "개인정보")
	assert.Equal(t, ingest.JobRunning, first.State)

	second := stack.service.TriggerIngestion(ctx, "저작권")
	assert.Equal(t, ingest.JobSkipped, second.State)

	close(fetcher.block)
	require.Eventually(t, func() bool {
		history := stack.service.JobHistory()
		return len(history) == 2 && history[0].State.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
}
