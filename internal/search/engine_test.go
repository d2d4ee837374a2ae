package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeonlab/lawsearch/internal/config"
	"github.com/yeonlab/lawsearch/internal/embed"
	lserr "github.com/yeonlab/lawsearch/internal/errors"
	"github.com/yeonlab/lawsearch/internal/store"
	"github.com/yeonlab/lawsearch/internal/vector"
)

// failingEmbedder forces the semantic provider to fail.
type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, lserr.New(lserr.ErrCodeEmbeddingFailed, "embedder down", nil)
}

func (failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, lserr.New(lserr.ErrCodeEmbeddingFailed, "embedder down", nil)
}

func (failingEmbedder) Dimensions() int   { return embed.StaticDimensions }
func (failingEmbedder) ModelName() string { return "failing" }
func (failingEmbedder) Close() error      { return nil }

func testSearchConfig() config.SearchConfig {
	return config.SearchConfig{
		LexicalWeight:  0.5,
		SemanticWeight: 0.5,
		QueryDeadline:  2 * time.Second,
		DefaultTopK:    20,
		MaxTopK:        100,
	}
}

// newTestEngine builds an engine over in-memory providers seeded with two
// laws, indexing both lexical content and article embeddings.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	ctx := context.Background()

	lexical := newTestLexical(t)
	indexTestLaws(t, lexical)

	embedder := embed.NewStaticEmbedder()
	t.Cleanup(func() { _ = embedder.Close() })

	vectors, err := vector.NewHNSWStore(embed.StaticDimensions)
	require.NoError(t, err)
	t.Cleanup(func() { _ = vectors.Close() })

	seed := func(id, lawID, text string) {
		vec, err := embedder.Embed(ctx, text)
		require.NoError(t, err)
		require.NoError(t, vectors.Upsert(ctx, id, vec, vector.Metadata{LawID: lawID, Status: "현행"}))
	}
	seed("art_L1_015", "L1", "개인정보의 수집 이용 동의")
	seed("art_L2_001", "L2", "저작자의 권리 보호와 저작물의 공정한 이용")

	semantic := NewSemanticProvider(embedder, vectors)
	return NewEngine(lexical, semantic, testSearchConfig(), nil)
}

func TestEngine_EmptyQueryRejected(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Search(context.Background(), Query{Text: "   "})
	require.Error(t, err)
	assert.Equal(t, lserr.ErrCodeQueryEmpty, lserr.GetCode(err))
}

func TestEngine_UnknownModeRejected(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Search(context.Background(), Query{Text: "민법", Mode: "fuzzy"})
	require.Error(t, err)
	assert.Equal(t, lserr.ErrCodeInvalidQuery, lserr.GetCode(err))
}

func TestEngine_LexicalModeOnlyReturnsTokenMatches(t *testing.T) {
	e := newTestEngine(t)

	result, err := e.Search(context.Background(), Query{Text: "수집", Mode: ModeLexical})
	require.NoError(t, err)
	require.NotEmpty(t, result.Hits)
	assert.False(t, result.Degraded)
	assert.Equal(t, "L1", result.Hits[0].LawID)

	for _, h := range result.Hits {
		assert.Equal(t, h.LexicalScore, h.Score,
			"lexical mode fused score equals the normalized lexical score")
		assert.NotEqual(t, "L2", h.LawID)
	}
}

func TestEngine_HybridIsUnionOfProviders(t *testing.T) {
	e := newTestEngine(t)

	result, err := e.Search(context.Background(), Query{Text: "보호", Mode: ModeHybrid})
	require.NoError(t, err)
	assert.False(t, result.Degraded)
	require.NotEmpty(t, result.Hits)

	seen := make(map[string]bool)
	for _, h := range result.Hits {
		assert.False(t, seen[h.LawID], "no duplicate law ids after fusion")
		seen[h.LawID] = true
		assert.GreaterOrEqual(t, h.Score, 0.0)
		assert.LessOrEqual(t, h.Score, 1.0)
	}
}

func TestEngine_DegradedWhenSemanticFails(t *testing.T) {
	lexical := newTestLexical(t)
	indexTestLaws(t, lexical)
	vectors, err := vector.NewHNSWStore(embed.StaticDimensions)
	require.NoError(t, err)
	t.Cleanup(func() { _ = vectors.Close() })

	e := NewEngine(lexical, NewSemanticProvider(failingEmbedder{}, vectors), testSearchConfig(), nil)

	result, err := e.Search(context.Background(), Query{Text: "수집", Mode: ModeHybrid})
	require.NoError(t, err, "one provider failing must degrade, not fail")
	assert.True(t, result.Degraded)
	require.NotEmpty(t, result.Hits)
	assert.Equal(t, "L1", result.Hits[0].LawID)
	for _, h := range result.Hits {
		assert.Zero(t, h.SemanticScore)
	}
}

func TestEngine_BothProvidersFailing(t *testing.T) {
	lexical := newTestLexical(t)
	require.NoError(t, lexical.Close())
	vectors, err := vector.NewHNSWStore(embed.StaticDimensions)
	require.NoError(t, err)
	t.Cleanup(func() { _ = vectors.Close() })

	e := NewEngine(lexical, NewSemanticProvider(failingEmbedder{}, vectors), testSearchConfig(), nil)

	_, err = e.Search(context.Background(), Query{Text: "수집", Mode: ModeHybrid})
	require.Error(t, err)
	assert.Equal(t, lserr.ErrCodeBothProvidersFailed, lserr.GetCode(err))
}

func TestEngine_SemanticModePropagatesFailure(t *testing.T) {
	lexical := newTestLexical(t)
	vectors, err := vector.NewHNSWStore(embed.StaticDimensions)
	require.NoError(t, err)
	t.Cleanup(func() { _ = vectors.Close() })

	e := NewEngine(lexical, NewSemanticProvider(failingEmbedder{}, vectors), testSearchConfig(), nil)

	_, err = e.Search(context.Background(), Query{Text: "수집", Mode: ModeSemantic})
	require.Error(t, err)
	assert.Equal(t, lserr.ErrCodeEmbeddingFailed, lserr.GetCode(err))
}

func TestEngine_TopKBounds(t *testing.T) {
	e := newTestEngine(t)

	result, err := e.Search(context.Background(), Query{Text: "보호", Mode: ModeHybrid, TopK: 1})
	require.NoError(t, err)
	assert.Len(t, result.Hits, 1)
}

func TestEngine_FilterNarrowsBothProviders(t *testing.T) {
	e := newTestEngine(t)

	result, err := e.Search(context.Background(), Query{
		Text:   "보호",
		Mode:   ModeHybrid,
		Filter: store.Filter{LawID: "L2"},
	})
	require.NoError(t, err)
	for _, h := range result.Hits {
		assert.Equal(t, "L2", h.LawID)
	}
}
