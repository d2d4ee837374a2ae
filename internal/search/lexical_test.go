package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeonlab/lawsearch/internal/store"
)

func newTestLexical(t *testing.T) *LexicalProvider {
	t.Helper()
	p, err := NewLexicalProvider("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func indexTestLaws(t *testing.T, p *LexicalProvider) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, p.IndexLaw(ctx, &store.LawDocument{
		LawID:       "L1",
		Name:        "개인정보 보호법",
		Department:  "개인정보보호위원회",
		LawType:     "법률",
		Status:      "현행",
		EnforceDate: "20240315",
	}, []*store.Article{
		{LawID: "L1", ArticleNo: "제15조", Title: "개인정보의 수집 이용",
			Content: "개인정보처리자는 정보주체의 동의를 받은 경우 개인정보를 수집할 수 있으며 그 수집 목적의 범위에서 이용할 수 있다."},
	}))

	require.NoError(t, p.IndexLaw(ctx, &store.LawDocument{
		LawID:       "L2",
		Name:        "저작권법",
		Department:  "문화체육관광부",
		LawType:     "법률",
		Status:      "현행",
		EnforceDate: "20230101",
	}, []*store.Article{
		{LawID: "L2", ArticleNo: "제1조", Title: "목적",
			Content: "이 법은 저작자의 권리와 이에 인접하는 권리를 보호하고 저작물의 공정한 이용을 도모한다."},
	}))
}

func TestLexical_RanksTokenMatchFirst(t *testing.T) {
	p := newTestLexical(t)
	indexTestLaws(t, p)

	results, err := p.Search(context.Background(), "수집", 10, store.Filter{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "L1", results[0].ID)
	for _, r := range results {
		assert.NotEqual(t, "L2", r.ID, "law without the token must not match")
	}
}

func TestLexical_FilterPushdown(t *testing.T) {
	p := newTestLexical(t)
	indexTestLaws(t, p)
	ctx := context.Background()

	results, err := p.Search(ctx, "보호", 10, store.Filter{Department: "문화체육관광부"})
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, "L2", r.ID)
	}

	results, err = p.Search(ctx, "보호", 10, store.Filter{EnforceFrom: "20240101"})
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, "L1", r.ID)
	}
}

func TestLexical_EmptyQueryReturnsNothing(t *testing.T) {
	p := newTestLexical(t)
	indexTestLaws(t, p)

	results, err := p.Search(context.Background(), "   ", 10, store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestLexical_ReindexReplacesDocument(t *testing.T) {
	p := newTestLexical(t)
	ctx := context.Background()

	law := &store.LawDocument{LawID: "L1", Name: "민법", Status: "현행"}
	require.NoError(t, p.IndexLaw(ctx, law, []*store.Article{
		{LawID: "L1", ArticleNo: "제1조", Content: "최초 내용 임대차"},
	}))
	require.NoError(t, p.IndexLaw(ctx, law, []*store.Article{
		{LawID: "L1", ArticleNo: "제1조", Content: "개정된 내용 상속"},
	}))

	results, err := p.Search(ctx, "임대차", 10, store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, results, "replaced content must not match")

	results, err = p.Search(ctx, "상속", 10, store.Filter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestLexical_DeleteLaw(t *testing.T) {
	p := newTestLexical(t)
	indexTestLaws(t, p)
	ctx := context.Background()

	require.NoError(t, p.DeleteLaw(ctx, "L1"))

	results, err := p.Search(ctx, "수집", 10, store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, results)

	count, err := p.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestLexical_ClosedIndexErrors(t *testing.T) {
	p := newTestLexical(t)
	require.NoError(t, p.Close())

	_, err := p.Search(context.Background(), "민법", 10, store.Filter{})
	assert.Error(t, err)
}
