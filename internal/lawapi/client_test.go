package lawapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeonlab/lawsearch/internal/config"
	lserr "github.com/yeonlab/lawsearch/internal/errors"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(config.LawAPIConfig{
		BaseURL: srv.URL,
		APIKey:  "testkey",
		Timeout: 2 * time.Second,
	}, nil)
	// No backoff delay in tests.
	c.retry = lserr.RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1.0}
	return c
}

const searchBody = `{"LawSearch":{"law":[
	{"법령명한글":"개인정보 보호법","법령ID":"011357","법령일련번호":"267678",
	 "소관부처명":"개인정보보호위원회","시행일자":"20240315","공포일자":"20230314",
	 "법령약칭명":"개인정보법","현행연혁코드":"현행"},
	{}
]}}`

func TestSearch_ParsesAndSkipsEmptyRecords(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/DRF/lawSearch.do", r.URL.Path)
		assert.Equal(t, "testkey", r.URL.Query().Get("OC"))
		assert.Equal(t, "JSON", r.URL.Query().Get("type"))
		assert.Equal(t, "ga", r.URL.Query().Get("gana"))
		w.Write([]byte(searchBody))
	}))

	laws, err := c.Search(context.Background(), "개인정보", 10)
	require.NoError(t, err)
	require.Len(t, laws, 1)
	assert.Equal(t, "011357", laws[0].LawID)
	assert.Equal(t, "개인정보 보호법", laws[0].Name)
	assert.Equal(t, "현행", laws[0].Status)
	assert.Equal(t, "20240315", laws[0].EnforceDate)
}

func TestSearch_SingleObjectResultBecomesList(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"LawSearch":{"law":{"법령명한글":"저작권법","법령ID":"001234"}}}`))
	}))

	laws, err := c.Search(context.Background(), "저작권", 10)
	require.NoError(t, err)
	require.Len(t, laws, 1)
	assert.Equal(t, "001234", laws[0].LawID)
}

func TestSearch_CommaFanOutSplitsBudget(t *testing.T) {
	var displays atomic.Int64
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("display") == "5" {
			displays.Add(1)
		}
		w.Write([]byte(searchBody))
	}))

	laws, err := c.Search(context.Background(), "개인정보, 저작권", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), displays.Load(), "10 split across 2 sub-queries")
	assert.Len(t, laws, 2)
}

func TestSearch_RateLimited(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := c.Search(context.Background(), "민법", 10)
	require.Error(t, err)
	assert.Equal(t, lserr.ErrCodeRateLimited, lserr.GetCode(err))
}

func TestSearch_RetriesThenSourceUnavailable(t *testing.T) {
	var hits atomic.Int64
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.Search(context.Background(), "민법", 10)
	require.Error(t, err)
	assert.Equal(t, lserr.ErrCodeSourceUnavailable, lserr.GetCode(err))
	assert.Equal(t, int64(3), hits.Load(), "initial attempt plus two retries")
}

func TestSearch_RecoversAfterTransientFailure(t *testing.T) {
	var hits atomic.Int64
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(searchBody))
	}))

	laws, err := c.Search(context.Background(), "개인정보", 10)
	require.NoError(t, err)
	assert.Len(t, laws, 1)
}

func TestSearch_ErrorPageDetected(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>error</body></html>`))
	}))

	_, err := c.Search(context.Background(), "민법", 10)
	require.Error(t, err)
	assert.Equal(t, lserr.ErrCodeSourceUnavailable, lserr.GetCode(err))
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	_, err := c.Search(context.Background(), " , ", 10)
	require.Error(t, err)
	assert.Equal(t, lserr.ErrCodeInvalidQuery, lserr.GetCode(err))
}

const detailBody = `{"법령":{
	"법령명한글":"개인정보 보호법","법령약칭명":"개인정보법","소관부처명":"개인정보보호위원회",
	"법종구분":"법률","현행여부":"현행","시행일자":"20240315","공포일자":"20230314","법령일련번호":"267678",
	"조문":[
		{"조문번호":"1","조문제목":"목적","조문내용":"제1조(목적) 이 법은 개인정보의 처리 및 보호에 관한 사항을 정한다."},
		{"조문번호":"15","조문제목":"개인정보의 수집 이용",
		 "조문내용":"제15조(개인정보의 수집 이용)",
		 "항":[{"항번호":"①","항내용":"개인정보처리자는 다음 각 호의 경우에 개인정보를 수집할 수 있다.",
		        "호":[{"호번호":"1.","호내용":"정보주체의 동의를 받은 경우"},
		              {"호번호":"2.","호내용":"법률에 특별한 규정이 있는 경우"}]}]}
	]}}`

func TestFetchDetail_FlattensArticleHierarchy(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/DRF/lawService.do", r.URL.Path)
		assert.Equal(t, "011357", r.URL.Query().Get("ID"))
		assert.Equal(t, "law", r.URL.Query().Get("target"))
		w.Write([]byte(detailBody))
	}))

	law, articles, err := c.FetchDetail(context.Background(), "011357", false)
	require.NoError(t, err)
	assert.Equal(t, "개인정보 보호법", law.Name)
	assert.Equal(t, "법률", law.LawType)
	assert.Equal(t, "현행", law.Status)

	require.Len(t, articles, 2)
	assert.Equal(t, "1", articles[0].ArticleNo)
	assert.Equal(t, "art_011357_001", articles[0].VectorID)

	art15 := articles[1]
	assert.Equal(t, "15", art15.ArticleNo)
	assert.Contains(t, art15.Content, "제15조(개인정보의 수집 이용)")
	assert.Contains(t, art15.Content, "① 개인정보처리자는")
	assert.Contains(t, art15.Content, "1. 정보주체의 동의를 받은 경우")
	assert.Contains(t, art15.Content, "2. 법률에 특별한 규정이 있는 경우")
}

func TestFetchDetail_ComposesFullTextFromArticles(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(detailBody))
	}))

	law, _, err := c.FetchDetail(context.Background(), "011357", true)
	require.NoError(t, err)
	require.NotEmpty(t, law.FullText)
	assert.Contains(t, law.FullText, "1 목적")
	assert.Contains(t, law.FullText, "정보주체의 동의를 받은 경우")
}

func TestFetchDetail_EmptyIDRejected(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	_, _, err := c.FetchDetail(context.Background(), "  ", false)
	require.Error(t, err)
	assert.Equal(t, lserr.ErrCodeInvalidQuery, lserr.GetCode(err))
}
