package lawapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/yeonlab/lawsearch/internal/config"
	lserr "github.com/yeonlab/lawsearch/internal/errors"
	"github.com/yeonlab/lawsearch/internal/store"
)

const (
	searchPath  = "/DRF/lawSearch.do"
	servicePath = "/DRF/lawService.do"

	// maxFanOut bounds concurrent sub-query requests against the upstream.
	maxFanOut = 4
)

// Client talks to the law.go.kr open API. Requests retry with exponential
// backoff and run through a circuit breaker so a dead upstream fails fast
// during ingestion runs.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	breaker    *gobreaker.CircuitBreaker
	retry      lserr.RetryConfig
	logger     *slog.Logger
}

// NewClient builds a client from configuration.
func NewClient(cfg config.LawAPIConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "law_api",
		MaxRequests: 2,
		Timeout:     3 * cfg.Timeout, // hold open for three request timeouts
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		breaker:    breaker,
		retry:      lserr.DefaultRetryConfig(),
		logger:     logger,
	}
}

// Search queries the upstream law list. A comma-separated query fans out
// into one request per sub-query with the topK budget split between them;
// sub-query failures are logged and skipped as long as any sub-query
// succeeds.
func (c *Client) Search(ctx context.Context, query string, topK int) ([]*store.LawDocument, error) {
	queries := SplitQueries(query)
	if len(queries) == 0 {
		return nil, lserr.Validation("search query is empty")
	}
	if topK <= 0 {
		topK = 20
	}
	perQuery := topK / len(queries)
	if perQuery < 1 {
		perQuery = 1
	}

	var (
		mu      sync.Mutex
		laws    []*store.LawDocument
		lastErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxFanOut)
	for _, q := range queries {
		g.Go(func() error {
			batch, err := c.searchOne(gctx, q, perQuery)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.logger.Warn("upstream search failed for sub-query",
					slog.String("query", q), slog.String("error", err.Error()))
				lastErr = err
				return nil
			}
			laws = append(laws, batch...)
			return nil
		})
	}
	_ = g.Wait()

	if len(laws) == 0 && lastErr != nil {
		return nil, lastErr
	}
	if len(laws) > topK {
		laws = laws[:topK]
	}
	return laws, nil
}

func (c *Client) searchOne(ctx context.Context, query string, display int) ([]*store.LawDocument, error) {
	params := url.Values{}
	params.Set("OC", c.apiKey)
	params.Set("target", "eflaw")
	params.Set("type", "JSON")
	params.Set("nw", "3")
	params.Set("display", fmt.Sprintf("%d", display))
	params.Set("query", query)
	if gana := GanaValue(query); gana != "" {
		params.Set("gana", gana)
	}

	body, err := c.get(ctx, searchPath, params)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, lserr.SourceUnavailable("unparseable search response", err)
	}

	laws := make([]*store.LawDocument, 0, len(resp.LawSearch.Law))
	for _, raw := range resp.LawSearch.Law {
		if raw.empty() {
			continue
		}
		laws = append(laws, &store.LawDocument{
			LawID:          raw.LawID,
			Serial:         raw.Serial,
			Name:           raw.NameKorean,
			Abbreviation:   raw.Abbreviation,
			Department:     raw.Department,
			Status:         raw.HistoryCode,
			EnforceDate:    raw.EnforceDate,
			PromulgateDate: raw.PromulgateDate,
			DetailLink:     c.detailLink(raw),
		})
	}
	return laws, nil
}

func (c *Client) detailLink(raw rawLaw) string {
	if raw.DetailLink != "" {
		return raw.DetailLink
	}
	name := raw.Abbreviation
	if name == "" {
		name = raw.NameKorean
	}
	if name == "" {
		return ""
	}
	return c.baseURL + "/법령/" + url.PathEscape(name)
}

// FetchDetail retrieves a law with its article text. Vector ids are
// assigned per article in document order. When includeFullText is set and
// the upstream has no dedicated full-text field, the text is composed from
// the articles.
func (c *Client) FetchDetail(ctx context.Context, lawID string, includeFullText bool) (*store.LawDocument, []*store.Article, error) {
	lawID = strings.TrimSpace(lawID)
	if lawID == "" {
		return nil, nil, lserr.Validation("law id is empty")
	}

	params := url.Values{}
	params.Set("OC", c.apiKey)
	params.Set("target", "law")
	params.Set("ID", lawID)
	params.Set("type", "JSON")

	body, err := c.get(ctx, servicePath, params)
	if err != nil {
		return nil, nil, err
	}

	detail, err := decodeDetail(body)
	if err != nil {
		return nil, nil, err
	}

	name := detail.name()
	if name == "" {
		name = lawID
	}
	law := &store.LawDocument{
		LawID:          lawID,
		Serial:         detail.Serial,
		Name:           name,
		Abbreviation:   detail.Abbreviation,
		Department:     detail.Department,
		LawType:        detail.LawType,
		Status:         detail.status(),
		EnforceDate:    detail.EnforceDate,
		PromulgateDate: detail.PromulgateDate,
		DetailLink:     c.baseURL + "/법령/" + url.PathEscape(name),
	}

	articles := make([]*store.Article, 0, len(detail.articles()))
	for i, raw := range detail.articles() {
		content := raw.flatten()
		no := strings.TrimSpace(raw.articleNo())
		title := strings.TrimSpace(raw.Title)
		if no == "" && title == "" && content == "" {
			continue
		}
		articles = append(articles, &store.Article{
			LawID:     lawID,
			ArticleNo: no,
			Title:     title,
			Content:   content,
			VectorID:  fmt.Sprintf("art_%s_%03d", lawID, i+1),
		})
	}

	if includeFullText {
		if ft := strings.TrimSpace(detail.FullText); ft != "" {
			law.FullText = ft
		} else {
			law.FullText = composeFullText(articles)
		}
	}
	return law, articles, nil
}

// decodeDetail probes the known envelope keys before assuming a flat
// payload.
func decodeDetail(body []byte) (*rawDetail, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, lserr.SourceUnavailable("unparseable detail response", err)
	}

	for _, key := range []string{"법령", "LawService", "lawService", "law"} {
		if raw, ok := envelope[key]; ok {
			var detail rawDetail
			if err := json.Unmarshal(raw, &detail); err == nil && detail.name() != "" {
				return &detail, nil
			}
		}
	}

	var detail rawDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, lserr.SourceUnavailable("unparseable detail payload", err)
	}
	return &detail, nil
}

func composeFullText(articles []*store.Article) string {
	chunks := make([]string, 0, len(articles))
	for _, art := range articles {
		header := strings.TrimSpace(art.ArticleNo + " " + art.Title)
		var b strings.Builder
		if header != "" {
			b.WriteString(header)
		}
		if art.Content != "" {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(art.Content)
		}
		if b.Len() > 0 {
			chunks = append(chunks, b.String())
		}
	}
	return strings.Join(chunks, "\n\n")
}

// get performs one GET with retry and circuit breaking. A 429 maps to
// RateLimited; everything else that fails maps to SourceUnavailable so
// ingestion can isolate the failure per item.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path + "?" + params.Encode()

	return lserr.RetryWithResult(ctx, c.retry, func() ([]byte, error) {
		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.doGet(ctx, endpoint)
		})
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, lserr.SourceUnavailable("upstream circuit open", err)
		}
		if err != nil {
			return nil, err
		}
		return result.([]byte), nil
	})
}

func (c *Client) doGet(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, lserr.SourceUnavailable("build request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, lserr.SourceUnavailable("upstream request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, lserr.RateLimited("upstream rate limit", nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, lserr.SourceUnavailable(
			fmt.Sprintf("upstream returned status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, lserr.SourceUnavailable("read response body", err)
	}

	// The API signals errors as an HTML or quoted-string page with a 200.
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed[0] == '<' || trimmed[0] == '"' {
		return nil, lserr.SourceUnavailable("upstream returned error page", nil)
	}
	return body, nil
}
