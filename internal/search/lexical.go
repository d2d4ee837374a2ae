package search

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/cjk"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	lserr "github.com/yeonlab/lawsearch/internal/errors"
	"github.com/yeonlab/lawsearch/internal/store"
)

// koreanAnalyzerName is the custom analyzer for Korean legal text:
// unicode segmentation, CJK width folding, then CJK bigrams so that hangul
// compounds match on subword overlap.
const koreanAnalyzerName = "korean_bigram"

// lexicalDoc is the bleve document, one per law. Content concatenates the
// law name and all article text.
type lexicalDoc struct {
	Name        string `json:"name"`
	Content     string `json:"content"`
	Department  string `json:"department"`
	LawType     string `json:"law_type"`
	Status      string `json:"status"`
	EnforceDate string `json:"enforce_date"`
}

// LexicalProvider is the BM25 keyword provider backed by bleve.
type LexicalProvider struct {
	mu     sync.RWMutex
	index  bleve.Index
	closed bool
}

// NewLexicalProvider opens (or creates) a bleve index at path. An empty
// path builds an in-memory index.
func NewLexicalProvider(path string) (*LexicalProvider, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, lserr.New(lserr.ErrCodeStoreUnavailable, "create index mapping", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, lserr.New(lserr.ErrCodeStoreUnavailable, "create index directory", mkErr)
		}
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, lserr.New(lserr.ErrCodeCorruptIndex, "open lexical index", err)
	}

	return &LexicalProvider{index: idx}, nil
}

func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(koreanAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			cjk.WidthName,
			lowercase.Name,
			cjk.BigramName,
		},
	})
	if err != nil {
		return nil, err
	}

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = koreanAnalyzerName

	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("name", textField)
	docMapping.AddFieldMappingsAt("content", textField)
	docMapping.AddFieldMappingsAt("department", keywordField)
	docMapping.AddFieldMappingsAt("law_type", keywordField)
	docMapping.AddFieldMappingsAt("status", keywordField)
	docMapping.AddFieldMappingsAt("enforce_date", keywordField)

	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = koreanAnalyzerName
	return indexMapping, nil
}

// IndexLaw indexes (or reindexes) a law with its article text.
func (p *LexicalProvider) IndexLaw(ctx context.Context, law *store.LawDocument, articles []*store.Article) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return lserr.New(lserr.ErrCodeStoreUnavailable, "lexical index is closed", nil)
	}

	var content strings.Builder
	content.WriteString(law.Name)
	if law.Abbreviation != "" {
		content.WriteByte(' ')
		content.WriteString(law.Abbreviation)
	}
	for _, art := range articles {
		content.WriteByte('\n')
		if art.Title != "" {
			content.WriteString(art.Title)
			content.WriteByte(' ')
		}
		content.WriteString(art.Content)
	}

	doc := lexicalDoc{
		Name:        law.Name,
		Content:     content.String(),
		Department:  law.Department,
		LawType:     law.LawType,
		Status:      law.Status,
		EnforceDate: law.EnforceDate,
	}
	if err := p.index.Index(law.LawID, doc); err != nil {
		return lserr.New(lserr.ErrCodeStoreUnavailable, "index law", err)
	}
	return nil
}

// DeleteLaw removes a law from the index.
func (p *LexicalProvider) DeleteLaw(ctx context.Context, lawID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return lserr.New(lserr.ErrCodeStoreUnavailable, "lexical index is closed", nil)
	}
	if err := p.index.Delete(lawID); err != nil {
		return lserr.New(lserr.ErrCodeStoreUnavailable, "delete law", err)
	}
	return nil
}

// Search returns BM25-scored law ids for the query. Filter conditions are
// pushed down as term clauses on keyword fields. Scores are raw and
// unbounded; fusion normalizes them.
func (p *LexicalProvider) Search(ctx context.Context, queryStr string, topK int, filter store.Filter) ([]ProviderResult, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, lserr.New(lserr.ErrCodeStoreUnavailable, "lexical index is closed", nil)
	}
	if strings.TrimSpace(queryStr) == "" || topK <= 0 {
		return []ProviderResult{}, nil
	}

	match := bleve.NewMatchQuery(queryStr)

	clauses := []query.Query{match}
	term := func(field, value string) {
		if value == "" {
			return
		}
		tq := bleve.NewTermQuery(value)
		tq.SetField(field)
		clauses = append(clauses, tq)
	}
	term("department", filter.Department)
	term("law_type", filter.LawType)
	term("status", filter.Status)
	if filter.LawID != "" {
		clauses = append(clauses, bleve.NewDocIDQuery([]string{filter.LawID}))
	}
	if filter.EnforceFrom != "" || filter.EnforceTo != "" {
		min, max := filter.EnforceFrom, filter.EnforceTo
		if min == "" {
			min = "00000000"
		}
		if max == "" {
			max = "99999999"
		}
		inclusive := true
		rq := bleve.NewTermRangeInclusiveQuery(min, max, &inclusive, &inclusive)
		rq.SetField("enforce_date")
		clauses = append(clauses, rq)
	}

	var q query.Query = match
	if len(clauses) > 1 {
		q = bleve.NewConjunctionQuery(clauses...)
	}
	req := bleve.NewSearchRequest(q)
	req.Size = topK

	result, err := p.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, lserr.New(lserr.ErrCodeStoreUnavailable, "lexical search failed", err)
	}

	results := make([]ProviderResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, ProviderResult{ID: hit.ID, Score: hit.Score})
	}
	return results, nil
}

// Count returns the number of indexed laws.
func (p *LexicalProvider) Count() (uint64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return 0, lserr.New(lserr.ErrCodeStoreUnavailable, "lexical index is closed", nil)
	}
	return p.index.DocCount()
}

func (p *LexicalProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.index.Close()
}
