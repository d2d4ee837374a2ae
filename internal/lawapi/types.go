// Package lawapi implements the client for the law.go.kr open API: law
// search (lawSearch.do) and detail retrieval with article text
// (lawService.do).
package lawapi

import (
	"bytes"
	"encoding/json"
	"strings"
)

// flexList accepts both a JSON array and a bare object for the same field.
// The upstream API collapses single-element lists into objects.
type flexList[T any] []T

func (f *flexList[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" || string(trimmed) == `""` {
		*f = nil
		return nil
	}
	if trimmed[0] == '[' {
		var list []T
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		*f = list
		return nil
	}
	var single T
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return err
	}
	*f = []T{single}
	return nil
}

// searchResponse is the lawSearch.do envelope.
type searchResponse struct {
	LawSearch struct {
		Law flexList[rawLaw] `json:"law"`
	} `json:"LawSearch"`
}

// rawLaw is one law record as returned by lawSearch.do.
type rawLaw struct {
	NameKorean     string `json:"법령명한글"`
	Abbreviation   string `json:"법령약칭명"`
	Department     string `json:"소관부처명"`
	EnforceDate    string `json:"시행일자"`
	PromulgateDate string `json:"공포일자"`
	DetailLink     string `json:"법령상세링크"`
	Serial         string `json:"법령일련번호"`
	LawID          string `json:"법령ID"`
	HistoryCode    string `json:"현행연혁코드"`
}

// empty reports whether every field is blank; the API pads result lists
// with empty objects.
func (r rawLaw) empty() bool {
	return r.NameKorean == "" && r.LawID == "" && r.Serial == "" &&
		r.Department == "" && r.EnforceDate == ""
}

// rawDetail is the lawService.do payload. Different targets wrap the root
// differently, so the client probes several envelope keys before falling
// back to the flat form.
type rawDetail struct {
	NameKorean     string `json:"법령명한글"`
	Name           string `json:"법령명"`
	Abbreviation   string `json:"법령약칭명"`
	Department     string `json:"소관부처명"`
	LawType        string `json:"법종구분"`
	Status         string `json:"현행여부"`
	HistoryCode    string `json:"현행연혁코드"`
	EnforceDate    string `json:"시행일자"`
	PromulgateDate string `json:"공포일자"`
	Serial         string `json:"법령일련번호"`

	Articles    flexList[rawArticle] `json:"조문"`
	ArticleList *struct {
		Articles flexList[rawArticle] `json:"조문"`
	} `json:"조문목록"`
	FullText string `json:"전문"`
}

// name returns the best available law name.
func (d rawDetail) name() string {
	if d.NameKorean != "" {
		return d.NameKorean
	}
	return d.Name
}

// status prefers the explicit flag over the history code.
func (d rawDetail) status() string {
	if d.Status != "" {
		return d.Status
	}
	return d.HistoryCode
}

// articles merges the two envelope shapes for the article list.
func (d rawDetail) articles() []rawArticle {
	if len(d.Articles) > 0 {
		return d.Articles
	}
	if d.ArticleList != nil {
		return d.ArticleList.Articles
	}
	return nil
}

// rawArticle is one 조문 with its nested 항 and 호 hierarchy.
type rawArticle struct {
	No      string              `json:"조문번호"`
	NoAlt   string              `json:"조번호"`
	Title   string              `json:"조문제목"`
	Content string              `json:"조문내용"`
	Clauses flexList[rawClause] `json:"항"`
}

func (a rawArticle) articleNo() string {
	if a.No != "" {
		return a.No
	}
	return a.NoAlt
}

// rawClause is one 항 with its nested 호 items.
type rawClause struct {
	No      string            `json:"항번호"`
	Content string            `json:"항내용"`
	Items   flexList[rawItem] `json:"호"`
}

// rawItem is one 호.
type rawItem struct {
	No      string `json:"호번호"`
	Content string `json:"호내용"`
}

// flatten renders the 조/항/호 hierarchy as readable plain text, one clause
// or item per line.
func (a rawArticle) flatten() string {
	var parts []string
	if s := strings.TrimSpace(a.Content); s != "" {
		parts = append(parts, s)
	}
	for _, clause := range a.Clauses {
		line := strings.TrimSpace(strings.TrimSpace(clause.No) + " " + strings.TrimSpace(clause.Content))
		if line != "" {
			parts = append(parts, line)
		}
		for _, item := range clause.Items {
			itemLine := strings.TrimSpace(strings.TrimSpace(item.No) + " " + strings.TrimSpace(item.Content))
			if itemLine != "" {
				parts = append(parts, itemLine)
			}
		}
	}
	return strings.Join(parts, "\n")
}
