// Package search keeps an in-memory full-text index of campaigns.
package search

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve"

	"github.com/mohammad-safakhou/campaigner/internal/campaign"
)

type document struct {
	Brief    string `json:"brief"`
	Concept  string `json:"concept"`
	Tagline  string `json:"tagline"`
	Audience string `json:"audience"`
	Messages string `json:"messages"`
	Channels string `json:"channels"`
}

// Index is a BM25 index over each campaign's brief and strategy.
type Index struct {
	bleve bleve.Index
}

func New() (*Index, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &Index{bleve: index}, nil
}

// Put indexes or re-indexes m under its campaign id.
func (i *Index) Put(m *campaign.Manifest) error {
	if m == nil || m.CampaignID == "" {
		return fmt.Errorf("campaign id is required")
	}
	doc := document{
		Brief:    m.Brief,
		Concept:  m.Strategy.CoreConcept,
		Tagline:  m.Strategy.Tagline,
		Audience: m.Strategy.TargetAudience,
		Messages: strings.Join(m.Strategy.KeyMessages, "\n"),
		Channels: strings.Join(m.Strategy.Channels, " "),
	}
	return i.bleve.Index(m.CampaignID, doc)
}

// Search returns matching campaign ids, best match first. q uses bleve query-string syntax.
func (i *Index) Search(q string, limit int) ([]string, error) {
	if strings.TrimSpace(q) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(q), limit, 0, false)
	res, err := i.bleve.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q, err)
	}
	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

func (i *Index) Close() error { return i.bleve.Close() }
