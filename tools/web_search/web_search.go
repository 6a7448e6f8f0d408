package web_search

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/mohammad-safakhou/campaigner/tools"
	"github.com/mohammad-safakhou/campaigner/tools/web_search/brave"
	"github.com/mohammad-safakhou/campaigner/tools/web_search/models"
	"github.com/mohammad-safakhou/campaigner/tools/web_search/serper"
	"github.com/mohammad-safakhou/campaigner/tools/web_search/tavily"
)

type WebSearcher interface {
	Discover(ctx context.Context, q string, k int, location string) ([]models.Result, error)
}

type Provider string

const (
	TavilyProvider Provider = "tavily"
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

var ErrUnsupportedProvider = errors.New("unsupported provider")

// Config selects a provider. BaseURL overrides the provider endpoint.
type Config struct {
	Provider   Provider
	APIKey     string
	BaseURL    string
	MaxResults int
	HTTPClient *http.Client
}

func NewWebSearcher(cfg Config) (WebSearcher, error) {
	switch cfg.Provider {
	case TavilyProvider:
		return tavily.Search{ApiKey: cfg.APIKey, BaseURL: cfg.BaseURL, Client: cfg.HTTPClient}, nil
	case SerperProvider:
		return serper.Search{ApiKey: cfg.APIKey, BaseURL: cfg.BaseURL, Client: cfg.HTTPClient}, nil
	case BraveProvider:
		return brave.Search{ApiKey: cfg.APIKey, BaseURL: cfg.BaseURL, Client: cfg.HTTPClient}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}

// Tool implements web_search over a WebSearcher. Snippets are stripped of
// markup before they reach the manifest.
type Tool struct {
	searcher   WebSearcher
	maxResults int
	policy     *bluemonday.Policy
}

// NewTool wraps searcher; a nil searcher yields a tool that always fails.
func NewTool(searcher WebSearcher, maxResults int) *Tool {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Tool{searcher: searcher, maxResults: maxResults, policy: bluemonday.StrictPolicy()}
}

func failure(msg string) tools.Result {
	r := tools.Failure(msg)
	r["results"] = []any{}
	return r
}

// Execute reads q, optional location and max_results.
func (t *Tool) Execute(ctx context.Context, input map[string]any) (tools.Result, error) {
	if t.searcher == nil {
		return failure("search client not initialized"), nil
	}
	q := strings.TrimSpace(tools.String(input, "q"))
	if q == "" {
		q = strings.TrimSpace(tools.String(input, "query"))
	}
	if q == "" {
		return failure("No query provided"), nil
	}
	k := tools.Int(input, "max_results", t.maxResults)
	hits, err := t.searcher.Discover(ctx, q, k, tools.String(input, "location"))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return failure(err.Error()), nil
	}
	results := make([]any, 0, len(hits))
	for _, h := range hits {
		results = append(results, map[string]any{
			"title":   strings.TrimSpace(t.policy.Sanitize(h.Title)),
			"url":     h.URL,
			"content": strings.TrimSpace(t.policy.Sanitize(h.Content)),
			"score":   h.Score,
		})
	}
	return tools.Success(map[string]any{"results": results, "query": q}), nil
}
