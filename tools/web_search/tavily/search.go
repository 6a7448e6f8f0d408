package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mohammad-safakhou/campaigner/tools/web_search/models"
)

const defaultURL = "https://api.tavily.com/search"

type Search struct {
	ApiKey  string
	BaseURL string
	Client  *http.Client
}

func (s Search) Discover(ctx context.Context, q string, k int, location string) ([]models.Result, error) {
	// https://docs.tavily.com/docs/rest-api/api-reference
	if location != "" {
		q = q + " " + location
	}
	body, err := json.Marshal(map[string]any{
		"api_key":      s.ApiKey,
		"query":        q,
		"max_results":  k,
		"search_depth": "basic",
	})
	if err != nil {
		return nil, err
	}
	url := s.BaseURL
	if url == "" {
		url = defaultURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily returned status %d", resp.StatusCode)
	}
	var raw struct {
		Results []models.Result `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	if len(raw.Results) > k {
		raw.Results = raw.Results[:k]
	}
	return raw.Results, nil
}
