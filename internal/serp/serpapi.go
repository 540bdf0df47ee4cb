package serp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const serpAPIBaseURL = "https://serpapi.com/search.json"

// SerpAPIClient queries Google organic results through SerpApi.
type SerpAPIClient struct {
	BaseURL string
	apiKey  string
	client  *http.Client
}

// NewSerpAPIClient creates a client with an explicit API key.
func NewSerpAPIClient(apiKey string) *SerpAPIClient {
	return &SerpAPIClient{
		BaseURL: serpAPIBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// IsConfigured returns whether the API key is available.
func (c *SerpAPIClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Search implements Searcher.
func (c *SerpAPIClient) Search(ctx context.Context, q Query) ([]Result, error) {
	if c.apiKey == "" {
		return nil, ErrMissingCredential
	}

	limit := q.limit()
	params := url.Values{
		"engine":  {"google"},
		"q":       {q.Text},
		"num":     {strconv.Itoa(limit)},
		"api_key": {c.apiKey},
	}
	if q.Location != "" {
		params.Set("location", q.Location)
	}
	if q.Language != "" {
		params.Set("hl", q.Language)
	}
	if q.Country != "" {
		params.Set("gl", q.Country)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serpapi request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serpapi HTTP error: %d", resp.StatusCode)
	}

	var result struct {
		Error          string `json:"error"`
		OrganicResults []struct {
			Position int    `json:"position"`
			Link     string `json:"link"`
			Title    string `json:"title"`
		} `json:"organic_results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding serpapi response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("serpapi error: %s", result.Error)
	}

	raw := make([]Result, 0, len(result.OrganicResults))
	for _, r := range result.OrganicResults {
		raw = append(raw, Result{Position: r.Position, URL: r.Link, Title: r.Title})
	}
	results := normalize(raw, limit)
	slog.Debug("serpapi search", "query", q.Text, "location", q.Location, "results", len(results))
	return results, nil
}
