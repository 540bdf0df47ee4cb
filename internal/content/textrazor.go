package content

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const textRazorBaseURL = "https://api.textrazor.com/"

// TextRazorClient delegates fetching, cleanup and entity extraction to the
// TextRazor API.
type TextRazorClient struct {
	BaseURL string
	apiKey  string
	client  *http.Client
}

// NewTextRazorClient creates a client with an explicit API key.
func NewTextRazorClient(apiKey string, timeout time.Duration) *TextRazorClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &TextRazorClient{
		BaseURL: textRazorBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// IsConfigured returns whether the API key is available.
func (c *TextRazorClient) IsConfigured() bool {
	return c.apiKey != ""
}

// FetchAndClean implements Cleaner.
func (c *TextRazorClient) FetchAndClean(ctx context.Context, pageURL string) (*Document, error) {
	if c.apiKey == "" {
		return nil, ErrMissingCredential
	}

	form := url.Values{
		"url":                   {pageURL},
		"extractors":            {"entities"},
		"cleanup.mode":          {"cleanHTML"},
		"cleanup.returnCleaned": {"true"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-TextRazor-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("textrazor request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var result struct {
		OK       bool   `json:"ok"`
		Error    string `json:"error"`
		Response struct {
			CleanedText string `json:"cleanedText"`
			Entities    []struct {
				EntityID    string `json:"entityId"`
				MatchedText string `json:"matchedText"`
			} `json:"entities"`
		} `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding textrazor response: %w", err)
	}
	if !result.OK {
		return nil, fmt.Errorf("textrazor error: %s", result.Error)
	}

	text := normalizeParagraphs(result.Response.CleanedText)
	if text == "" {
		return nil, ErrNoContent
	}

	doc := &Document{URL: pageURL, Text: text}
	seen := make(map[string]struct{})
	for _, e := range result.Response.Entities {
		name := e.EntityID
		if name == "" {
			name = e.MatchedText
		}
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		doc.Entities = append(doc.Entities, name)
	}
	return doc, nil
}
