package serp

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const googleNewsBaseURL = "https://news.google.com/rss/search"

// GoogleNewsSearcher searches Google News through its public RSS endpoint.
// It needs no credentials, which makes it the fallback when no SerpApi key
// is configured.
type GoogleNewsSearcher struct {
	BaseURL string
	parser  *gofeed.Parser
}

// NewGoogleNewsSearcher creates a searcher.
func NewGoogleNewsSearcher() *GoogleNewsSearcher {
	parser := gofeed.NewParser()
	parser.UserAgent = "Mozilla/5.0 (compatible; kwscout/1.0)"
	return &GoogleNewsSearcher{BaseURL: googleNewsBaseURL, parser: parser}
}

// Search implements Searcher.
func (g *GoogleNewsSearcher) Search(ctx context.Context, q Query) ([]Result, error) {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	feed, err := g.parser.ParseURLWithContext(g.feedURL(q), ctx)
	if err != nil {
		return nil, fmt.Errorf("google news feed: %w", err)
	}

	raw := make([]Result, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		raw = append(raw, Result{URL: item.Link, Title: item.Title})
	}
	results := normalize(raw, q.limit())
	slog.Debug("google news search", "query", q.Text, "results", len(results))
	return results, nil
}

func (g *GoogleNewsSearcher) feedURL(q Query) string {
	lang := strings.ToLower(q.Language)
	if lang == "" {
		lang = "en"
	}
	country := strings.ToUpper(q.Country)
	if country == "" {
		country = strings.ToUpper(lang)
	}

	text := q.Text
	if q.Location != "" {
		text += " " + q.Location
	}

	params := url.Values{
		"q":    {text},
		"hl":   {lang},
		"gl":   {country},
		"ceid": {country + ":" + lang},
	}
	return g.BaseURL + "?" + params.Encode()
}
