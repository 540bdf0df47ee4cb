package serp

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// MaxResults is the number of competitor slots a search can fill.
const MaxResults = 10

// ErrMissingCredential is returned when the search provider needs an API key
// that was not provided. No request is made in that case.
var ErrMissingCredential = errors.New("search API key not configured")

// Query describes one search.
type Query struct {
	Text       string
	Location   string
	Language   string
	Country    string
	NumResults int
}

// Result is one organic result. Position is 1-based.
type Result struct {
	Position int
	URL      string
	Title    string
}

// Searcher returns the top organic results for a query, best first.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, error)
}

// limit returns the requested result count clamped to [1, MaxResults].
func (q Query) limit() int {
	if q.NumResults <= 0 || q.NumResults > MaxResults {
		return MaxResults
	}
	return q.NumResults
}

// normalize drops empty and duplicate URLs, caps the list and renumbers
// positions so that position n always maps to competitor slot n-1.
func normalize(in []Result, limit int) []Result {
	seen := make(map[string]struct{})
	var out []Result
	for _, r := range in {
		if len(out) >= limit {
			break
		}
		u := strings.TrimSpace(r.URL)
		if u == "" {
			continue
		}
		if parsed, err := url.Parse(u); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			continue
		}
		key := strings.TrimSuffix(u, "/")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Result{Position: len(out) + 1, URL: u, Title: strings.TrimSpace(r.Title)})
	}
	return out
}
