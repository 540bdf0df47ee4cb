package content

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html/charset"
)

// maxBodyBytes caps how much of a page is read.
const maxBodyBytes = 10 << 20

// minReadableChars is the shortest readability output trusted over the
// plain-body fallback.
const minReadableChars = 100

// ReadabilityCleaner fetches pages over HTTP and extracts the main content
// locally with go-readability.
type ReadabilityCleaner struct {
	client    *http.Client
	userAgent string
}

// NewReadabilityCleaner creates a cleaner with the given per-request timeout.
func NewReadabilityCleaner(timeout time.Duration, userAgent string) *ReadabilityCleaner {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if userAgent == "" {
		userAgent = "kwscout/1.0 (keyword research)"
	}
	return &ReadabilityCleaner{
		userAgent: userAgent,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// FetchAndClean implements Cleaner.
func (c *ReadabilityCleaner) FetchAndClean(ctx context.Context, pageURL string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decoding charset: %w", err)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	doc, err := CleanHTML(string(raw), finalURL)
	if err != nil {
		return nil, err
	}
	doc.URL = pageURL
	return doc, nil
}

// CleanHTML extracts the main text of an HTML document. It prefers the
// readability article and falls back to the visible body text.
func CleanHTML(html, pageURL string) (*Document, error) {
	parsedURL, _ := url.Parse(pageURL)

	doc := &Document{URL: pageURL}
	article, err := readability.FromReader(strings.NewReader(html), parsedURL)
	if err == nil {
		doc.Title = normalizeText(article.Title)
		doc.Text = normalizeParagraphs(article.TextContent)
	} else {
		slog.Debug("readability failed, using body text", "url", pageURL, "error", err)
	}

	if len(doc.Text) < minReadableChars {
		title, text, err := bodyText(html)
		if err != nil {
			return nil, fmt.Errorf("parsing HTML: %w", err)
		}
		if doc.Title == "" {
			doc.Title = title
		}
		if len(text) > len(doc.Text) {
			doc.Text = text
		}
	}

	if strings.TrimSpace(doc.Text) == "" {
		return nil, ErrNoContent
	}
	return doc, nil
}

func bodyText(html string) (title, text string, err error) {
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", err
	}
	gq.Find("script,style,noscript,template,svg,nav,footer").Remove()

	title = normalizeText(gq.Find("title").First().Text())

	var blocks []string
	gq.Find("h1,h2,h3,h4,h5,h6,p,li,td,th,blockquote,pre").Each(func(_ int, s *goquery.Selection) {
		if s.Find("p,li").Length() > 0 {
			return
		}
		if t := normalizeText(s.Text()); t != "" {
			blocks = append(blocks, t)
		}
	})
	if len(blocks) == 0 {
		return title, normalizeText(gq.Find("body").Text()), nil
	}
	return title, strings.Join(blocks, "\n"), nil
}

// normalizeText collapses all whitespace runs into single spaces.
func normalizeText(input string) string {
	return strings.Join(strings.Fields(input), " ")
}

// normalizeParagraphs trims each line and drops blank ones, keeping one
// paragraph per line.
func normalizeParagraphs(input string) string {
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Buffer(make([]byte, 0, 64*1024), maxBodyBytes)
	for scanner.Scan() {
		if line := normalizeText(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
