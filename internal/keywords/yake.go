package keywords

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/TobiSchelling/kwscout/internal/aggregate"
)

// YAKEClient calls a YAKE REST server (POST /yake/).
type YAKEClient struct {
	BaseURL string
	client  *http.Client
}

// NewYAKEClient creates a client for the YAKE server at baseURL.
func NewYAKEClient(baseURL string) *YAKEClient {
	return &YAKEClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type yakeRequest struct {
	Language         string   `json:"language"`
	MaxNGramSize     int      `json:"max_ngram_size"`
	NumberOfKeywords int      `json:"number_of_keywords"`
	DedupLim         float64  `json:"dedup_lim"`
	Stopwords        []string `json:"stopwords,omitempty"`
	Text             string   `json:"text"`
}

type yakeKeyword struct {
	NGram string  `json:"ngram"`
	Score float64 `json:"score"`
}

// Extract implements Extractor.
func (c *YAKEClient) Extract(ctx context.Context, text string, opts Options) ([]aggregate.Keyword, error) {
	body, err := json.Marshal(yakeRequest{
		Language:         opts.Language,
		MaxNGramSize:     opts.MaxNGramSize,
		NumberOfKeywords: opts.TopK,
		DedupLim:         opts.DedupThreshold,
		Stopwords:        opts.Stopwords,
		Text:             text,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/yake/", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yake request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("yake returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var raw []yakeKeyword
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding yake response: %w", err)
	}

	out := make([]aggregate.Keyword, 0, len(raw))
	for _, k := range raw {
		if k.NGram == "" {
			continue
		}
		out = append(out, aggregate.Keyword{Phrase: k.NGram, Score: k.Score})
		if opts.TopK > 0 && len(out) == opts.TopK {
			break
		}
	}
	return out, nil
}
