package keywords

import (
	"context"

	"github.com/TobiSchelling/kwscout/internal/aggregate"
)

// Options are the tuning knobs handed to an extractor for one document.
type Options struct {
	Language       string
	MaxNGramSize   int
	DedupThreshold float64
	TopK           int
	Stopwords      []string
}

// Extractor returns ranked (phrase, score) pairs for a text. Lower scores are
// more relevant. Implementations never return more than TopK pairs.
type Extractor interface {
	Extract(ctx context.Context, text string, opts Options) ([]aggregate.Keyword, error)
}
