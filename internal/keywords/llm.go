package keywords

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/TobiSchelling/kwscout/internal/aggregate"
	"github.com/TobiSchelling/kwscout/internal/llm"
)

const extractPrompt = `You extract SEO keywords from a web document.

Return the %d most relevant keyphrases of 1 to %d words, written exactly as they appear in the text (language: %s).
Never return a keyphrase that starts or ends with one of these stopwords: %s
Score each keyphrase between 0 and 1, where a LOWER score means MORE relevant.

Text:
%s

Respond with ONLY this JSON:
{
    "keywords": [
        {"phrase": "first keyphrase", "score": 0.01},
        {"phrase": "second keyphrase", "score": 0.05}
    ]
}`

// maxPromptChars bounds the document excerpt sent to the model.
const maxPromptChars = 12000

// LLMExtractor asks an LLM provider for keyphrases.
type LLMExtractor struct {
	provider  llm.Provider
	maxTokens int
}

// NewLLMExtractor creates an extractor backed by provider.
func NewLLMExtractor(provider llm.Provider, maxTokens int) *LLMExtractor {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &LLMExtractor{provider: provider, maxTokens: maxTokens}
}

// Extract implements Extractor.
func (e *LLMExtractor) Extract(ctx context.Context, text string, opts Options) ([]aggregate.Keyword, error) {
	if e.provider == nil {
		return nil, llm.ErrNotConfigured
	}

	excerpt := truncate(text, maxPromptChars)
	stops := opts.Stopwords
	if len(stops) > 60 {
		stops = stops[:60]
	}

	prompt := fmt.Sprintf(extractPrompt, opts.TopK, opts.MaxNGramSize, opts.Language, strings.Join(stops, ", "), excerpt)
	responseText, err := e.provider.Generate(ctx, prompt, e.maxTokens)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Keywords []aggregate.Keyword `json:"keywords"`
	}
	if err := llm.DecodeJSON(responseText, &parsed); err != nil {
		return nil, err
	}
	return normalize(parsed.Keywords, opts), nil
}

// normalize trims phrases, drops empty, over-long and duplicate entries,
// orders by score and truncates to TopK.
func normalize(in []aggregate.Keyword, opts Options) []aggregate.Keyword {
	seen := make(map[string]struct{})
	out := make([]aggregate.Keyword, 0, len(in))
	for _, k := range in {
		phrase := strings.Join(strings.Fields(k.Phrase), " ")
		if phrase == "" {
			continue
		}
		if opts.MaxNGramSize > 0 && len(strings.Fields(phrase)) > opts.MaxNGramSize {
			continue
		}
		key := strings.ToLower(phrase)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, aggregate.Keyword{Phrase: phrase, Score: k.Score})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	if opts.TopK > 0 && len(out) > opts.TopK {
		out = out[:opts.TopK]
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
