package analysis

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/kwscout/internal/aggregate"
	"github.com/TobiSchelling/kwscout/internal/config"
	"github.com/TobiSchelling/kwscout/internal/content"
	"github.com/TobiSchelling/kwscout/internal/database"
	"github.com/TobiSchelling/kwscout/internal/keywords"
	"github.com/TobiSchelling/kwscout/internal/llm"
	"github.com/TobiSchelling/kwscout/internal/metrics"
	"github.com/TobiSchelling/kwscout/internal/serp"
)

var (
	// ErrEmptyInput is returned when a request has no text, URL or query.
	ErrEmptyInput = errors.New("nothing to analyze: provide text, a URL or a query")
	// ErrNoSources is returned when no source yielded any text.
	ErrNoSources = errors.New("no source could be analyzed")
)

// PastedTextID identifies pasted text in max_source when no URL labels it.
const PastedTextID = "pasted text"

// Request is one analysis request. Query selects SERP mode; otherwise Text or
// URL is analyzed alone as the own source.
type Request struct {
	Text     string
	URL      string
	Query    string
	Location string
}

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the outcome of a run. Run is set even when Run returns an
// error after the search step, so callers can show per-source failures.
type Result struct {
	Run    *database.Run
	Report *aggregate.Report
	Steps  []StepResult
}

// Settings tune the extraction and search for every run.
type Settings struct {
	Extraction    keywords.Options
	Search        serp.Query
	Workers       int
	SourceTimeout time.Duration
}

// Pipeline orchestrates search, content cleanup, keyword extraction and
// aggregation.
type Pipeline struct {
	cleaner   content.Cleaner
	searcher  serp.Searcher
	extractor keywords.Extractor
	settings  Settings
	metrics   *metrics.Metrics

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// New creates a pipeline wired from config. Credentials are read from the
// environment variables the config names.
func New(cfg *config.Config, m *metrics.Metrics) *Pipeline {
	var extractor keywords.Extractor
	switch strings.ToLower(cfg.Extraction.Provider) {
	case "llm":
		provider := llm.CreateProvider(
			cfg.LLM.Provider,
			cfg.LLM.Model,
			cfg.LLM.OllamaURL,
			cfg.LLM.OpenAIModel,
			config.APIKey(cfg.LLM.APIKeyEnv),
		)
		extractor = keywords.NewLLMExtractor(provider, cfg.LLM.MaxTokens)
	default:
		extractor = keywords.NewYAKEClient(cfg.Extraction.YAKEURL)
	}

	var cleaner content.Cleaner
	switch strings.ToLower(cfg.Content.Provider) {
	case "textrazor":
		cleaner = content.NewTextRazorClient(config.APIKey(cfg.Content.APIKeyEnv), cfg.Content.Timeout)
	default:
		cleaner = content.NewReadabilityCleaner(cfg.Content.Timeout, cfg.Content.UserAgent)
	}

	var searcher serp.Searcher
	switch strings.ToLower(cfg.SERP.Provider) {
	case "googlenews":
		searcher = serp.NewGoogleNewsSearcher()
	default:
		searcher = serp.NewSerpAPIClient(config.APIKey(cfg.SERP.APIKeyEnv))
	}

	settings := Settings{
		Extraction: keywords.Options{
			Language:       cfg.Extraction.Language,
			MaxNGramSize:   cfg.Extraction.MaxNGramSize,
			DedupThreshold: cfg.Extraction.DedupThreshold,
			TopK:           cfg.Extraction.TopK,
			Stopwords:      cfg.Extraction.CustomStopwords,
		},
		Search: serp.Query{
			Location:   cfg.SERP.Location,
			Language:   cfg.SERP.Language,
			Country:    cfg.SERP.Country,
			NumResults: cfg.SERP.NumResults,
		},
		Workers:       cfg.Analysis.Workers,
		SourceTimeout: cfg.Analysis.SourceTimeout,
	}

	return NewWithComponents(cleaner, searcher, extractor, settings).WithMetrics(m)
}

// NewWithComponents creates a pipeline from explicit collaborators.
// Settings.Extraction.Stopwords holds custom words added to the bundled list.
func NewWithComponents(cleaner content.Cleaner, searcher serp.Searcher, extractor keywords.Extractor, settings Settings) *Pipeline {
	if settings.Workers <= 0 {
		settings.Workers = 4
	}
	return &Pipeline{
		cleaner:   cleaner,
		searcher:  searcher,
		extractor: extractor,
		settings:  settings,
		entropy:   ulid.Monotonic(rand.Reader, 0),
		now:       time.Now,
	}
}

// WithMetrics attaches instruments to the pipeline.
func (p *Pipeline) WithMetrics(m *metrics.Metrics) *Pipeline {
	p.metrics = m
	return p
}

// job is one source waiting to be analyzed.
type job struct {
	slot  int
	url   string
	title string
	rank  *int
	text  string
	typed bool
}

// outcome is what analyzing one job produced.
type outcome struct {
	source   database.Source
	text     string
	keywords []aggregate.Keyword
	language string
	err      error
}

// Run executes one analysis.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	req.Text = strings.TrimSpace(req.Text)
	req.URL = strings.TrimSpace(req.URL)
	req.Query = strings.TrimSpace(req.Query)
	req.Location = strings.TrimSpace(req.Location)

	if req.Text == "" && req.URL == "" && req.Query == "" {
		return nil, ErrEmptyInput
	}

	run := &database.Run{
		ID:        p.newID(),
		Query:     req.Query,
		OwnURL:    req.URL,
		CreatedAt: p.now().UTC(),
	}
	switch {
	case req.Query != "":
		run.Mode = database.ModeSERP
		run.Location = req.Location
		if run.Location == "" {
			run.Location = p.settings.Search.Location
		}
	case req.Text != "":
		run.Mode = database.ModeText
	default:
		run.Mode = database.ModeURL
	}

	res := &Result{Run: run}
	err := p.run(ctx, req, res)
	p.metrics.ObserveRun(run.Mode, err)
	if err != nil {
		slog.Warn("analysis failed", "run", run.ID, "mode", run.Mode, "error", err)
		return res, err
	}
	slog.Info("analysis complete", "run", run.ID, "mode", run.Mode, "keywords", len(run.Rows))
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, req Request, res *Result) error {
	run := res.Run
	var jobs []job

	if run.Mode == database.ModeSERP {
		step, results := p.runSearch(ctx, req.Query, run.Location)
		res.Steps = append(res.Steps, step)
		if step.Err != nil {
			return step.Err
		}
		for i, r := range results {
			if i >= aggregate.CompetitorSlots {
				break
			}
			rank := i
			jobs = append(jobs, job{slot: i, url: r.URL, title: r.Title, rank: &rank})
		}
	}

	switch {
	case req.Text != "":
		jobs = append(jobs, job{slot: aggregate.OwnSlot, url: req.URL, text: req.Text, typed: true})
	case req.URL != "":
		jobs = append(jobs, job{slot: aggregate.OwnSlot, url: req.URL})
	}

	if len(jobs) == 0 {
		return ErrNoSources
	}

	step, outcomes := p.runAnalyze(ctx, jobs)
	res.Steps = append(res.Steps, step)

	step = p.runAggregate(outcomes, res)
	res.Steps = append(res.Steps, step)
	return step.Err
}

func (p *Pipeline) runSearch(ctx context.Context, query, location string) (StepResult, []serp.Result) {
	slog.Info("step 1/3: searching", "query", query, "location", location)
	q := p.settings.Search
	q.Text = query
	q.Location = location

	results, err := p.searcher.Search(ctx, q)
	if err != nil {
		return StepResult{Name: "Search", Err: fmt.Errorf("searching %q: %w", query, err)}, nil
	}
	return StepResult{
		Name:    "Search",
		Summary: fmt.Sprintf("Found %d results for %q", len(results), query),
	}, results
}

// runAnalyze fetches and extracts every job with bounded parallelism. Each
// goroutine writes only its own index, so outcomes keep job order.
func (p *Pipeline) runAnalyze(ctx context.Context, jobs []job) (StepResult, []outcome) {
	slog.Info("step 2/3: analyzing sources", "sources", len(jobs), "workers", p.settings.Workers)
	outcomes := make([]outcome, len(jobs))

	var g errgroup.Group
	g.SetLimit(p.settings.Workers)
	for i := range jobs {
		g.Go(func() error {
			outcomes[i] = p.analyzeSource(ctx, jobs[i])
			return nil
		})
	}
	g.Wait()

	failed := 0
	for _, o := range outcomes {
		if o.source.Status != database.StatusOK {
			failed++
		}
	}
	return StepResult{
		Name:    "Analyze",
		Summary: fmt.Sprintf("Analyzed %d sources, %d failed", len(jobs)-failed, failed),
	}, outcomes
}

func (p *Pipeline) analyzeSource(ctx context.Context, j job) outcome {
	start := time.Now()
	o := outcome{source: database.Source{
		Slot:  j.slot,
		URL:   j.url,
		Title: j.title,
		Rank:  j.rank,
	}}
	defer func() {
		p.metrics.ObserveSource(o.source.Status, time.Since(start), o.source.KeywordCount)
	}()

	if err := ctx.Err(); err != nil {
		o.fail(err)
		return o
	}
	if p.settings.SourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.settings.SourceTimeout)
		defer cancel()
	}

	text := j.text
	if !j.typed {
		doc, err := p.cleaner.FetchAndClean(ctx, j.url)
		if err != nil {
			slog.Warn("fetch failed", "slot", j.slot, "url", j.url, "error", err)
			o.fail(fmt.Errorf("fetching: %w", err))
			return o
		}
		text = doc.Text
		if o.source.Title == "" {
			o.source.Title = doc.Title
		}
		o.source.Entities = doc.Entities
	}

	if strings.TrimSpace(text) == "" {
		o.source.Status = database.StatusSkipped
		o.source.Error = "no text"
		return o
	}

	opts := p.settings.Extraction
	opts.Language = keywords.ResolveLanguage(opts.Language, text)
	opts.Stopwords = keywords.Stopwords(opts.Language, p.settings.Extraction.Stopwords)

	kws, err := p.extractor.Extract(ctx, text, opts)
	if err != nil {
		slog.Warn("extraction failed", "slot", j.slot, "url", j.url, "error", err)
		o.fail(fmt.Errorf("extracting keywords: %w", err))
		return o
	}

	o.text = text
	o.keywords = kws
	o.language = opts.Language
	o.source.Status = database.StatusOK
	o.source.WordCount = len(strings.Fields(text))
	o.source.KeywordCount = len(kws)
	slog.Debug("source analyzed", "slot", j.slot, "url", j.url, "words", o.source.WordCount, "keywords", len(kws))
	return o
}

func (o *outcome) fail(err error) {
	o.err = err
	o.source.Status = database.StatusFailed
	o.source.Error = err.Error()
}

// runAggregate folds outcomes in slot order.
func (p *Pipeline) runAggregate(outcomes []outcome, res *Result) StepResult {
	slog.Info("step 3/3: aggregating keywords")
	run := res.Run
	table := aggregate.NewTable()

	folded := 0
	for _, o := range outcomes {
		run.Sources = append(run.Sources, o.source)
		if o.source.Status != database.StatusOK {
			continue
		}
		if run.Language == "" {
			run.Language = o.language
		}
		sourceID := o.source.URL
		if sourceID == "" {
			sourceID = PastedTextID
		}
		table.ProcessSource(o.source.Slot, sourceID, o.source.Rank, o.text, o.keywords)
		folded++
	}

	if folded == 0 {
		return StepResult{Name: "Aggregate", Err: noSourcesError(outcomes)}
	}

	res.Report = table.Finalize()
	run.Rows = res.Report.Rows
	return StepResult{
		Name:    "Aggregate",
		Summary: fmt.Sprintf("Aggregated %d keywords from %d sources", len(run.Rows), folded),
	}
}

// noSourcesError wraps the first source failure so callers can match both
// ErrNoSources and the cause, e.g. a missing credential.
func noSourcesError(outcomes []outcome) error {
	for _, o := range outcomes {
		if o.err != nil {
			return fmt.Errorf("%w: %w", ErrNoSources, o.err)
		}
	}
	return ErrNoSources
}

func (p *Pipeline) newID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(p.now()), p.entropy).String()
}
