package database

import (
	"time"

	"github.com/TobiSchelling/kwscout/internal/aggregate"
)

// Analysis modes.
const (
	ModeText = "text"
	ModeURL  = "url"
	ModeSERP = "serp"
)

// Source statuses.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Run is a saved analysis snapshot.
type Run struct {
	ID        string
	Mode      string
	Query     string
	Location  string
	OwnURL    string
	Language  string
	CreatedAt time.Time
	Sources   []Source
	Rows      []aggregate.Row
}

// Source records what happened to one analyzed document.
type Source struct {
	Slot         int
	URL          string
	Title        string
	Rank         *int
	Status       string
	Error        string
	WordCount    int
	KeywordCount int
	Entities     []string
}

// RunSummary is a run without its sources and rows, for listings.
type RunSummary struct {
	ID           string
	Mode         string
	Query        string
	OwnURL       string
	Language     string
	KeywordCount int
	CreatedAt    time.Time
}

// Stats holds aggregate statistics across all saved runs.
type Stats struct {
	Runs           int
	RunsByMode     map[string]int
	Sources        int
	FailedSources  int
	Keywords       int
	DistinctPhrase int
}

// Report returns the run's rows with the derived 2-word and 3-word views.
func (r *Run) Report() *aggregate.Report {
	return aggregate.NewReport(r.Rows)
}

// Label returns a short human description of the run.
func (r *Run) Label() string {
	switch {
	case r.Query != "":
		return r.Query
	case r.OwnURL != "":
		return r.OwnURL
	default:
		return "pasted text"
	}
}

// Label returns a short human description of the run.
func (s RunSummary) Label() string {
	r := Run{Query: s.Query, OwnURL: s.OwnURL}
	return r.Label()
}
