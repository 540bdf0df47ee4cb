package server

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/kwscout/internal/aggregate"
	"github.com/TobiSchelling/kwscout/internal/analysis"
	"github.com/TobiSchelling/kwscout/internal/content"
	"github.com/TobiSchelling/kwscout/internal/database"
	"github.com/TobiSchelling/kwscout/internal/export"
	"github.com/TobiSchelling/kwscout/internal/metrics"
	"github.com/TobiSchelling/kwscout/internal/serp"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// recentRuns is how many saved runs the index page lists.
const recentRuns = 20

// analyzeTimeout bounds one analysis triggered from the form.
const analyzeTimeout = 3 * time.Minute

// Analyzer runs one keyword analysis.
type Analyzer interface {
	Run(ctx context.Context, req analysis.Request) (*analysis.Result, error)
}

// Server is the HTTP server for running and browsing analyses.
type Server struct {
	db       *database.DB
	analyzer Analyzer
	metrics  *metrics.Metrics
	pages    map[string]*template.Template
	mux      *http.ServeMux
}

// New creates a new Server. m may be nil, which disables /metrics.
func New(db *database.DB, analyzer Analyzer, m *metrics.Metrics) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown":  renderMarkdown,
		"score":     export.FormatScore,
		"mean":      export.FormatMean,
		"rank":      export.FormatRank,
		"slotLabel": export.SlotLabel,
		"date": func(t time.Time) string {
			return t.Local().Format("2006-01-02 15:04")
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the clone.
	// This gives each page its own {{define "content"}} and {{define "title"}}.
	pageNames := []string{"index.html", "run.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, analyzer: analyzer, metrics: m, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	if s.metrics != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	}

	// Routes
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /analyze", s.handleAnalyze)
	s.mux.HandleFunc("GET /runs/{id}", s.handleRun)
	s.mux.HandleFunc("GET /runs/{id}/{file}", s.handleExport)
	s.mux.HandleFunc("POST /runs/{id}/delete", s.handleDelete)
}

// formValues holds the analysis form, echoed back when a run fails.
type formValues struct {
	Text     string
	URL      string
	Query    string
	Location string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderIndex(w, http.StatusOK, formValues{}, "", nil)
}

func (s *Server) renderIndex(w http.ResponseWriter, status int, form formValues, warning string, sources []database.Source) {
	runs, err := s.db.ListRuns(recentRuns)
	if err != nil {
		slog.Error("listing runs", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	stats, err := s.db.GetStats()
	if err != nil {
		slog.Error("reading stats", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.renderStatus(w, status, "index.html", map[string]any{
		"Runs":    runs,
		"Stats":   stats,
		"Form":    form,
		"Warning": warning,
		"Sources": sources,
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	form := formValues{
		Text:     r.FormValue("text"),
		URL:      strings.TrimSpace(r.FormValue("url")),
		Query:    strings.TrimSpace(r.FormValue("query")),
		Location: strings.TrimSpace(r.FormValue("location")),
	}

	ctx, cancel := context.WithTimeout(r.Context(), analyzeTimeout)
	defer cancel()

	res, err := s.analyzer.Run(ctx, analysis.Request{
		Text:     form.Text,
		URL:      form.URL,
		Query:    form.Query,
		Location: form.Location,
	})
	if err != nil {
		var sources []database.Source
		if res != nil && res.Run != nil {
			sources = res.Run.Sources
		}
		status := http.StatusBadGateway
		if errors.Is(err, analysis.ErrEmptyInput) {
			status = http.StatusBadRequest
		}
		s.renderIndex(w, status, form, warningFor(err), sources)
		return
	}

	if err := s.db.SaveRun(res.Run); err != nil {
		slog.Error("saving run", "run", res.Run.ID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/runs/"+res.Run.ID, http.StatusSeeOther)
}

// warningFor turns an analysis error into a message for the form page.
func warningFor(err error) string {
	switch {
	case errors.Is(err, analysis.ErrEmptyInput):
		return "Enter some text, a URL or a search query to analyze."
	case errors.Is(err, serp.ErrMissingCredential):
		return "No search API key is configured. Export the key named by serp.api_key_env, or set serp.provider to googlenews."
	case errors.Is(err, content.ErrMissingCredential):
		return "No content API key is configured. Export the key named by content.api_key_env, or set content.provider to readability."
	case errors.Is(err, analysis.ErrNoSources):
		return "None of the sources could be analyzed. See the details below."
	default:
		return "Analysis failed: " + err.Error()
	}
}

// column is a sortable table header.
type column struct {
	Label  string
	URL    string
	Active bool
	Desc   bool
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	view := q.Get("view")
	key := q.Get("sort")
	if key == "" {
		key = "total"
	}
	desc := q.Get("order") != "asc"

	rows := run.Rows
	switch view {
	case "2":
		rows = aggregate.FilterByWordCount(rows, 2)
	case "3":
		rows = aggregate.FilterByWordCount(rows, 3)
	default:
		view = "all"
	}

	rows, err := export.SortRows(rows, key, desc)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	labels := map[string]string{
		"keyword": "Keyword", "score": "Score", "total": "Total",
		"max": "Max", "rank": "Rank", "mean": "Mean top 3",
	}
	columns := make(map[string]column, len(labels))
	for k, label := range labels {
		next := "desc"
		if k == key && desc {
			next = "asc"
		}
		v := url.Values{"sort": {k}, "order": {next}, "view": {view}}
		columns[k] = column{Label: label, URL: "?" + v.Encode(), Active: k == key, Desc: desc}
	}

	competitors := make([]int, aggregate.CompetitorSlots)
	for i := range competitors {
		competitors[i] = i
	}

	s.render(w, "run.html", map[string]any{
		"Run":         run,
		"Rows":        rows,
		"View":        view,
		"Sort":        key,
		"Desc":        desc,
		"Columns":     columns,
		"Competitors": competitors,
		"Summary":     export.Summary(run),
		"Exports":     exportLinks(run.ID, key, desc),
	})
}

// exportLinks returns download URLs that keep the current sort order.
func exportLinks(id, key string, desc bool) map[string]string {
	order := "desc"
	if !desc {
		order = "asc"
	}
	q := url.Values{"sort": {key}, "order": {order}}.Encode()
	links := make(map[string]string, 3)
	for _, ext := range []string{"csv", "md", "docx"} {
		links[ext] = "/runs/" + id + "/export." + ext + "?" + q
	}
	return links
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}

	rows := run.Rows
	if key := r.URL.Query().Get("sort"); key != "" {
		sorted, err := export.SortRows(rows, key, r.URL.Query().Get("order") != "asc")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rows = sorted
	}

	base := "kwscout_" + run.ID
	switch r.PathValue("file") {
	case "export.csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", attachment(base+".csv"))
		if err := export.WriteCSV(w, rows); err != nil {
			slog.Error("writing csv", "run", run.ID, "error", err)
		}
	case "export.md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("Content-Disposition", attachment(base+".md"))
		if err := export.WriteMarkdown(w, run, rows, 0); err != nil {
			slog.Error("writing markdown", "run", run.ID, "error", err)
		}
	case "export.docx":
		s.serveDOCX(w, run, rows, base+".docx")
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) serveDOCX(w http.ResponseWriter, run *database.Run, rows []aggregate.Row, name string) {
	dir, err := os.MkdirTemp("", "kwscout-docx-")
	if err != nil {
		slog.Error("creating temp dir", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, name)
	if err := export.SaveDOCX(path, run, rows, 0); err != nil {
		slog.Error("writing docx", "run", run.ID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("reading docx", "run", run.ID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	w.Header().Set("Content-Disposition", attachment(name))
	w.Write(data)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.db.DeleteRun(id); err != nil && !errors.Is(err, database.ErrRunNotFound) {
		slog.Error("deleting run", "run", id, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) loadRun(w http.ResponseWriter, r *http.Request) (*database.Run, bool) {
	run, err := s.db.GetRun(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, database.ErrRunNotFound) {
			http.NotFound(w, r)
			return nil, false
		}
		slog.Error("loading run", "run", r.PathValue("id"), "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return nil, false
	}
	return run, true
}

func attachment(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	s.renderStatus(w, http.StatusOK, name, data)
}

func (s *Server) renderStatus(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		slog.Error("template not found", "template", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		slog.Error("rendering template", "template", name, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, analyzer Analyzer, m *metrics.Metrics, port int) error {
	srv, err := New(db, analyzer, m)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	slog.Info("server listening", "url", "http://"+addr)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return httpServer.ListenAndServe()
}
