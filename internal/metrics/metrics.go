package metrics

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/TobiSchelling/kwscout/internal/database"
)

var savedRunsDesc = prometheus.NewDesc(
	"kwscout_saved_runs",
	"Number of analysis runs stored in the database by mode",
	[]string{"mode"},
	nil,
)

// Metrics holds the analysis instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	runs           *prometheus.CounterVec
	sources        *prometheus.CounterVec
	sourceDuration *prometheus.HistogramVec
	keywords       prometheus.Counter
}

// New creates the instruments on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kwscout_runs_total",
			Help: "Analysis runs by mode and outcome",
		}, []string{"mode", "outcome"}),
		sources: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kwscout_sources_total",
			Help: "Analyzed sources by status",
		}, []string{"status"}),
		sourceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kwscout_source_duration_seconds",
			Help:    "Time spent fetching and extracting one source",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"status"}),
		keywords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kwscout_keywords_extracted_total",
			Help: "Keywords returned by the extractor",
		}),
	}
	m.Registry.MustRegister(m.runs, m.sources, m.sourceDuration, m.keywords)
	return m
}

// WatchDatabase registers a collector that reads saved run counts from db on
// each scrape.
func (m *Metrics) WatchDatabase(db *database.DB) {
	if m == nil || db == nil {
		return
	}
	m.Registry.MustRegister(&RunCollector{db: db})
}

// ObserveRun counts a finished run.
func (m *Metrics) ObserveRun(mode string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.runs.WithLabelValues(mode, outcome).Inc()
}

// ObserveSource counts one processed source.
func (m *Metrics) ObserveSource(status string, elapsed time.Duration, keywords int) {
	if m == nil {
		return
	}
	m.sources.WithLabelValues(status).Inc()
	m.sourceDuration.WithLabelValues(status).Observe(elapsed.Seconds())
	m.keywords.Add(float64(keywords))
}

// RunCollector is a custom Prometheus collector that reports stored runs.
type RunCollector struct {
	db *database.DB
}

// Describe sends the metric descriptor to the channel.
func (c *RunCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- savedRunsDesc
}

// Collect queries the database and emits one gauge per mode.
func (c *RunCollector) Collect(ch chan<- prometheus.Metric) {
	stats, err := c.db.GetStats()
	if err != nil {
		slog.Error("failed to collect run metrics", "error", err)
		return
	}
	for _, mode := range []string{database.ModeText, database.ModeURL, database.ModeSERP} {
		ch <- prometheus.MustNewConstMetric(
			savedRunsDesc,
			prometheus.GaugeValue,
			float64(stats.RunsByMode[mode]),
			mode,
		)
	}
}
