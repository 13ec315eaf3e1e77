// Package metrics provides Prometheus metrics for digest runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "techdigest"

// Recorder holds the digest metrics registered on one registry.
type Recorder struct {
	// RunsTotal counts runs by status (ok, error).
	RunsTotal *prometheus.CounterVec
	// RunDuration measures whole-run duration.
	RunDuration prometheus.Histogram
	// FeedsFetched is the number of non-empty feeds in the last run.
	FeedsFetched prometheus.Gauge
	// Articles counts articles per pipeline stage.
	Articles *prometheus.CounterVec
	// SummariesTotal counts summaries by the provider that produced them.
	SummariesTotal *prometheus.CounterVec
	// EmailsTotal counts delivery attempts by status.
	EmailsTotal *prometheus.CounterVec
}

// NewRecorder registers the digest metrics on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of digest runs",
			},
			[]string{"status"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of digest runs in seconds",
				Buckets:   []float64{5, 15, 30, 60, 120, 300, 600},
			},
		),
		FeedsFetched: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "feeds_fetched",
				Help:      "Number of non-empty feeds in the last run",
			},
		),
		Articles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "articles_total",
				Help:      "Articles seen per pipeline stage",
			},
			[]string{"stage"},
		),
		SummariesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "summaries_total",
				Help:      "Summaries by producing source",
			},
			[]string{"source"},
		),
		EmailsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "emails_total",
				Help:      "Digest email deliveries by status",
			},
			[]string{"status"},
		),
	}
}

// RecordRun records a finished run.
func (r *Recorder) RecordRun(status string, duration time.Duration) {
	r.RunsTotal.WithLabelValues(status).Inc()
	r.RunDuration.Observe(duration.Seconds())
}

// RecordStage adds n articles to a pipeline stage.
func (r *Recorder) RecordStage(stage string, n int) {
	r.Articles.WithLabelValues(stage).Add(float64(n))
}

// ObserveSummary counts one summary from source.
func (r *Recorder) ObserveSummary(source string) {
	r.SummariesTotal.WithLabelValues(source).Inc()
}

// RecordEmail records a delivery outcome.
func (r *Recorder) RecordEmail(sent bool) {
	status := "failed"
	if sent {
		status = "sent"
	}
	r.EmailsTotal.WithLabelValues(status).Inc()
}
