// Package metrics holds the prometheus collectors shared by the binaries.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes.
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
	RunSkipped   = "skipped"
)

// Item outcomes.
const (
	ItemProcessed = "processed"
	ItemFailed    = "failed"
)

// JobMetrics records scheduled job runs and the rows each run touched.
// A nil *JobMetrics is a no-op.
type JobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	items       *prometheus.CounterVec
}

// NewJobMetrics registers the job collectors on reg. A nil reg yields
// unregistered collectors so callers never branch on it.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	m := &JobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xymail_cron_runs_total",
			Help: "Scheduled job runs by outcome.",
		}, []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "xymail_cron_run_duration_seconds",
			Help:    "Wall time of scheduled job runs.",
			Buckets: []float64{0.05, 0.25, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "xymail_cron_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run.",
		}, []string{"job"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xymail_cron_items_total",
			Help: "Rows touched by scheduled jobs, per item kind and outcome.",
		}, []string{"job", "item", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.duration, m.lastSuccess, m.items)
	}
	return m
}

// ObserveRun records one finished run. finishedAt feeds the last-success
// gauge when outcome is RunSucceeded.
func (m *JobMetrics) ObserveRun(job, outcome string, took time.Duration, finishedAt time.Time) {
	if m == nil {
		return
	}
	job = label(job)
	m.runs.WithLabelValues(job, outcome).Inc()
	if outcome == RunSkipped {
		return
	}
	m.duration.WithLabelValues(job).Observe(took.Seconds())
	if outcome == RunSucceeded {
		m.lastSuccess.WithLabelValues(job).Set(float64(finishedAt.Unix()))
	}
}

// AddItems counts rows for one item kind. Zero counts create no series.
func (m *JobMetrics) AddItems(job, item string, processed, failed int64) {
	if m == nil {
		return
	}
	if processed > 0 {
		m.items.WithLabelValues(label(job), label(item), ItemProcessed).Add(float64(processed))
	}
	if failed > 0 {
		m.items.WithLabelValues(label(job), label(item), ItemFailed).Add(float64(failed))
	}
}

func label(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
