// Package metrics exposes run counters on a private Prometheus registry. Cron-style
// deployments dump the registry to a node_exporter textfile after each run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "crashwatch"

// Incident outcomes.
const (
	OutcomePosted       = "posted"
	OutcomeDuplicate    = "duplicate"
	OutcomePostFailed   = "post_failed"
	OutcomeUnclassified = "unclassified"
	OutcomeSkipped      = "skipped"
)

type Metrics struct {
	Registry *prometheus.Registry

	incidents    *prometheus.CounterVec
	posts        *prometheus.CounterVec
	feedAlerts   prometheus.Gauge
	lastRun      prometheus.Gauge
	monthlyCount *prometheus.GaugeVec
	runDuration  prometheus.Summary
}

func New() *Metrics {
	m := &Metrics{Registry: prometheus.NewRegistry()}
	m.incidents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "incidents_total",
		Help:      "Feed incidents by roadway and outcome",
	}, []string{"roadway", "outcome"})
	m.posts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "posts_total",
		Help:      "Bluesky post attempts by roadway, kind and status",
	}, []string{"roadway", "kind", "status"})
	m.feedAlerts = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "feed_alerts",
		Help:      "Alerts returned by the last feed fetch",
	})
	m.lastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last run finished",
	})
	m.monthlyCount = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "monthly_count",
		Help:      "Current monthly incident counter",
	}, []string{"roadway"})
	m.runDuration = prometheus.NewSummary(prometheus.SummaryOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of a full run",
	})
	m.Registry.MustRegister(m.incidents, m.posts, m.feedAlerts, m.lastRun, m.monthlyCount, m.runDuration)
	return m
}

func (m *Metrics) Incident(roadway, outcome string) {
	m.incidents.WithLabelValues(roadway, outcome).Inc()
}

func (m *Metrics) Post(roadway, kind, status string) {
	m.posts.WithLabelValues(roadway, kind, status).Inc()
}

func (m *Metrics) FeedAlerts(n int) {
	m.feedAlerts.Set(float64(n))
}

func (m *Metrics) MonthlyCount(roadway string, n int) {
	m.monthlyCount.WithLabelValues(roadway).Set(float64(n))
}

// RunFinished records the end time and duration of a run.
func (m *Metrics) RunFinished(started, finished time.Time) {
	m.lastRun.Set(float64(finished.Unix()))
	m.runDuration.Observe(finished.Sub(started).Seconds())
}

// WriteTextfile dumps the registry in the textfile collector format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
