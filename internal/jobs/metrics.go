package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
	uncosted *prometheus.CounterVec
	skipped  *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sellerpulse_job_runs_total",
			Help: "Background job runs by job name and status.",
		}, []string{"job", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sellerpulse_job_failures_total",
			Help: "Background job failures by job name.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sellerpulse_job_duration_seconds",
			Help:    "Background job duration by job name.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		uncosted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sellerpulse_rollup_uncosted_lines_total",
			Help: "Sale lines aggregated with zero cost because no product matched.",
		}, []string{"client"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sellerpulse_rollup_dates_skipped_total",
			Help: "Rollup dates rolled back and skipped due to errors.",
		}, []string{"client"}),
	}
	registerer.MustRegister(m.runs, m.failures, m.duration, m.uncosted, m.skipped)
	return m
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddUncosted increments the uncosted-line counter for a client scope.
func (m *Metrics) AddUncosted(client string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.uncosted.WithLabelValues(client).Add(float64(count))
}

// AddSkippedDates increments the skipped-date counter for a client scope.
func (m *Metrics) AddSkippedDates(client string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.skipped.WithLabelValues(client).Add(float64(count))
}
