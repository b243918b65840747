package jobmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	// OutcomeSkipped marks a run that found the ledger lock held by another worker.
	OutcomeSkipped = "skipped"
)

// Metrics records ledger job runs and what the mirror sweep found. A nil
// *Metrics records nothing.
type Metrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	mirrors     *prometheus.CounterVec
}

// NewMetrics builds the job collectors and registers them when registerer is
// not nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedledger_job_runs_total",
			Help: "Ledger job runs by job and outcome.",
		}, []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "feedledger_job_duration_seconds",
			Help:    "Duration of ledger job runs that did work.",
			Buckets: []float64{.05, .1, .5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "feedledger_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per job.",
		}, []string{"job"}),
		mirrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedledger_mirror_sweep_issues_total",
			Help: "Transfer mirror issues found by the repair sweep.",
		}, []string{"issue"}),
	}
	if registerer != nil {
		registerer.MustRegister(m.runs, m.duration, m.lastSuccess, m.mirrors)
	}
	return m
}

// JobRun tracks one execution of a job.
type JobRun struct {
	metrics *Metrics
	job     string
	start   time.Time
	skipped bool
}

// Start begins tracking a run of job.
func (m *Metrics) Start(job string) *JobRun {
	return &JobRun{metrics: m, job: job, start: time.Now()}
}

// Skip marks the run as having done nothing because another worker holds
// the lock.
func (r *JobRun) Skip() {
	r.skipped = true
}

// Finish records the outcome and returns err unchanged.
func (r *JobRun) Finish(err error) error {
	if r == nil || r.metrics == nil {
		return err
	}
	m := r.metrics
	switch {
	case err != nil:
		m.runs.WithLabelValues(r.job, OutcomeFailure).Inc()
	case r.skipped:
		m.runs.WithLabelValues(r.job, OutcomeSkipped).Inc()
		return nil
	default:
		m.runs.WithLabelValues(r.job, OutcomeSuccess).Inc()
		m.lastSuccess.WithLabelValues(r.job).SetToCurrentTime()
	}
	m.duration.WithLabelValues(r.job).Observe(time.Since(r.start).Seconds())
	return err
}

// MirrorSweep adds the issues one day of the sweep found.
func (m *Metrics) MirrorSweep(missing, orphans, repaired int) {
	if m == nil {
		return
	}
	for issue, count := range map[string]int{"missing": missing, "orphan": orphans, "repaired": repaired} {
		if count > 0 {
			m.mirrors.WithLabelValues(issue).Add(float64(count))
		}
	}
}
