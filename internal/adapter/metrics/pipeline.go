package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics holds Prometheus metrics for the submission pipeline.
// A nil *PipelineMetrics records nothing.
type PipelineMetrics struct {
	Submissions        *prometheus.CounterVec
	SubmissionDuration *prometheus.HistogramVec
	Gaps               *prometheus.CounterVec
	DiffRecords        *prometheus.CounterVec
}

// NewPipelineMetrics creates and registers pipeline metrics on the given registry.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "submissions_total",
			Help:      "Total number of submissions, by request variant and outcome.",
		}, []string{"variant", "outcome"}),
		SubmissionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "submission_duration_seconds",
			Help:      "Duration of submissions from request to persisted session.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"variant"}),
		Gaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "gaps_total",
			Help:      "Total number of fonts that could not be fetched or parsed, by side and stage.",
		}, []string{"side", "stage"}),
		DiffRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "diff_records_total",
			Help:      "Total number of diff records produced, by view and status.",
		}, []string{"view", "status"}),
	}

	reg.MustRegister(m.Submissions, m.SubmissionDuration, m.Gaps, m.DiffRecords)
	return m
}

func (m *PipelineMetrics) ObserveSubmission(variant, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(variant, outcome).Inc()
	m.SubmissionDuration.WithLabelValues(variant).Observe(d.Seconds())
}

func (m *PipelineMetrics) ObserveGap(side, stage string) {
	if m == nil {
		return
	}
	m.Gaps.WithLabelValues(side, stage).Inc()
}

func (m *PipelineMetrics) ObserveRecord(view, status string) {
	if m == nil {
		return
	}
	m.DiffRecords.WithLabelValues(view, status).Inc()
}
