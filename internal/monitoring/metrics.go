package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/banshee-data/hypotrack/internal/tracking/mht"
)

const metricsNamespace = "hypotrack"

// Frame outcome label values.
const (
	OutcomeComplete  = "complete"
	OutcomeTruncated = "truncated"
)

// FrameMetrics exports per-frame association statistics to Prometheus.
// It implements mht.MetricsRecorder.
type FrameMetrics struct {
	frames     *prometheus.CounterVec
	excluded   prometheus.Counter
	candidates prometheus.Histogram
	nodes      prometheus.Histogram
	survivors  prometheus.Histogram
	duration   prometheus.Histogram
}

var _ mht.MetricsRecorder = (*FrameMetrics)(nil)

// NewFrameMetrics creates the collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them on the default
// /metrics handler, or a fresh registry in tests.
func NewFrameMetrics(reg prometheus.Registerer) *FrameMetrics {
	m := &FrameMetrics{
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "mht",
			Name:      "frames_total",
			Help:      "Frames processed by the association engine, by search outcome.",
		}, []string{"outcome"}),
		excluded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "mht",
			Name:      "singular_pairs_total",
			Help:      "Track/measurement pairs excluded for a singular innovation covariance.",
		}),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "mht",
			Name:      "gated_candidates",
			Help:      "Gated candidate associations per frame.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		nodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "mht",
			Name:      "search_nodes",
			Help:      "Hypothesis tree nodes allocated per frame.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		survivors: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "mht",
			Name:      "surviving_hypotheses",
			Help:      "Hypotheses kept after pruning per frame.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "mht",
			Name:      "frame_duration_seconds",
			Help:      "Wall time of one ProcessFrame call.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),
	}
	reg.MustRegister(m.frames, m.excluded, m.candidates, m.nodes, m.survivors, m.duration)
	return m
}

// ObserveFrame records one ProcessFrame call.
func (m *FrameMetrics) ObserveFrame(stats mht.SearchStats) {
	outcome := OutcomeComplete
	if stats.Truncated {
		outcome = OutcomeTruncated
	}
	m.frames.WithLabelValues(outcome).Inc()
	m.excluded.Add(float64(stats.Excluded))
	m.candidates.Observe(float64(stats.Candidates))
	m.nodes.Observe(float64(stats.Nodes))
	m.survivors.Observe(float64(stats.Survivors))
	m.duration.Observe(stats.Elapsed.Seconds())
}
