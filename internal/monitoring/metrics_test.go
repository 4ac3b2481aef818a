package monitoring

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fixtures "github.com/banshee-data/hypotrack/internal/testutil"
	"github.com/banshee-data/hypotrack/internal/tracking/mht"
)

func TestFrameMetrics_ObserveFrame(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewFrameMetrics(reg)

	m.ObserveFrame(mht.SearchStats{Candidates: 4, Nodes: 9, Survivors: 3, Excluded: 1, Elapsed: time.Millisecond})
	m.ObserveFrame(mht.SearchStats{Candidates: 2, Nodes: 12, Survivors: 1, Excluded: 2, Truncated: true})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.frames.WithLabelValues(OutcomeComplete)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.frames.WithLabelValues(OutcomeTruncated)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.excluded))

	expected := `
# HELP hypotrack_mht_singular_pairs_total Track/measurement pairs excluded for a singular innovation covariance.
# TYPE hypotrack_mht_singular_pairs_total counter
hypotrack_mht_singular_pairs_total 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "hypotrack_mht_singular_pairs_total"))

	count, err := testutil.GatherAndCount(reg, "hypotrack_mht_search_nodes")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFrameMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewFrameMetrics(reg)
	assert.Panics(t, func() { NewFrameMetrics(reg) })
}

func TestFrameMetrics_WiredIntoEngine(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewFrameMetrics(reg)

	e, err := mht.NewEngine(mht.DefaultConfig(), mht.WithMetrics(m))
	require.NoError(t, err)

	f := fixtures.Frame([]fixtures.Point{{X: 0, Y: 0}}, []fixtures.Point{{X: 0.5, Y: 0.5}})
	for i := 0; i < 3; i++ {
		_, err := e.ProcessFrame(context.Background(), f)
		require.NoError(t, err)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.frames.WithLabelValues(OutcomeComplete)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.frames.WithLabelValues(OutcomeTruncated)))
}
