package mht

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// posModel extracts (x, y) from a constant-velocity state [x, y, vx, vy].
func posModel() *mat.Dense {
	return mat.NewDense(2, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
	})
}

func diag(n int, v float64) *mat.Dense {
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d.Set(i, i, v)
	}
	return d
}

// track builds a track at (x, y) with covariance 0.5·I, so that with
// meas' 0.5·I noise the innovation covariance is the identity and
// d² is the squared Euclidean distance.
func track(x, y float64) TrackState {
	return TrackState{
		State:            mat.NewVecDense(4, []float64{x, y, 0, 0}),
		Covariance:       diag(4, 0.5),
		MeasurementModel: posModel(),
	}
}

func meas(x, y float64) Measurement {
	return Measurement{
		Value:      mat.NewVecDense(2, []float64{x, y}),
		Covariance: diag(2, 0.5),
	}
}

func newTestEngine(t *testing.T, mutate func(*Config)) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

// exhaustive disables pruning so the result holds every enumerated leaf.
func exhaustive(c *Config) {
	c.ConsistencyThreshold = 0
	c.MaxHypotheses = 1 << 20
}

// denseFrame scatters tracks and measurements over a small area so most
// pairs pass the gate.
func denseFrame(seed int64, nTracks, nMeas int) Frame {
	rng := rand.New(rand.NewSource(seed))
	f := Frame{}
	for i := 0; i < nTracks; i++ {
		f.Tracks = append(f.Tracks, track(rng.Float64()*3, rng.Float64()*3))
	}
	for j := 0; j < nMeas; j++ {
		f.Measurements = append(f.Measurements, meas(rng.Float64()*3, rng.Float64()*3))
	}
	return f
}

// assignmentKey renders a hypothesis as "t0=m1,t2=m0" for set comparisons.
func assignmentKey(h Hypothesis) string {
	parts := make([]string, 0, len(h.Associations))
	for _, a := range h.Associations {
		parts = append(parts, fmt.Sprintf("t%d=m%d", a.TrackIndex, a.MeasurementIndex))
	}
	return strings.Join(parts, ",")
}

func keySet(hyps []Hypothesis) []string {
	keys := make([]string, 0, len(hyps))
	for _, h := range hyps {
		keys = append(keys, assignmentKey(h))
	}
	sort.Strings(keys)
	return keys
}
