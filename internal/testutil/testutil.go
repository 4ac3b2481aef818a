// Package testutil provides shared frame fixtures for packages that drive
// the association engine in their tests.
package testutil

import (
	"context"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/hypotrack/internal/tracking/mht"
)

// Point is a 2-D position.
type Point struct{ X, Y float64 }

// halfIdentity is used for both track and measurement covariance so the
// innovation covariance is the identity and d² is squared distance.
func halfIdentity() *mat.Dense {
	return mat.NewDense(2, 2, []float64{0.5, 0, 0, 0.5})
}

// Track returns a position-only track at (x, y).
func Track(x, y float64) mht.TrackState {
	return mht.TrackState{
		State:            mat.NewVecDense(2, []float64{x, y}),
		Covariance:       halfIdentity(),
		MeasurementModel: mat.NewDense(2, 2, []float64{1, 0, 0, 1}),
	}
}

// Measurement returns a measurement at (x, y).
func Measurement(x, y float64) mht.Measurement {
	return mht.Measurement{
		Value:      mat.NewVecDense(2, []float64{x, y}),
		Covariance: halfIdentity(),
	}
}

// Frame builds a frame from track and measurement positions.
func Frame(tracks, measurements []Point) mht.Frame {
	f := mht.Frame{
		Tracks:       make([]mht.TrackState, 0, len(tracks)),
		Measurements: make([]mht.Measurement, 0, len(measurements)),
	}
	for _, p := range tracks {
		f.Tracks = append(f.Tracks, Track(p.X, p.Y))
	}
	for _, p := range measurements {
		f.Measurements = append(f.Measurements, Measurement(p.X, p.Y))
	}
	return f
}

// TwoTrackFrame has two nearby tracks, one measurement close to each, and
// one clutter measurement far outside every gate.
func TwoTrackFrame() mht.Frame {
	return Frame(
		[]Point{{0, 0}, {1, 1}},
		[]Point{{0.2, 0.1}, {1.1, 0.8}, {20, 20}},
	)
}

// NewEngine returns an engine with the default configuration.
func NewEngine(t testing.TB, opts ...mht.Option) *mht.Engine {
	t.Helper()
	e, err := mht.NewEngine(mht.DefaultConfig(), opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

// Process runs one frame through e and computes its marginals, failing
// the test on any error.
func Process(t testing.TB, e *mht.Engine, f mht.Frame) (*mht.FrameResult, []mht.TrackMarginal) {
	t.Helper()
	res, err := e.ProcessFrame(context.Background(), f)
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	marginals, err := e.CalculateMarginalProbabilities(res.Hypotheses, len(f.Tracks), len(f.Measurements))
	if err != nil {
		t.Fatalf("CalculateMarginalProbabilities: %v", err)
	}
	return res, marginals
}
