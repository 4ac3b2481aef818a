package mht

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestScorePair_IdentityInnovationCovariance(t *testing.T) {
	ps := scorePair(track(0, 0), meas(3, 4), 1e12)
	require.False(t, ps.singular)

	// S = I, so d² is the squared Euclidean distance and |S| = 1.
	assert.InDelta(t, 25.0, ps.distSquared, 1e-9)
	assert.InDelta(t, -12.5-math.Log(2*math.Pi), ps.logLikelihood, 1e-9)
}

func TestScorePair_CorrelatedCovariance(t *testing.T) {
	tr := TrackState{
		State:            mat.NewVecDense(2, []float64{1, 2}),
		Covariance:       mat.NewDense(2, 2, []float64{2, 0.5, 0.5, 1}),
		MeasurementModel: diag(2, 1),
	}
	m := Measurement{
		Value:      mat.NewVecDense(2, []float64{2, 1}),
		Covariance: diag(2, 1),
	}

	ps := scorePair(tr, m, 1e12)
	require.False(t, ps.singular)

	// S = [[3, 0.5], [0.5, 2]], |S| = 5.75, y = [1, -1].
	// S⁻¹ = [[2, -0.5], [-0.5, 3]] / 5.75, so yᵀS⁻¹y = (2 + 1 + 3) / 5.75.
	wantD2 := 6.0 / 5.75
	assert.InDelta(t, wantD2, ps.distSquared, 1e-9)
	assert.InDelta(t, -0.5*wantD2-0.5*(2*math.Log(2*math.Pi)+math.Log(5.75)), ps.logLikelihood, 1e-9)
}

func TestScorePair_Singular(t *testing.T) {
	tests := []struct {
		name  string
		track TrackState
		meas  Measurement
	}{
		{
			name: "zero covariances",
			track: TrackState{
				State:            mat.NewVecDense(2, []float64{0, 0}),
				Covariance:       mat.NewDense(2, 2, nil),
				MeasurementModel: diag(2, 1),
			},
			meas: Measurement{Value: mat.NewVecDense(2, []float64{0.1, 0}), Covariance: mat.NewDense(2, 2, nil)},
		},
		{
			name: "rank deficient",
			track: TrackState{
				State:            mat.NewVecDense(2, []float64{0, 0}),
				Covariance:       mat.NewDense(2, 2, []float64{1, 1, 1, 1}),
				MeasurementModel: diag(2, 1),
			},
			meas: Measurement{Value: mat.NewVecDense(2, []float64{0.1, 0}), Covariance: mat.NewDense(2, 2, nil)},
		},
		{
			name: "ill conditioned",
			track: TrackState{
				State:            mat.NewVecDense(2, []float64{0, 0}),
				Covariance:       mat.NewDense(2, 2, []float64{1e8, 0, 0, 1e-8}),
				MeasurementModel: diag(2, 1),
			},
			meas: Measurement{Value: mat.NewVecDense(2, []float64{0.1, 0}), Covariance: mat.NewDense(2, 2, nil)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := scorePair(tt.track, tt.meas, 1e12)
			assert.True(t, ps.singular)
		})
	}
}

func TestGenerate_GroupsAndOrdersByDistance(t *testing.T) {
	e := newTestEngine(t, nil)
	f := Frame{
		Tracks:       []TrackState{track(0, 0), track(20, 20)},
		Measurements: []Measurement{meas(2, 0), meas(1, 0), meas(20, 20.5), meas(50, 50)},
	}

	cands, excluded, err := e.Generate(f)
	require.NoError(t, err)
	assert.Zero(t, excluded)
	require.Len(t, cands, 3)

	assert.Equal(t, 0, cands[0].TrackIndex)
	assert.Equal(t, 1, cands[0].MeasurementIndex, "closest measurement first")
	assert.Equal(t, 0, cands[1].TrackIndex)
	assert.Equal(t, 0, cands[1].MeasurementIndex)
	assert.Equal(t, 1, cands[2].TrackIndex)
	assert.Equal(t, 2, cands[2].MeasurementIndex)

	for _, a := range cands {
		assert.LessOrEqual(t, a.DistanceSquared, e.Config().GateThreshold)
		assert.InDelta(t, math.Exp(a.LogLikelihood), a.Probability, 1e-15)
	}
}

func TestGenerate_ExcludesSingularPairs(t *testing.T) {
	e := newTestEngine(t, nil)
	singular := TrackState{
		State:            mat.NewVecDense(2, []float64{0, 0}),
		Covariance:       mat.NewDense(2, 2, nil),
		MeasurementModel: diag(2, 1),
	}
	f := Frame{
		Tracks:       []TrackState{singular},
		Measurements: []Measurement{{Value: mat.NewVecDense(2, []float64{0, 0}), Covariance: mat.NewDense(2, 2, nil)}},
	}

	cands, excluded, err := e.Generate(f)
	require.NoError(t, err)
	assert.Empty(t, cands)
	assert.Equal(t, 1, excluded)

	res, err := e.ProcessFrame(t.Context(), f)
	require.NoError(t, err)
	require.Len(t, res.Hypotheses, 1)
	assert.Empty(t, res.Hypotheses[0].Associations)
	assert.False(t, math.IsNaN(res.Hypotheses[0].LogLikelihood))
	assert.Equal(t, 1, res.Stats.Excluded)
}

func TestGenerate_ShapeError(t *testing.T) {
	e := newTestEngine(t, nil)
	f := Frame{
		Tracks:       []TrackState{track(0, 0)},
		Measurements: []Measurement{{Value: mat.NewVecDense(3, nil), Covariance: diag(3, 1)}},
	}
	_, _, err := e.Generate(f)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}
