package mht

import (
	"time"

	"gonum.org/v1/gonum/mat"
)

// Missed is the measurement index that stands for a missed detection in
// marginal tables and hypothesis lookups.
const Missed = -1

// TrackState is one predicted track as produced by the upstream filter.
type TrackState struct {
	State      mat.Vector // Predicted state mean x (n)
	Covariance mat.Matrix // Predicted state covariance P (n×n)

	// MeasurementModel maps state space to measurement space (H, m×n).
	MeasurementModel mat.Matrix
}

// Measurement is one sensor observation for the frame.
type Measurement struct {
	Value      mat.Vector // z (m)
	Covariance mat.Matrix // R (m×m)
}

// Frame is the complete input for a single association pass.
type Frame struct {
	Tracks       []TrackState
	Measurements []Measurement
}

// NewFrame assembles a Frame from parallel slices, the layout used by
// callers that keep states, covariances and models in separate buffers.
// The slice lengths are checked here; dimensions are checked by
// Engine.ProcessFrame.
func NewFrame(tracks []mat.Vector, trackCovs []mat.Matrix, measurements []mat.Vector, measCovs []mat.Matrix, models []mat.Matrix) (Frame, error) {
	if len(trackCovs) != len(tracks) {
		return Frame{}, &ShapeError{Field: "track_covariances", Index: -1, Want: itoa(len(tracks)), Got: itoa(len(trackCovs))}
	}
	if len(models) != len(tracks) {
		return Frame{}, &ShapeError{Field: "measurement_models", Index: -1, Want: itoa(len(tracks)), Got: itoa(len(models))}
	}
	if len(measCovs) != len(measurements) {
		return Frame{}, &ShapeError{Field: "measurement_covariances", Index: -1, Want: itoa(len(measurements)), Got: itoa(len(measCovs))}
	}

	f := Frame{
		Tracks:       make([]TrackState, len(tracks)),
		Measurements: make([]Measurement, len(measurements)),
	}
	for i := range tracks {
		f.Tracks[i] = TrackState{State: tracks[i], Covariance: trackCovs[i], MeasurementModel: models[i]}
	}
	for j := range measurements {
		f.Measurements[j] = Measurement{Value: measurements[j], Covariance: measCovs[j]}
	}
	return f, nil
}

// Association is a gated track/measurement pairing. It is created by the
// generator and never modified afterwards.
type Association struct {
	TrackIndex       int     `json:"track_index"`
	MeasurementIndex int     `json:"measurement_index"`
	Probability      float64 `json:"probability"`      // Unnormalised Gaussian density exp(LogLikelihood)
	LogLikelihood    float64 `json:"log_likelihood"`   // −0.5·d² − 0.5·ln((2π)^m·|S|)
	DistanceSquared  float64 `json:"distance_squared"` // Mahalanobis d²
}

// Hypothesis is one globally consistent assignment for the frame.
// Associations are sorted by track index; any track not listed is
// missed. No track or measurement index appears twice.
type Hypothesis struct {
	Associations  []Association `json:"associations"`
	LogLikelihood float64       `json:"log_likelihood"`
	Consistency   float64       `json:"consistency"` // Softmax weight relative to the enumerated set
}

// MeasurementFor returns the measurement assigned to track, or
// (Missed, false) when the hypothesis treats the track as missed.
func (h *Hypothesis) MeasurementFor(track int) (int, bool) {
	for _, a := range h.Associations {
		if a.TrackIndex == track {
			return a.MeasurementIndex, true
		}
	}
	return Missed, false
}

// sameAssignment reports whether two hypotheses pair the same tracks
// with the same measurements.
func (h *Hypothesis) sameAssignment(o *Hypothesis) bool {
	if len(h.Associations) != len(o.Associations) {
		return false
	}
	for i := range h.Associations {
		if h.Associations[i].TrackIndex != o.Associations[i].TrackIndex ||
			h.Associations[i].MeasurementIndex != o.Associations[i].MeasurementIndex {
			return false
		}
	}
	return true
}

// MarginalEntry is the probability mass of one alternative for a track.
type MarginalEntry struct {
	MeasurementIndex int     `json:"measurement_index"` // Missed for a missed detection
	Probability      float64 `json:"probability"`
}

// TrackMarginal is the sparse marginal distribution for one track.
// Entries are ordered Missed first, then by ascending measurement index.
type TrackMarginal struct {
	TrackIndex int             `json:"track_index"`
	Entries    []MarginalEntry `json:"entries"`
}

// Probability returns the mass for a measurement index (or Missed).
func (m TrackMarginal) Probability(measurement int) float64 {
	for _, e := range m.Entries {
		if e.MeasurementIndex == measurement {
			return e.Probability
		}
	}
	return 0
}

// Total returns the summed mass over all entries. Because the missed
// entry is seeded with pd_false this is generally not 1.
func (m TrackMarginal) Total() float64 {
	var sum float64
	for _, e := range m.Entries {
		sum += e.Probability
	}
	return sum
}

// SearchStats describes one ProcessFrame call.
type SearchStats struct {
	Tracks       int `json:"tracks"`
	Measurements int `json:"measurements"`
	Candidates   int `json:"candidates"` // Pairs that passed the gate
	Excluded     int `json:"excluded"`   // Pairs dropped for a singular innovation covariance
	Nodes        int `json:"nodes"`      // Arena size including the root
	Leaves       int `json:"leaves"`
	Enumerated   int `json:"enumerated"` // Hypotheses before pruning
	Survivors    int `json:"survivors"`  // Hypotheses after pruning

	Truncated        bool          `json:"truncated"`
	TruncationReason string        `json:"truncation_reason,omitempty"`
	Elapsed          time.Duration `json:"elapsed_ns"`
}

// FrameResult is the output of Engine.ProcessFrame.
type FrameResult struct {
	Hypotheses []Hypothesis  `json:"hypotheses"` // Pruned, ranked by descending log-likelihood
	Candidates []Association `json:"candidates"`
	Stats      SearchStats   `json:"stats"`
}

// Best returns the highest ranked hypothesis, or nil if none survived.
func (r *FrameResult) Best() *Hypothesis {
	if r == nil || len(r.Hypotheses) == 0 {
		return nil
	}
	return &r.Hypotheses[0]
}
