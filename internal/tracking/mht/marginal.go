package mht

import (
	"fmt"
	"math"
	"sort"
)

// CalculateMarginalProbabilities aggregates hyps into one sparse
// distribution per track over {measurement, Missed}. Every hypothesis
// must be exclusive: a track or measurement index listed twice in one
// hypothesis is a *ShapeError.
//
// Weights are exp(L) / Σ exp(L_j) using raw exponentials, unlike the
// max-subtracted softmax behind Hypothesis.Consistency. Very negative
// log-likelihoods therefore underflow here first; that case returns
// ErrMarginalUnderflow instead of dividing by zero.
//
// Each track's Missed entry is seeded with pd_false before the
// hypothesis weights are added, so a track's entries generally sum to
// more than 1.
func (e *Engine) CalculateMarginalProbabilities(hyps []Hypothesis, numTracks, numMeasurements int) ([]TrackMarginal, error) {
	if numTracks < 0 {
		return nil, &ShapeError{Field: "num_tracks", Index: -1, Want: ">= 0", Got: itoa(numTracks)}
	}
	if numMeasurements < 0 {
		return nil, &ShapeError{Field: "num_measurements", Index: -1, Want: ">= 0", Got: itoa(numMeasurements)}
	}
	// Stamped with k+1 so the slices are reused across hypotheses.
	trackSeen := make([]int, numTracks)
	measSeen := make([]int, numMeasurements)
	for k := range hyps {
		for _, a := range hyps[k].Associations {
			if a.TrackIndex < 0 || a.TrackIndex >= numTracks {
				return nil, &ShapeError{Field: "hypotheses.track_index", Index: k, Want: "< " + itoa(numTracks), Got: itoa(a.TrackIndex)}
			}
			if a.MeasurementIndex < 0 || a.MeasurementIndex >= numMeasurements {
				return nil, &ShapeError{Field: "hypotheses.measurement_index", Index: k, Want: "< " + itoa(numMeasurements), Got: itoa(a.MeasurementIndex)}
			}
			if trackSeen[a.TrackIndex] == k+1 {
				return nil, &ShapeError{Field: "hypotheses.track_index", Index: k, Want: "unique", Got: "duplicate " + itoa(a.TrackIndex)}
			}
			if measSeen[a.MeasurementIndex] == k+1 {
				return nil, &ShapeError{Field: "hypotheses.measurement_index", Index: k, Want: "unique", Got: "duplicate " + itoa(a.MeasurementIndex)}
			}
			trackSeen[a.TrackIndex] = k + 1
			measSeen[a.MeasurementIndex] = k + 1
		}
	}

	var normalization float64
	for k := range hyps {
		normalization += math.Exp(hyps[k].LogLikelihood)
	}
	if len(hyps) > 0 && (normalization == 0 || math.IsInf(normalization, 0) || math.IsNaN(normalization)) {
		opsf("marginal normalization is %g over %d hypotheses", normalization, len(hyps))
		return nil, fmt.Errorf("%w: sum of exp(log-likelihood) over %d hypotheses is %g", ErrMarginalUnderflow, len(hyps), normalization)
	}

	pdFalse := e.cfg.PDFalse()
	tables := make([]map[int]float64, numTracks)
	for i := range tables {
		tables[i] = map[int]float64{Missed: pdFalse}
	}

	assigned := make([]int, numTracks)
	for k := range hyps {
		weight := math.Exp(hyps[k].LogLikelihood) / normalization
		for i := range assigned {
			assigned[i] = Missed
		}
		for _, a := range hyps[k].Associations {
			assigned[a.TrackIndex] = a.MeasurementIndex
		}
		for i, m := range assigned {
			tables[i][m] += weight
		}
	}

	out := make([]TrackMarginal, numTracks)
	for i, table := range tables {
		entries := make([]MarginalEntry, 0, len(table))
		for m, p := range table {
			if p == 0 {
				continue
			}
			entries = append(entries, MarginalEntry{MeasurementIndex: m, Probability: p})
		}
		sort.Slice(entries, func(a, b int) bool { return entries[a].MeasurementIndex < entries[b].MeasurementIndex })
		out[i] = TrackMarginal{TrackIndex: i, Entries: entries}
	}
	return out, nil
}
