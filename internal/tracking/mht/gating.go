package mht

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// GateOutcome classifies one track/measurement evaluation.
type GateOutcome string

const (
	GateAccepted GateOutcome = "accepted" // d² within the gate
	GateRejected GateOutcome = "rejected" // d² beyond the gate
	GateSingular GateOutcome = "singular" // Innovation covariance not usable
)

var log2Pi = math.Log(2 * math.Pi)

// pairScore is the gating result for one pair. distSquared and
// logLikelihood are meaningless when singular is set.
type pairScore struct {
	distSquared   float64
	logLikelihood float64
	singular      bool
}

// scorePair computes the innovation y = z − H·x, the innovation
// covariance S = H·P·Hᵀ + R, the squared Mahalanobis distance yᵀS⁻¹y and
// the Gaussian log-density −0.5·d² − 0.5·ln((2π)^m·|S|).
//
// S is symmetrised before a Cholesky factorisation. A failed
// factorisation, a condition number above maxCond, or a non-finite
// result marks the pair singular.
func scorePair(track TrackState, meas Measurement, maxCond float64) pairScore {
	h := track.MeasurementModel
	m, _ := h.Dims()

	var predicted mat.VecDense
	predicted.MulVec(h, track.State)
	var innovation mat.VecDense
	innovation.SubVec(meas.Value, &predicted)

	var hp, hpht, s mat.Dense
	hp.Mul(h, track.Covariance)
	hpht.Mul(&hp, h.T())
	s.Add(&hpht, meas.Covariance)

	sym := mat.NewSymDense(m, nil)
	for r := 0; r < m; r++ {
		for c := r; c < m; c++ {
			sym.SetSym(r, c, 0.5*(s.At(r, c)+s.At(c, r)))
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return pairScore{singular: true}
	}
	if cond := chol.Cond(); math.IsNaN(cond) || cond > maxCond {
		return pairScore{singular: true}
	}

	var solved mat.VecDense
	if err := chol.SolveVecTo(&solved, &innovation); err != nil {
		return pairScore{singular: true}
	}
	d2 := mat.Dot(&innovation, &solved)
	logDet := chol.LogDet()
	ll := -0.5*d2 - 0.5*(float64(m)*log2Pi+logDet)

	if math.IsNaN(d2) || math.IsInf(d2, 0) || d2 < 0 || math.IsNaN(ll) || math.IsInf(ll, 0) {
		return pairScore{singular: true}
	}
	return pairScore{distSquared: d2, logLikelihood: ll}
}

// generate evaluates every track/measurement pair and returns the gated
// candidates grouped by track index, ordered within a track by ascending
// d² (ties by measurement index), plus the number of pairs excluded for
// a singular innovation covariance.
func (e *Engine) generate(f Frame) ([]Association, int) {
	var (
		candidates []Association
		excluded   int
		debugOn    = e.debug != nil && e.debug.IsEnabled()
	)

	for i, track := range f.Tracks {
		start := len(candidates)
		for j, meas := range f.Measurements {
			ps := scorePair(track, meas, e.cfg.MaxCondition)
			switch {
			case ps.singular:
				excluded++
				tracef("track %d measurement %d excluded: singular innovation covariance", i, j)
				if debugOn {
					e.debug.RecordGate(i, j, math.NaN(), GateSingular)
				}
			case ps.distSquared > e.cfg.GateThreshold:
				if debugOn {
					e.debug.RecordGate(i, j, ps.distSquared, GateRejected)
				}
			default:
				candidates = append(candidates, Association{
					TrackIndex:       i,
					MeasurementIndex: j,
					Probability:      math.Exp(ps.logLikelihood),
					LogLikelihood:    ps.logLikelihood,
					DistanceSquared:  ps.distSquared,
				})
				if debugOn {
					e.debug.RecordGate(i, j, ps.distSquared, GateAccepted)
				}
			}
		}

		group := candidates[start:]
		sort.SliceStable(group, func(a, b int) bool {
			if group[a].DistanceSquared != group[b].DistanceSquared {
				return group[a].DistanceSquared < group[b].DistanceSquared
			}
			return group[a].MeasurementIndex < group[b].MeasurementIndex
		})
	}
	return candidates, excluded
}
