package mht

import "sort"

// pruneHypotheses sorts by descending log-likelihood, drops hypotheses
// whose consistency is below threshold and keeps at most maxHypotheses.
// It reorders hyps in place and returns a prefix of it.
func pruneHypotheses(hyps []Hypothesis, threshold float64, maxHypotheses int) []Hypothesis {
	sort.SliceStable(hyps, func(i, j int) bool {
		if hyps[i].LogLikelihood != hyps[j].LogLikelihood {
			return hyps[i].LogLikelihood > hyps[j].LogLikelihood
		}
		return lessAssignment(&hyps[i], &hyps[j])
	})

	kept := hyps[:0]
	for _, h := range hyps {
		if h.Consistency >= threshold {
			kept = append(kept, h)
		}
	}
	if maxHypotheses > 0 && len(kept) > maxHypotheses {
		kept = kept[:maxHypotheses]
	}
	return kept
}

// lessAssignment orders hypotheses by their (track, measurement)
// sequence so equal log-likelihoods rank the same way on every run.
func lessAssignment(a, b *Hypothesis) bool {
	for k := 0; k < len(a.Associations) && k < len(b.Associations); k++ {
		x, y := a.Associations[k], b.Associations[k]
		if x.TrackIndex != y.TrackIndex {
			return x.TrackIndex < y.TrackIndex
		}
		if x.MeasurementIndex != y.MeasurementIndex {
			return x.MeasurementIndex < y.MeasurementIndex
		}
	}
	return len(a.Associations) < len(b.Associations)
}
