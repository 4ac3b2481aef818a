package mht

import "math"

// scoreConsistency sets each hypothesis' Consistency to its max-subtracted
// softmax weight exp(L − L_max) / Σ exp(L_j − L_max).
func scoreConsistency(hyps []Hypothesis) {
	if len(hyps) == 0 {
		return
	}
	maxLL := math.Inf(-1)
	for i := range hyps {
		if hyps[i].LogLikelihood > maxLL {
			maxLL = hyps[i].LogLikelihood
		}
	}

	var sum float64
	for i := range hyps {
		w := math.Exp(hyps[i].LogLikelihood - maxLL)
		hyps[i].Consistency = w
		sum += w
	}
	for i := range hyps {
		hyps[i].Consistency /= sum
	}
}
