package mht

import "math"

// forbiddenCost stands in for infinity in assignment cost matrices.
const forbiddenCost = 1e18

// solveAssignment solves the rectangular minimum-cost assignment problem
// with the Kuhn–Munkres algorithm (potentials / Jonker-Volgenant form).
// It returns assign[i] = column for row i, or -1 when row i is left
// unassigned or only reachable through a forbidden (≥ forbiddenCost)
// entry. Rows beyond the column count are handled by padding columns
// with forbiddenCost.
func solveAssignment(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}
	m := len(cost[0])
	result := make([]int, n)
	if m == 0 {
		for i := range result {
			result[i] = -1
		}
		return result
	}

	cols := m
	if n > cols {
		cols = n
	}
	at := func(i, j int) float64 {
		if j >= m {
			return forbiddenCost
		}
		return cost[i][j]
	}

	// 1-indexed internally; column 0 is the virtual start column.
	const inf = math.MaxFloat64 / 2
	u := make([]float64, n+1)    // Row potentials
	v := make([]float64, cols+1) // Column potentials
	p := make([]int, cols+1)     // p[j] = row assigned to column j
	way := make([]int, cols+1)   // way[j] = previous column on the augmenting path
	minv := make([]float64, cols+1)
	used := make([]bool, cols+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		for j := 0; j <= cols; j++ {
			minv[j] = inf
			used[j] = false
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := -1
			for j := 1; j <= cols; j++ {
				if used[j] {
					continue
				}
				cur := at(i0-1, j-1) - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			if j1 < 0 {
				break
			}
			for j := 0; j <= cols; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			p[j0] = p[way[j0]]
			j0 = way[j0]
		}
	}

	for i := range result {
		result[i] = -1
	}
	for j := 1; j <= cols; j++ {
		row := p[j] - 1
		if row < 0 || j-1 >= m {
			continue
		}
		if cost[row][j-1] >= forbiddenCost {
			continue
		}
		result[row] = j - 1
	}
	return result
}

// BestHypothesis returns the maximum a posteriori hypothesis over the
// given gated candidates without enumerating the tree.
//
// Each track i gets its own dummy "missed" column m+i at cost 0; a gated
// pair (i, j) costs −(log pd_true + ℓ_ij − log pd_false), so the minimum
// cost assignment maximises Σ log-likelihood over exclusive
// assignments. Solved in O((M+T)³).
func (e *Engine) BestHypothesis(candidates []Association, numTracks, numMeasurements int) (Hypothesis, error) {
	if numTracks < 0 || numMeasurements < 0 {
		return Hypothesis{}, &ShapeError{Field: "counts", Index: -1, Want: "non-negative", Got: itoa(numTracks) + "," + itoa(numMeasurements)}
	}
	if numTracks == 0 {
		return Hypothesis{}, nil
	}

	logPDTrue, logPDFalse := e.cfg.logPDTrue(), e.cfg.logPDFalse()
	width := numMeasurements + numTracks
	cost := make([][]float64, numTracks)
	for i := range cost {
		cost[i] = make([]float64, width)
		for j := range cost[i] {
			cost[i][j] = forbiddenCost
		}
		cost[i][numMeasurements+i] = 0
	}

	lookup := make(map[[2]int]Association, len(candidates))
	for _, a := range candidates {
		if a.TrackIndex < 0 || a.TrackIndex >= numTracks {
			return Hypothesis{}, &ShapeError{Field: "candidates.track_index", Index: -1, Want: "< " + itoa(numTracks), Got: itoa(a.TrackIndex)}
		}
		if a.MeasurementIndex < 0 || a.MeasurementIndex >= numMeasurements {
			return Hypothesis{}, &ShapeError{Field: "candidates.measurement_index", Index: -1, Want: "< " + itoa(numMeasurements), Got: itoa(a.MeasurementIndex)}
		}
		if a.DistanceSquared > e.cfg.GateThreshold {
			continue
		}
		cost[a.TrackIndex][a.MeasurementIndex] = -(logPDTrue + a.LogLikelihood - logPDFalse)
		lookup[[2]int{a.TrackIndex, a.MeasurementIndex}] = a
	}

	assign := solveAssignment(cost)

	var h Hypothesis
	for i, col := range assign {
		if col >= 0 && col < numMeasurements {
			a := lookup[[2]int{i, col}]
			h.Associations = append(h.Associations, a)
			h.LogLikelihood += logPDTrue + a.LogLikelihood
			continue
		}
		h.LogLikelihood += logPDFalse
	}
	return h, nil
}
