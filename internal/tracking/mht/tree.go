package mht

import (
	"context"
	"sort"
	"time"
)

// noAssociation marks a missed-detection node (and the root).
const noAssociation = -1

// contextCheckInterval is how many expansions run between ctx.Err() polls.
const contextCheckInterval = 1024

// node is one step of partial-hypothesis construction. Parent and
// children are arena indices, never pointers.
type node struct {
	parent        int32
	depth         int32
	assoc         int32 // Index into searchContext.candidates, or noAssociation
	leaf          int32 // Index into hypothesisTree.leaves, or -1
	logLikelihood float64
	children      []int32
}

// hypothesisTree is the arena for one ProcessFrame call. Index 0 is the
// root; it is dropped with the call.
type hypothesisTree struct {
	nodes  []node
	leaves []Hypothesis
}

// searchContext is the read-only state shared by every expansion step.
type searchContext struct {
	candidates []Association
	byTrack    [][]int32 // Candidate indices per track, in generator order
	order      []int     // order[d] is the track committed at depth d
	logPDTrue  float64
	logPDFalse float64
	gate       float64
	maxNodes   int // 0 disables the budget
}

// searchFrame is one entry of the explicit expansion stack. next walks
// the current track's candidates; next == len(candidates) is the missed
// branch and anything beyond means the node is exhausted.
type searchFrame struct {
	node int32
	next int
}

// newSearchContext groups candidates by track and orders tracks by
// ascending candidate count (ties by track index) so the search meets
// the narrowest levels first.
func newSearchContext(candidates []Association, numTracks int, cfg Config) *searchContext {
	sc := &searchContext{
		candidates: candidates,
		byTrack:    make([][]int32, numTracks),
		order:      make([]int, numTracks),
		logPDTrue:  cfg.logPDTrue(),
		logPDFalse: cfg.logPDFalse(),
		gate:       cfg.GateThreshold,
		maxNodes:   cfg.MaxTreeNodes,
	}
	for ci, a := range candidates {
		sc.byTrack[a.TrackIndex] = append(sc.byTrack[a.TrackIndex], int32(ci))
	}
	for i := range sc.order {
		sc.order[i] = i
	}
	sort.SliceStable(sc.order, func(a, b int) bool {
		return len(sc.byTrack[sc.order[a]]) < len(sc.byTrack[sc.order[b]])
	})
	return sc
}

// buildTree expands the hypothesis tree depth-first with an explicit
// stack. It returns the tree and a non-empty truncation reason when the
// node budget or ctx stopped construction early; leaves completed before
// that point remain valid.
func buildTree(ctx context.Context, sc *searchContext) (*hypothesisTree, string) {
	t := &hypothesisTree{nodes: make([]node, 1, 64)}
	t.nodes[0] = node{parent: -1, assoc: noAssociation, leaf: -1}

	depthLimit := int32(len(sc.order))
	if depthLimit == 0 {
		t.finishLeaf(0, sc)
		return t, ""
	}

	stack := []searchFrame{{node: 0}}
	steps := 0
	for len(stack) > 0 {
		steps++
		if steps == 1 || steps%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return t, err.Error()
			}
			if dl, ok := ctx.Deadline(); ok && !time.Now().Before(dl) {
				return t, context.DeadlineExceeded.Error()
			}
		}

		top := &stack[len(stack)-1]
		parent := top.node
		depth := t.nodes[parent].depth
		cands := sc.byTrack[sc.order[depth]]

		if top.next > len(cands) {
			stack = stack[:len(stack)-1]
			continue
		}
		cursor := top.next
		top.next++

		child := node{parent: parent, depth: depth + 1, leaf: -1}
		if cursor < len(cands) {
			ci := cands[cursor]
			a := sc.candidates[ci]
			// Single-pair gate repeated as the compatibility test; this
			// is not a joint (JCBB) test over the partial assignment.
			if a.DistanceSquared > sc.gate {
				continue
			}
			if t.measurementUsed(parent, a.MeasurementIndex, sc) {
				continue
			}
			child.assoc = ci
			child.logLikelihood = t.nodes[parent].logLikelihood + sc.logPDTrue + a.LogLikelihood
		} else {
			child.assoc = noAssociation
			child.logLikelihood = t.nodes[parent].logLikelihood + sc.logPDFalse
		}

		if sc.maxNodes > 0 && len(t.nodes) >= sc.maxNodes {
			return t, "node budget exhausted"
		}
		idx := t.addChild(parent, child)
		if child.depth == depthLimit {
			t.finishLeaf(idx, sc)
		} else {
			stack = append(stack, searchFrame{node: idx})
		}
	}
	return t, ""
}

func (t *hypothesisTree) addChild(parent int32, child node) int32 {
	idx := int32(len(t.nodes))
	t.nodes = append(t.nodes, child)
	t.nodes[parent].children = append(t.nodes[parent].children, idx)
	return idx
}

// measurementUsed scans the committed path from n back to the root.
func (t *hypothesisTree) measurementUsed(n int32, measurement int, sc *searchContext) bool {
	for n >= 0 {
		nd := &t.nodes[n]
		if nd.assoc != noAssociation && sc.candidates[nd.assoc].MeasurementIndex == measurement {
			return true
		}
		n = nd.parent
	}
	return false
}

// finishLeaf materialises the hypothesis for the path ending at n.
func (t *hypothesisTree) finishLeaf(n int32, sc *searchContext) {
	var assocs []Association
	for cur := n; cur >= 0; cur = t.nodes[cur].parent {
		if a := t.nodes[cur].assoc; a != noAssociation {
			assocs = append(assocs, sc.candidates[a])
		}
	}
	sort.Slice(assocs, func(i, j int) bool { return assocs[i].TrackIndex < assocs[j].TrackIndex })

	t.nodes[n].leaf = int32(len(t.leaves))
	t.leaves = append(t.leaves, Hypothesis{
		Associations:  assocs,
		LogLikelihood: t.nodes[n].logLikelihood,
	})
}
