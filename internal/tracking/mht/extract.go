package mht

// extract walks the arena depth-first from the root and collects every
// leaf hypothesis. Output order follows the walk; callers sort.
func (t *hypothesisTree) extract() []Hypothesis {
	out := make([]Hypothesis, 0, len(t.leaves))
	stack := []int32{0}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		nd := &t.nodes[n]
		if nd.leaf >= 0 {
			out = append(out, t.leaves[nd.leaf])
			continue
		}
		for i := len(nd.children) - 1; i >= 0; i-- {
			stack = append(stack, nd.children[i])
		}
	}
	return out
}
