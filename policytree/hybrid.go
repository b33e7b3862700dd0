package policytree

import "fmt"

// hybrid grows a tree of at most depth levels one split at a time. At each
// node an exhaustive search looks lookahead levels ahead; only the root split
// of that search is kept, and both sides are grown the same way with one level
// less. Below the lookahead the exhaustive tree is used as is.
func (b *builder) hybrid(s *subset, depth, lookahead, workers int) *node {
	look := min(depth, lookahead)
	t := b.build(s, look, workers)
	if t.isLeaf() || look == depth {
		return t
	}

	maskp := b.scratch.getMask()
	mask := *maskp
	nLeft := 0
	for _, row := range s.rows {
		if b.ds.value(row, t.feature) <= t.threshold {
			mask[row] = true
			nLeft++
		}
	}
	if nLeft != t.left.samples {
		panic(fmt.Sprintf("policytree: split on feature %d at %v covers %d rows, search saw %d",
			t.feature, t.threshold, nLeft, t.left.samples))
	}
	left, right := b.partition(s, mask, nLeft)
	for _, row := range s.rows {
		mask[row] = false
	}
	b.scratch.returnMask(maskp)

	t.left = b.hybrid(left, depth-1, lookahead, workers)
	t.right = b.hybrid(right, depth-1, lookahead, workers)
	b.release(left)
	b.release(right)
	t.reward = t.left.reward + t.right.reward
	return t
}
