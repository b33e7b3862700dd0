package policytree

import (
	"cmp"
	"fmt"
	"slices"
)

// subset is the set of rows at one node of the search. The rows are kept once
// per feature, each list in ascending order of that feature (ties by row
// index), so children inherit their orderings and nothing is sorted twice.
type subset struct {
	rows   []int   // the rows in a fixed order
	sorted [][]int // sorted[j] holds rows ordered by feature j
	buf    *[]int  // pooled backing storage; nil for the root
}

func (s *subset) size() int {
	return len(s.rows)
}

// rootSubset sorts every feature column once.
func rootSubset(ds *dataset) *subset {
	all := make([]int, ds.n)
	for i := range all {
		all[i] = i
	}
	s := &subset{rows: all, sorted: make([][]int, ds.p)}
	for j := range s.sorted {
		order := slices.Clone(all)
		slices.SortStableFunc(order, func(a, b int) int {
			return cmp.Compare(ds.value(a, j), ds.value(b, j))
		})
		s.sorted[j] = order
	}
	if ds.p > 0 {
		s.rows = s.sorted[0]
	}
	return s
}

// candidate is the best split found for one feature, with both subtrees
// already solved.
type candidate struct {
	feature   int
	threshold float64
	reward    float64
	left      *node
	right     *node
}

// walkThresholds visits the admissible thresholds of feature f on s in
// ascending order. Before visit(i, threshold) runs, move has been called on
// every row of s.sorted[f][:i+1], which are exactly the rows with a value not
// above threshold.
//
// A threshold is admissible when it is a distinct value other than the
// largest, its rank among distinct values is a multiple of the split step, and
// both sides keep at least minNodeSize rows.
func (b *builder) walkThresholds(s *subset, f int, move func(row int), visit func(i int, threshold float64)) {
	order := s.sorted[f]
	m := len(order)
	rank := 0
	for i := 0; i < m-1; i++ {
		row := order[i]
		move(row)
		v := b.ds.value(row, f)
		if v == b.ds.value(order[i+1], f) {
			continue
		}
		r := rank
		rank++
		if r%b.splitStep != 0 {
			continue
		}
		if i+1 < b.minNodeSize || m-i-1 < b.minNodeSize {
			continue
		}
		b.evaluated.Add(1)
		visit(i, v)
	}
}

// scanLeaves finds the best split of s on feature f when both children are
// leaves. Reward totals move from right to left one row at a time.
func (b *builder) scanLeaves(s *subset, f int, tol float64) *candidate {
	m := s.size()
	left := make(rewardSums, b.ds.d)
	right := sumRewards(b.ds, s.rows)

	var best *candidate
	b.walkThresholds(s, f, func(row int) {
		r := b.ds.reward(row)
		left.add(r)
		right.sub(r)
	}, func(i int, threshold float64) {
		la, lr := left.best()
		ra, rr := right.best()
		if best == nil || better(lr+rr, best.reward, tol) {
			best = &candidate{
				feature:   f,
				threshold: threshold,
				reward:    lr + rr,
				left:      &node{action: la, reward: lr, samples: i + 1},
				right:     &node{action: ra, reward: rr, samples: m - i - 1},
			}
		}
	})
	return best
}

// scanSubtrees finds the best split of s on feature f when the children have
// depth-1 levels left. Each side is solved recursively; the mask tracks which
// rows are on the left as the threshold rises.
func (b *builder) scanSubtrees(s *subset, f, depth int, tol float64) *candidate {
	maskp := b.scratch.getMask()
	mask := *maskp
	defer func() {
		for _, row := range s.sorted[f] {
			mask[row] = false
		}
		b.scratch.returnMask(maskp)
	}()

	var best *candidate
	b.walkThresholds(s, f, func(row int) {
		mask[row] = true
	}, func(i int, threshold float64) {
		left, right := b.partition(s, mask, i+1)
		lt := b.build(left, depth-1, 1)
		rt := b.build(right, depth-1, 1)
		b.release(left)
		b.release(right)
		if reward := lt.reward + rt.reward; best == nil || better(reward, best.reward, tol) {
			best = &candidate{
				feature:   f,
				threshold: threshold,
				reward:    reward,
				left:      lt,
				right:     rt,
			}
		}
	})
	return best
}

// partition splits s into the rows flagged in mask and the rest. Every
// per-feature order is preserved. nLeft must be the number of flagged rows.
func (b *builder) partition(s *subset, mask []bool, nLeft int) (*subset, *subset) {
	nRight := s.size() - nLeft
	left := b.newSubset(nLeft)
	right := b.newSubset(nRight)
	for j, order := range s.sorted {
		l, r := left.sorted[j], right.sorted[j]
		for _, row := range order {
			if mask[row] {
				l = append(l, row)
			} else {
				r = append(r, row)
			}
		}
		if len(l) != nLeft || len(r) != nRight {
			panic(fmt.Sprintf("policytree: partition of feature %d gave %d/%d rows, want %d/%d",
				j, len(l), len(r), nLeft, nRight))
		}
		left.sorted[j], right.sorted[j] = l, r
	}
	left.rows, right.rows = left.sorted[0], right.sorted[0]
	return left, right
}

// newSubset carves empty per-feature lists of capacity size out of one
// pooled buffer.
func (b *builder) newSubset(size int) *subset {
	p := b.ds.p
	buf := b.scratch.getInts(size * p)
	s := &subset{sorted: make([][]int, p), buf: buf}
	for j := range s.sorted {
		s.sorted[j] = (*buf)[j*size : j*size : (j+1)*size]
	}
	return s
}

// release returns a subset's storage. The subset must not be used afterwards.
func (b *builder) release(s *subset) {
	b.scratch.returnInts(s.buf)
	s.buf, s.rows, s.sorted = nil, nil, nil
}
