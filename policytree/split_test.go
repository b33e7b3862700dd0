package policytree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestBuilder(t *testing.T, X, Y [][]float64, splitStep, minNodeSize int) *builder {
	t.Helper()
	xm, ym, err := fromRows(X, Y)
	require.NoError(t, err)
	ds, err := newDataset(xm, ym)
	require.NoError(t, err)
	return &builder{
		ds:          ds,
		splitStep:   splitStep,
		minNodeSize: minNodeSize,
		scratch:     newScratch(ds.n),
	}
}

func column(vals ...float64) ([][]float64, [][]float64) {
	X := make([][]float64, len(vals))
	Y := make([][]float64, len(vals))
	for i, v := range vals {
		X[i] = []float64{v}
		Y[i] = []float64{0, 0}
	}
	return X, Y
}

func TestWalkThresholds(t *testing.T) {
	X, Y := column(3, 1, 5, 2, 3, 4, 1)

	tests := []struct {
		name        string
		splitStep   int
		minNodeSize int
		want        []float64
	}{
		{"every distinct value but the largest", 1, 1, []float64{1, 2, 3, 4}},
		{"every second distinct value", 2, 1, []float64{1, 3}},
		{"every third distinct value", 3, 1, []float64{1, 4}},
		{"step beyond candidate count", 10, 1, []float64{1}},
		{"min node size drops unbalanced thresholds", 1, 2, []float64{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBuilder(t, X, Y, tt.splitStep, tt.minNodeSize)
			s := rootSubset(b.ds)

			var got []float64
			moved := 0
			b.walkThresholds(s, 0, func(int) { moved++ }, func(i int, threshold float64) {
				require.Equal(t, i+1, moved, "rows up to the threshold should have moved left")
				for _, row := range s.sorted[0][:i+1] {
					require.LessOrEqual(t, b.ds.value(row, 0), threshold)
				}
				for _, row := range s.sorted[0][i+1:] {
					require.Greater(t, b.ds.value(row, 0), threshold)
				}
				got = append(got, threshold)
			})
			require.Equal(t, tt.want, got)
			require.Equal(t, int64(len(tt.want)), b.evaluated.Load())
		})
	}
}

func TestWalkThresholdsConstantFeature(t *testing.T) {
	X, Y := column(2, 2, 2, 2)
	b := newTestBuilder(t, X, Y, 1, 1)

	visited := false
	b.walkThresholds(rootSubset(b.ds), 0, func(int) {}, func(int, float64) { visited = true })
	require.False(t, visited, "a feature with one distinct value has no admissible split")
}

func TestRootSubsetSorted(t *testing.T) {
	X, Y := randomProblem(3, 40, 3, 2, 5)
	b := newTestBuilder(t, X, Y, 1, 1)
	s := rootSubset(b.ds)

	require.Len(t, s.sorted, 3)
	for j, order := range s.sorted {
		require.ElementsMatch(t, allRows(40), order)
		for k := 1; k < len(order); k++ {
			prev, cur := X[order[k-1]][j], X[order[k]][j]
			require.LessOrEqual(t, prev, cur)
			if prev == cur {
				require.Less(t, order[k-1], order[k], "ties keep row order")
			}
		}
	}
}

func TestPartition(t *testing.T) {
	X, Y := randomProblem(11, 50, 3, 2, 6)
	b := newTestBuilder(t, X, Y, 1, 1)
	s := rootSubset(b.ds)

	maskp := b.scratch.getMask()
	mask := *maskp
	nLeft := 0
	for _, row := range s.rows {
		if X[row][1] <= 2 {
			mask[row] = true
			nLeft++
		}
	}

	left, right := b.partition(s, mask, nLeft)
	require.Equal(t, nLeft, left.size())
	require.Equal(t, 50-nLeft, right.size())

	for j := range s.sorted {
		var wantLeft, wantRight []int
		for _, row := range s.sorted[j] {
			if mask[row] {
				wantLeft = append(wantLeft, row)
			} else {
				wantRight = append(wantRight, row)
			}
		}
		require.Equal(t, wantLeft, left.sorted[j], "left order for feature %d", j)
		require.Equal(t, wantRight, right.sorted[j], "right order for feature %d", j)
	}

	b.release(left)
	b.release(right)
	require.Nil(t, left.sorted)
}

func TestPartitionCountMismatchPanics(t *testing.T) {
	X, Y := column(1, 2, 3)
	b := newTestBuilder(t, X, Y, 1, 1)
	s := rootSubset(b.ds)

	mask := make([]bool, 3)
	mask[0] = true
	require.Panics(t, func() { b.partition(s, mask, 2) })
}

func TestScanLeaves(t *testing.T) {
	X := [][]float64{{4}, {3}, {2}, {1}}
	Y := [][]float64{{0, 1}, {0, 1}, {1, 0}, {1, 0}}
	b := newTestBuilder(t, X, Y, 1, 1)

	s := rootSubset(b.ds)
	c := b.scanLeaves(s, 0, driftBound(b.ds, s.rows))
	require.NotNil(t, c)
	require.Equal(t, 2.0, c.threshold)
	require.Equal(t, 4.0, c.reward)
	require.Equal(t, 0, c.left.action)
	require.Equal(t, 2, c.left.samples)
	require.Equal(t, 1, c.right.action)
	require.Equal(t, 2, c.right.samples)
}
