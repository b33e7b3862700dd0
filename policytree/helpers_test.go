package policytree

import (
	"math"
	"sort"

	"golang.org/x/exp/rand"
)

// randomProblem draws covariates from levels discrete values per feature, so
// ties are common, and normally distributed rewards.
func randomProblem(seed uint64, n, p, d, levels int) ([][]float64, [][]float64) {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	Y := make([][]float64, n)
	for i := range X {
		X[i] = make([]float64, p)
		for j := range X[i] {
			X[i][j] = float64(rng.Intn(levels))
		}
		Y[i] = make([]float64, d)
		for a := range Y[i] {
			Y[i][a] = rng.NormFloat64()
		}
	}
	return X, Y
}

func allRows(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}

// bestLeafValue is the best single-action total over rows, computed directly.
func bestLeafValue(Y [][]float64, rows []int) float64 {
	best := math.Inf(-1)
	for a := range Y[0] {
		sum := 0.0
		for _, r := range rows {
			sum += Y[r][a]
		}
		best = math.Max(best, sum)
	}
	return best
}

// bruteForce enumerates every split sequence with no incremental sums and no
// shared state. It is the reference the search is checked against.
func bruteForce(X, Y [][]float64, rows []int, depth, step int) float64 {
	best := bestLeafValue(Y, rows)
	if depth == 0 {
		return best
	}
	for f := range X[0] {
		seen := map[float64]bool{}
		var vals []float64
		for _, r := range rows {
			if !seen[X[r][f]] {
				seen[X[r][f]] = true
				vals = append(vals, X[r][f])
			}
		}
		sort.Float64s(vals)
		for k := 0; k < len(vals)-1; k += step {
			var left, right []int
			for _, r := range rows {
				if X[r][f] <= vals[k] {
					left = append(left, r)
				} else {
					right = append(right, r)
				}
			}
			v := bruteForce(X, Y, left, depth-1, step) + bruteForce(X, Y, right, depth-1, step)
			best = math.Max(best, v)
		}
	}
	return best
}
