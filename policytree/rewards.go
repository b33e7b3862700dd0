package policytree

import "gonum.org/v1/gonum/floats"

// rewardSums holds one running reward total per action for a set of rows.
// It is updated as rows move in and out of the set, so scanning thresholds
// never rescans the whole subset.
type rewardSums []float64

// sumRewards accumulates the reward rows of the given observations.
func sumRewards(ds *dataset, rows []int) rewardSums {
	s := make(rewardSums, ds.d)
	for _, r := range rows {
		s.add(ds.reward(r))
	}
	return s
}

// add moves a reward row into the set.
func (s rewardSums) add(row []float64) {
	floats.Add(s, row)
}

// sub moves a reward row out of the set.
func (s rewardSums) sub(row []float64) {
	floats.Sub(s, row)
}

// reset zeroes every total.
func (s rewardSums) reset() {
	for a := range s {
		s[a] = 0
	}
}

// best returns the action with the largest total and that total.
// Ties go to the lowest action index.
func (s rewardSums) best() (int, float64) {
	a := floats.MaxIdx(s)
	return a, s[a]
}

// machineEpsilon is the spacing of float64 values just above 1.
const machineEpsilon = 0x1p-52

// driftBound bounds the rounding error of any reward total the search forms
// over rows: every running sum over m rows is off by at most m*eps times the
// absolute reward mass of those rows. Totals that differ by no more than this
// are treated as equal.
func driftBound(ds *dataset, rows []int) float64 {
	mass := 0.0
	for _, r := range rows {
		mass += ds.mass[r]
	}
	return 4 * float64(len(rows)) * machineEpsilon * mass
}

// better reports whether reward a beats incumbent b by more than tol.
func better(a, b, tol float64) bool {
	return a-b > tol
}
