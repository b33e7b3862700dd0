package policytree

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// dataset is the validated, read-only view of one search's inputs.
type dataset struct {
	n int // observations
	p int // features
	d int // actions

	x    []float64  // covariates, column-major: x[j*n+i]
	y    *mat.Dense // rewards (n x d)
	mass []float64  // largest absolute reward of each row
}

// value returns the covariate of row i for feature j.
func (ds *dataset) value(i, j int) float64 {
	return ds.x[j*ds.n+i]
}

// reward returns the reward row of observation i.
func (ds *dataset) reward(i int) []float64 {
	return ds.y.RawRowView(i)
}

// newDataset validates X and Y and copies them into a dataset.
// A nil X stands for a covariate matrix without columns.
func newDataset(X, Y mat.Matrix) (*dataset, error) {
	if Y == nil {
		return nil, fmt.Errorf("%w: reward matrix is nil", ErrInvalidInput)
	}
	n, d := Y.Dims()
	if n == 0 {
		return nil, fmt.Errorf("%w: reward matrix has no rows", ErrInvalidInput)
	}
	if d < 2 {
		return nil, fmt.Errorf("%w: need at least 2 actions, got %d", ErrInvalidInput, d)
	}

	p := 0
	if X != nil {
		var nx int
		nx, p = X.Dims()
		if nx != n {
			return nil, fmt.Errorf("%w: covariate matrix has %d rows, reward matrix has %d",
				ErrInvalidInput, nx, n)
		}
	}

	ds := &dataset{n: n, p: p, d: d, x: make([]float64, n*p)}
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			v := X.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: non-finite covariate at (%d,%d)", ErrInvalidInput, i, j)
			}
			ds.x[j*n+i] = v
		}
	}

	ds.y = mat.DenseCopyOf(Y)
	ds.mass = make([]float64, n)
	for i := 0; i < n; i++ {
		for a, v := range ds.y.RawRowView(i) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: non-finite reward at (%d,%d)", ErrInvalidInput, i, a)
			}
			ds.mass[i] = math.Max(ds.mass[i], math.Abs(v))
		}
	}
	return ds, nil
}

// rowsMatrix adapts row slices to mat.Matrix. A zero-width rowsMatrix still
// reports its row count, which gonum's own types cannot express.
type rowsMatrix [][]float64

func (r rowsMatrix) Dims() (int, int) {
	if len(r) == 0 {
		return 0, 0
	}
	return len(r), len(r[0])
}

func (r rowsMatrix) At(i, j int) float64 { return r[i][j] }

func (r rowsMatrix) T() mat.Matrix { return mat.Transpose{Matrix: r} }

// fromRows checks that X and Y are rectangular and wraps them.
func fromRows(X, Y [][]float64) (mat.Matrix, mat.Matrix, error) {
	if len(X) == 0 || len(Y) == 0 {
		return nil, nil, fmt.Errorf("%w: empty input (%d covariate rows, %d reward rows)",
			ErrInvalidInput, len(X), len(Y))
	}
	if err := checkRectangular("covariate", X); err != nil {
		return nil, nil, err
	}
	if err := checkRectangular("reward", Y); err != nil {
		return nil, nil, err
	}
	return rowsMatrix(X), rowsMatrix(Y), nil
}

func checkRectangular(name string, rows [][]float64) error {
	for i := range rows {
		if len(rows[i]) != len(rows[0]) {
			return fmt.Errorf("%w: %s row %d has %d columns, want %d",
				ErrInvalidInput, name, i, len(rows[i]), len(rows[0]))
		}
	}
	return nil
}
