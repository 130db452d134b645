package model

import (
	"math"

	"irricast/internal/types"
)

// Regressor is the shared contract of all regression candidates. Fit trains
// on standardized features; Predict scores one standardized row. Fit may fail
// (singular system, degenerate data) and the selector drops such candidates.
type Regressor interface {
	Fit(x [][]float64, y []float64) error
	Predict(row []float64) float64
}

// LinearRegression is ordinary least squares solved via the normal equations.
type LinearRegression struct {
	coef      []float64
	intercept float64
}

func (m *LinearRegression) Fit(x [][]float64, y []float64) error {
	coef, intercept, err := solveLeastSquares(x, y, 0)
	if err != nil {
		return err
	}
	m.coef, m.intercept = coef, intercept
	return nil
}

func (m *LinearRegression) Predict(row []float64) float64 {
	return dot(m.coef, row) + m.intercept
}

// RidgeRegression is least squares with an L2 penalty on the coefficients.
// The intercept is not penalized.
type RidgeRegression struct {
	Alpha     float64
	coef      []float64
	intercept float64
}

func (m *RidgeRegression) Fit(x [][]float64, y []float64) error {
	coef, intercept, err := solveLeastSquares(x, y, m.Alpha)
	if err != nil {
		return err
	}
	m.coef, m.intercept = coef, intercept
	return nil
}

func (m *RidgeRegression) Predict(row []float64) float64 {
	return dot(m.coef, row) + m.intercept
}

// LassoRegression is least squares with an L1 penalty, fitted by cyclic
// coordinate descent. Assumes standardized features.
type LassoRegression struct {
	Alpha     float64
	MaxIter   int
	Tol       float64
	coef      []float64
	intercept float64
}

func (m *LassoRegression) Fit(x [][]float64, y []float64) error {
	n := len(x)
	if n == 0 {
		return types.NewAppError(types.ErrCodeModelFitFailed, "lasso: empty training set", nil)
	}
	dims := len(x[0])

	maxIter := m.MaxIter
	if maxIter == 0 {
		maxIter = 1000
	}
	tol := m.Tol
	if tol == 0 {
		tol = 1e-6
	}

	// With standardized (zero-mean) features the intercept is the target
	// mean and stays fixed through the descent.
	var yMean float64
	for _, v := range y {
		yMean += v
	}
	yMean /= float64(n)

	coef := make([]float64, dims)
	resid := make([]float64, n) // y - intercept - x·coef
	for i := range resid {
		resid[i] = y[i] - yMean
	}

	// Per-feature squared norms, (1/n)·Σ x_ij².
	norm := make([]float64, dims)
	for _, row := range x {
		for j, v := range row {
			norm[j] += v * v
		}
	}
	for j := range norm {
		norm[j] /= float64(n)
	}

	for iter := 0; iter < maxIter; iter++ {
		var maxDelta float64
		for j := 0; j < dims; j++ {
			if norm[j] == 0 {
				continue
			}
			// rho = (1/n) Σ x_ij (resid_i + x_ij coef_j)
			var rho float64
			for i, row := range x {
				rho += row[j] * (resid[i] + row[j]*coef[j])
			}
			rho /= float64(n)

			updated := softThreshold(rho, m.Alpha) / norm[j]
			if delta := updated - coef[j]; delta != 0 {
				for i, row := range x {
					resid[i] -= row[j] * delta
				}
				if abs := math.Abs(delta); abs > maxDelta {
					maxDelta = abs
				}
				coef[j] = updated
			}
		}
		if maxDelta < tol {
			break
		}
	}

	m.coef, m.intercept = coef, yMean
	return nil
}

func (m *LassoRegression) Predict(row []float64) float64 {
	return dot(m.coef, row) + m.intercept
}

func softThreshold(v, lambda float64) float64 {
	switch {
	case v > lambda:
		return v - lambda
	case v < -lambda:
		return v + lambda
	default:
		return 0
	}
}

// solveLeastSquares solves (XᵀX + λI)β = Xᵀy with an intercept column
// appended to X. The intercept diagonal entry is not regularized.
func solveLeastSquares(x [][]float64, y []float64, lambda float64) (coef []float64, intercept float64, err error) {
	n := len(x)
	if n == 0 {
		return nil, 0, types.NewAppError(types.ErrCodeModelFitFailed, "least squares: empty training set", nil)
	}
	dims := len(x[0])
	w := dims + 1 // trailing column of ones for the intercept

	// Build the normal-equation system A β = b, A = XᵀX (+λ), b = Xᵀy.
	a := make([][]float64, w)
	for i := range a {
		a[i] = make([]float64, w)
	}
	b := make([]float64, w)

	for _, row := range x {
		for i := 0; i < w; i++ {
			vi := 1.0
			if i < dims {
				vi = row[i]
			}
			for j := i; j < w; j++ {
				vj := 1.0
				if j < dims {
					vj = row[j]
				}
				a[i][j] += vi * vj
			}
		}
	}
	for i := 0; i < w; i++ {
		for j := 0; j < i; j++ {
			a[i][j] = a[j][i]
		}
	}
	for k, row := range x {
		for i := 0; i < dims; i++ {
			b[i] += row[i] * y[k]
		}
		b[dims] += y[k]
	}
	for i := 0; i < dims; i++ {
		a[i][i] += lambda
	}

	beta, err := solveGaussian(a, b)
	if err != nil {
		return nil, 0, err
	}
	return beta[:dims], beta[dims], nil
}

// solveGaussian solves a·x = b in place with partial pivoting.
func solveGaussian(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, types.NewAppError(types.ErrCodeModelFitFailed, "least squares: singular normal equations", nil)
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := col + 1; r < n; r++ {
			factor := a[r][col] / a[col][col]
			if factor == 0 {
				continue
			}
			for c := col; c < n; c++ {
				a[r][c] -= factor * a[col][c]
			}
			b[r] -= factor * b[col]
		}
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := b[i]
		for j := i + 1; j < n; j++ {
			sum -= a[i][j] * x[j]
		}
		x[i] = sum / a[i][i]
	}
	return x, nil
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
