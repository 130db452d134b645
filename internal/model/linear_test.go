package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearRegression_RecoversCoefficients(t *testing.T) {
	// y = 3 + 2*x0 - x1, exactly.
	x := [][]float64{
		{0, 0}, {1, 0}, {0, 1}, {1, 1}, {2, 1}, {1, 2}, {3, 2}, {2, 3},
	}
	y := make([]float64, len(x))
	for i, row := range x {
		y[i] = 3 + 2*row[0] - row[1]
	}

	var m LinearRegression
	require.NoError(t, m.Fit(x, y))

	assert.InDelta(t, 7.0, m.Predict([]float64{3, 2}), 1e-8)
	assert.InDelta(t, 3.0, m.Predict([]float64{0, 0}), 1e-8)
}

func TestLinearRegression_SingularMatrixFails(t *testing.T) {
	// Second feature is a copy of the first; the normal equations are
	// singular without regularization.
	x := [][]float64{{1, 1}, {2, 2}, {3, 3}, {4, 4}}
	y := []float64{1, 2, 3, 4}

	var m LinearRegression
	assert.Error(t, m.Fit(x, y))
}

func TestRidgeRegression_HandlesCollinearFeatures(t *testing.T) {
	// The same collinear design fits fine with an L2 penalty.
	x := [][]float64{{1, 1}, {2, 2}, {3, 3}, {4, 4}}
	y := []float64{1, 2, 3, 4}

	m := RidgeRegression{Alpha: 1.0}
	require.NoError(t, m.Fit(x, y))
	assert.InDelta(t, 2.0, m.Predict([]float64{2, 2}), 0.5)
}

func TestLassoRegression_ZeroesIrrelevantFeature(t *testing.T) {
	// x1 is pure noise with no influence on y; the L1 penalty should drive
	// its coefficient to (near) zero while x0 stays predictive.
	x := [][]float64{
		{-2.0, 0.2}, {-1.5, -0.3}, {-1.0, 0.1}, {-0.5, -0.2},
		{0.5, 0.3}, {1.0, -0.1}, {1.5, 0.2}, {2.0, -0.2},
	}
	y := make([]float64, len(x))
	for i, row := range x {
		y[i] = 4 * row[0]
	}

	m := LassoRegression{Alpha: 0.1}
	require.NoError(t, m.Fit(x, y))

	assert.InDelta(t, 4*1.25, m.Predict([]float64{1.25, 0}), 0.5)
	assert.InDelta(t, m.Predict([]float64{0, -1}), m.Predict([]float64{0, 1}), 0.2)
}

func TestBaggingRegressor_DeterministicAcrossRuns(t *testing.T) {
	x, y := syntheticMoistureMatrix(t, 60)

	a := BaggingRegressor{Trees: 20, MaxDepth: 5, Seed: 42}
	b := BaggingRegressor{Trees: 20, MaxDepth: 5, Seed: 42}
	require.NoError(t, a.Fit(x, y))
	require.NoError(t, b.Fit(x, y))

	probe := x[len(x)/2]
	assert.Equal(t, a.Predict(probe), b.Predict(probe))
}

func TestGradientBoosting_ImprovesOnMeanBaseline(t *testing.T) {
	x, y := syntheticMoistureMatrix(t, 60)

	m := GradientBoostingRegressor{Trees: 50, MaxDepth: 3, LearningRate: 0.1}
	require.NoError(t, m.Fit(x, y))

	var mean float64
	for _, v := range y {
		mean += v
	}
	mean /= float64(len(y))

	var sseModel, sseMean float64
	for i, row := range x {
		dm := m.Predict(row) - y[i]
		db := mean - y[i]
		sseModel += dm * dm
		sseMean += db * db
	}
	assert.Less(t, sseModel, sseMean)
}

func TestEnsembleFeatureImportance_NormalizedAndOrdered(t *testing.T) {
	x, y := syntheticMoistureMatrix(t, 60)

	m := BaggingRegressor{Trees: 20, MaxDepth: 5, Seed: 42}
	require.NoError(t, m.Fit(x, y))

	imp := m.FeatureImportance()
	require.Len(t, imp, len(x[0]))

	var sum float64
	for _, v := range imp {
		assert.GreaterOrEqual(t, v, 0.0)
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	// The lag-moisture feature dominates the synthetic series.
	for j := 1; j < len(imp); j++ {
		assert.GreaterOrEqual(t, imp[0], imp[j])
	}
}
