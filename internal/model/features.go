// Package model implements the soil moisture regression pipeline: feature
// extraction from sensor history, five candidate regressors, and the
// selector that trains, evaluates and ranks them.
package model

import (
	"math"

	"irricast/internal/types"
)

// FeatureNames lists the feature vector layout in order. Position 0 is the
// previous day's soil moisture; the remainder are same-day covariates.
var FeatureNames = []string{
	"soil_moisture_lag1",
	"ph",
	"temperature_c",
	"nitrogen",
	"phosphorus",
	"potassium",
	"rain_probability",
	"rainfall_mm",
}

// FeatureVector builds a single feature row from the prior day's moisture and
// the current day's covariates. The schedule builder uses this to feed
// predicted moisture forward through a multi-day horizon.
func FeatureVector(lagMoisture, ph, tempC, n, p, k, rainProb, rainfallMM float64) []float64 {
	return []float64{lagMoisture, ph, tempC, n, p, k, rainProb, rainfallMM}
}

// BuildDataset converts chronologically sorted sensor readings into a
// supervised dataset. Row i predicts readings[i].SoilMoisture from
// readings[i-1].SoilMoisture and readings[i]'s covariates, so a history of
// n readings yields n-1 rows.
func BuildDataset(readings []types.SensorReading) (x [][]float64, y []float64) {
	if len(readings) < 2 {
		return nil, nil
	}
	x = make([][]float64, 0, len(readings)-1)
	y = make([]float64, 0, len(readings)-1)
	for i := 1; i < len(readings); i++ {
		prev, cur := readings[i-1], readings[i]
		x = append(x, FeatureVector(
			prev.SoilMoisture,
			cur.PH,
			cur.TemperatureC,
			cur.Nitrogen,
			cur.Phosphorus,
			cur.Potassium,
			cur.RainProbability,
			cur.RainfallMM,
		))
		y = append(y, cur.SoilMoisture)
	}
	return x, y
}

// SplitChronological splits the dataset into train and test partitions
// preserving row order. ratio is the train fraction; at least one row lands
// in each partition when len(x) >= 2.
func SplitChronological(x [][]float64, y []float64, ratio float64) (xTrain, xTest [][]float64, yTrain, yTest []float64) {
	n := len(x)
	cut := int(float64(n) * ratio)
	if cut < 1 {
		cut = 1
	}
	if cut >= n {
		cut = n - 1
	}
	return x[:cut], x[cut:], y[:cut], y[cut:]
}

// Scaler standardizes features to zero mean and unit variance using
// statistics fitted on the training partition only.
type Scaler struct {
	mean []float64
	std  []float64
}

// FitScaler computes per-feature mean and standard deviation over x.
// Constant features get std 1 so they scale to zero instead of NaN.
func FitScaler(x [][]float64) *Scaler {
	if len(x) == 0 {
		return &Scaler{}
	}
	dims := len(x[0])
	mean := make([]float64, dims)
	std := make([]float64, dims)

	for _, row := range x {
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(len(x))
	}

	for _, row := range x {
		for j, v := range row {
			d := v - mean[j]
			std[j] += d * d
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / float64(len(x)))
		if std[j] == 0 {
			std[j] = 1
		}
	}

	return &Scaler{mean: mean, std: std}
}

// Transform returns a standardized copy of row.
func (s *Scaler) Transform(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.mean[j]) / s.std[j]
	}
	return out
}

// TransformAll standardizes every row, returning a new matrix.
func (s *Scaler) TransformAll(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		out[i] = s.Transform(row)
	}
	return out
}
