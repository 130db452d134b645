// Package types defines the shared domain model for the irricast irrigation
// recommendation engine: sensor history, forecast data, trained model
// candidates, and the irrigation decisions derived from them. It also hosts
// the typed error taxonomy and the small cross-cutting interfaces (Clock,
// Logger) used throughout the platform.
package types

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Location identifies a field by geographic coordinates.
type Location struct {
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
	Lon float64 `json:"lon" validate:"min=-180,max=180"`
}

// Key returns a stable cache key fragment for the location, rounded to four
// decimal places (roughly 11 m), finer than any forecast grid cell.
func (l Location) Key() string {
	return fmt.Sprintf("%.4f:%.4f", l.Lat, l.Lon)
}

// SensorReading is one row of field telemetry. Readings are immutable once
// ingested and histories are always ordered by Timestamp ascending.
type SensorReading struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	Crop            string    `json:"crop"`
	Stage           string    `json:"stage"`
	SoilMoisture    float64   `json:"soil_moisture"`    // volumetric %, 0-100
	PH              float64   `json:"ph"`               // 0-14
	TemperatureC    float64   `json:"temperature_c"`
	Nitrogen        float64   `json:"nitrogen"`         // nutrient index
	Phosphorus      float64   `json:"phosphorus"`       // nutrient index
	Potassium       float64   `json:"potassium"`        // nutrient index
	RainProbability float64   `json:"rain_probability"` // %, 0-100
	RainfallMM      float64   `json:"rainfall_mm"`      // observed accumulation
	Irrigated       bool      `json:"irrigated"`        // irrigation-status label
	RelayOn         bool      `json:"relay_on"`         // pump relay-state label
}

// SortReadings orders a history chronologically in place.
func SortReadings(rs []SensorReading) {
	sort.Slice(rs, func(i, j int) bool {
		return rs[i].Timestamp.Before(rs[j].Timestamp)
	})
}

// ForecastDay is one day of upstream weather forecast, normalized to UTC
// dates. Instances are immutable once produced by the weather client.
type ForecastDay struct {
	Date              time.Time `json:"date"`
	TempMeanC         float64   `json:"temp_mean_c"`
	TempMinC          float64   `json:"temp_min_c"`
	TempMaxC          float64   `json:"temp_max_c"`
	PrecipitationMM   float64   `json:"precipitation_mm"`
	PrecipitationProb float64   `json:"precipitation_probability"` // %, 0-100
	Humidity          float64   `json:"humidity_percent"`
	WindSpeedKmh      float64   `json:"wind_speed_kmh"`
	// Stale marks data served from an expired cache entry after an
	// upstream failure.
	Stale bool `json:"stale,omitempty"`
}

// Algorithm identifies one of the regression candidates trained per data load.
type Algorithm string

const (
	AlgorithmLinear   Algorithm = "linear"
	AlgorithmRidge    Algorithm = "ridge"
	AlgorithmLasso    Algorithm = "lasso"
	AlgorithmBagging  Algorithm = "bagging"
	AlgorithmBoosting Algorithm = "boosting"
)

// RegressionMetrics are held-out test-set scores for a fitted candidate.
type RegressionMetrics struct {
	MAE  float64 `json:"mae"`
	MSE  float64 `json:"mse"`
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2"`
}

// ModelCandidate describes one fitted regression candidate and its held-out
// fit quality. Exactly one candidate per training run carries Best=true.
type ModelCandidate struct {
	Algorithm         Algorithm          `json:"algorithm"`
	Metrics           RegressionMetrics  `json:"metrics"`
	FeatureImportance map[string]float64 `json:"feature_importance,omitempty"`
	Best              bool               `json:"best"`
}

// Command is the daily irrigation instruction for the controller.
type Command string

const (
	CommandIrrigate      Command = "IRRIGATE"
	CommandDoNotIrrigate Command = "DO_NOT_IRRIGATE"
	CommandHold          Command = "HOLD"
	CommandWaitRain      Command = "WAIT_RAIN"
)

// Valid reports whether c is one of the four defined commands.
func (c Command) Valid() bool {
	switch c {
	case CommandIrrigate, CommandDoNotIrrigate, CommandHold, CommandWaitRain:
		return true
	}
	return false
}

// IrrigationDecision is one day's recommendation. Computed fresh per request
// and never mutated after creation.
type IrrigationDecision struct {
	Date              time.Time    `json:"date"`
	Command           Command      `json:"command"`
	Confidence        float64      `json:"confidence"` // always within [0,1]
	Reasons           []string     `json:"reasons"`
	PredictedMoisture float64      `json:"predicted_soil_moisture"`
	Weather           *ForecastDay `json:"weather,omitempty"` // nil when no forecast was available
	Token             string       `json:"command_token"`     // controller line, see schedule.CommandToken
}

// ClampConfidence bounds a confidence score to [0,1]. NaN maps to 0.
func ClampConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// ScheduleWarning is a degraded-result marker attached to a schedule instead
// of silently swallowing a suppressed failure.
type ScheduleWarning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Warning codes attached to schedules.
const (
	WarnTruncatedHorizon    = "schedule_truncated_horizon"
	WarnForecastStale       = "forecast_stale"
	WarnForecastUnavailable = "forecast_unavailable"
)

// Schedule is the ordered multi-day irrigation plan consumed by the
// presentation layer. Partial is set whenever any degradation occurred
// (truncated horizon, stale or missing forecast).
type Schedule struct {
	Location    Location             `json:"location"`
	GeneratedAt time.Time            `json:"generated_at"`
	Decisions   []IrrigationDecision `json:"decisions"`
	Partial     bool                 `json:"partial"`
	Warnings    []ScheduleWarning    `json:"warnings,omitempty"`
}
