// Package engine evaluates the irrigation decision rules. Evaluation is a
// pure function of predicted moisture, the day's forecast, and the recent
// sensor window: identical inputs always produce identical decisions.
package engine

import (
	"fmt"
	"time"

	"github.com/montanaflynn/stats"

	"irricast/internal/config"
	"irricast/internal/types"
)

// Thresholds are the agronomic limits the rules test against.
type Thresholds struct {
	MoistureMinPct  float64
	MoistureMaxPct  float64
	TempMinC        float64
	TempMaxC        float64
	WindMaxKmh      float64
	RecentRainMaxMM float64
	RecentRainDays  int
	ForecastRainMM  float64
	TrendWindowSize int
}

// ThresholdsFromConfig copies the rule limits out of the loaded config.
func ThresholdsFromConfig(cfg config.RulesConfig) Thresholds {
	return Thresholds{
		MoistureMinPct:  cfg.MoistureMinPct,
		MoistureMaxPct:  cfg.MoistureMaxPct,
		TempMinC:        cfg.TempMinC,
		TempMaxC:        cfg.TempMaxC,
		WindMaxKmh:      cfg.WindMaxKmh,
		RecentRainMaxMM: cfg.RecentRainMaxMM,
		RecentRainDays:  cfg.RecentRainDays,
		ForecastRainMM:  cfg.ForecastRainMM,
		TrendWindowSize: cfg.TrendWindowSize,
	}
}

// ruleInput is the derived state shared by all rules for one evaluation.
// day is nil when the forecast is unavailable; rules that need weather stay
// silent in that case.
type ruleInput struct {
	predicted    float64
	day          *types.ForecastDay
	trendAvg     float64
	hasTrend     bool
	recentRainMM float64
}

// decisionState accumulates the rule cascade. Rules run in a fixed order and
// each triggered rule appends a reason; later rules may override the command
// set by earlier ones (last-applicable-override, not accumulation).
type decisionState struct {
	command    types.Command
	confidence float64
	reasons    []string
}

func (s *decisionState) raiseConfidence(to float64) {
	if to > s.confidence {
		s.confidence = to
	}
}

// rule is one evaluator in the cascade. It returns true when triggered.
type rule func(in ruleInput, s *decisionState, t Thresholds) bool

// The cascade order is a contract: trend reinforcement (3) runs before the
// temperature and wind overrides (4, 5), and the forecast-rain rule (7) runs
// last so it sees the final pending command.
var cascade = []rule{
	ruleMoistureBelowMin,
	ruleMoistureAboveMax,
	ruleTrendBelowMin,
	ruleTemperatureOutOfBand,
	ruleWindAboveMax,
	ruleRecentRainSufficient,
	ruleForecastRain,
}

// Rule 1: predicted moisture below the minimum starts a tentative IRRIGATE.
func ruleMoistureBelowMin(in ruleInput, s *decisionState, t Thresholds) bool {
	if in.predicted >= t.MoistureMinPct {
		return false
	}
	s.command = types.CommandIrrigate
	s.confidence = 0.8
	s.reasons = append(s.reasons, "soil moisture below minimum")
	return true
}

// Rule 2: predicted moisture above the maximum overrides rule 1 outright.
func ruleMoistureAboveMax(in ruleInput, s *decisionState, t Thresholds) bool {
	if in.predicted <= t.MoistureMaxPct {
		return false
	}
	s.command = types.CommandDoNotIrrigate
	s.confidence = 0.8
	s.reasons = append(s.reasons, "soil moisture above maximum")
	return true
}

// Rule 3: a low trailing moisture trend reinforces IRRIGATE. It never
// overturns a DO_NOT_IRRIGATE already set by rule 2.
func ruleTrendBelowMin(in ruleInput, s *decisionState, t Thresholds) bool {
	if !in.hasTrend || in.trendAvg >= t.MoistureMinPct {
		return false
	}
	s.reasons = append(s.reasons, "moisture trend below minimum")
	if s.command != types.CommandDoNotIrrigate {
		s.command = types.CommandIrrigate
		s.raiseConfidence(0.7)
	}
	return true
}

// Rule 4: temperature outside the acceptable band downgrades a pending
// IRRIGATE to HOLD.
func ruleTemperatureOutOfBand(in ruleInput, s *decisionState, t Thresholds) bool {
	if in.day == nil {
		return false
	}
	if in.day.TempMeanC >= t.TempMinC && in.day.TempMeanC <= t.TempMaxC {
		return false
	}
	if s.command == types.CommandIrrigate {
		s.command = types.CommandHold
	}
	s.raiseConfidence(0.6)
	s.reasons = append(s.reasons, "temperature outside acceptable band")
	return true
}

// Rule 5: high wind forces DO_NOT_IRRIGATE regardless of moisture.
func ruleWindAboveMax(in ruleInput, s *decisionState, t Thresholds) bool {
	if in.day == nil || in.day.WindSpeedKmh <= t.WindMaxKmh {
		return false
	}
	s.command = types.CommandDoNotIrrigate
	s.raiseConfidence(0.7)
	s.reasons = append(s.reasons, "wind speed exceeds limit")
	return true
}

// Rule 6: enough observed rain over the trailing window forces
// DO_NOT_IRRIGATE.
func ruleRecentRainSufficient(in ruleInput, s *decisionState, t Thresholds) bool {
	if in.recentRainMM <= t.RecentRainMaxMM {
		return false
	}
	s.command = types.CommandDoNotIrrigate
	s.raiseConfidence(0.8)
	s.reasons = append(s.reasons, "recent rainfall sufficient")
	return true
}

// Rule 7: significant forecast rain turns a pending IRRIGATE into WAIT_RAIN;
// any other pending command becomes DO_NOT_IRRIGATE.
func ruleForecastRain(in ruleInput, s *decisionState, t Thresholds) bool {
	if in.day == nil || in.day.PrecipitationMM <= t.ForecastRainMM {
		return false
	}
	if s.command == types.CommandIrrigate {
		s.command = types.CommandWaitRain
	} else {
		s.command = types.CommandDoNotIrrigate
	}
	s.raiseConfidence(0.7)
	s.reasons = append(s.reasons, "significant rainfall forecast")
	return true
}

// Engine runs the rule cascade over derived inputs.
type Engine struct {
	thresholds Thresholds
}

// New creates an Engine with the given thresholds.
func New(t Thresholds) *Engine {
	return &Engine{thresholds: t}
}

// Evaluate produces the irrigation decision for one day. predicted is the
// modeled soil moisture percentage for that day; day is the forecast entry or
// nil when no forecast is available; recent is the chronologically sorted
// sensor window backing the trend and recent-rain rules.
func (e *Engine) Evaluate(predicted float64, day *types.ForecastDay, recent []types.SensorReading) types.IrrigationDecision {
	in := ruleInput{
		predicted:    predicted,
		day:          day,
		recentRainMM: e.recentRainfall(recent),
	}
	in.trendAvg, in.hasTrend = e.moistureTrend(recent)

	state := decisionState{confidence: 0.5}
	for _, r := range cascade {
		r(in, &state, e.thresholds)
	}

	if state.command == "" {
		state.command = types.CommandHold
		if len(state.reasons) == 0 {
			state.reasons = append(state.reasons, "no rule triggered")
		}
	}

	decision := types.IrrigationDecision{
		Command:           state.command,
		Confidence:        types.ClampConfidence(state.confidence),
		Reasons:           state.reasons,
		PredictedMoisture: predicted,
	}
	if day != nil {
		decision.Date = day.Date
		decision.Weather = day
	}
	return decision
}

// moistureTrend is the mean soil moisture over the trailing trend window.
func (e *Engine) moistureTrend(recent []types.SensorReading) (avg float64, ok bool) {
	if len(recent) == 0 {
		return 0, false
	}
	window := recent
	if len(window) > e.thresholds.TrendWindowSize {
		window = window[len(window)-e.thresholds.TrendWindowSize:]
	}
	values := make([]float64, len(window))
	for i, r := range window {
		values[i] = r.SoilMoisture
	}
	mean, err := stats.Mean(values)
	if err != nil {
		return 0, false
	}
	return mean, true
}

// recentRainfall sums observed rainfall over the trailing RecentRainDays
// window, anchored on the most recent reading.
func (e *Engine) recentRainfall(recent []types.SensorReading) float64 {
	if len(recent) == 0 {
		return 0
	}
	last := recent[len(recent)-1].Timestamp
	cutoff := last.Add(-time.Duration(e.thresholds.RecentRainDays) * 24 * time.Hour)

	var total float64
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].Timestamp.Before(cutoff) {
			break
		}
		total += recent[i].RainfallMM
	}
	return total
}

// Describe renders the thresholds for diagnostics output.
func (t Thresholds) Describe() string {
	return fmt.Sprintf("moisture %.0f-%.0f%%, temp %.0f-%.0f degC, wind max %.0f km/h, recent rain max %.0f mm/%dd, forecast rain max %.0f mm",
		t.MoistureMinPct, t.MoistureMaxPct, t.TempMinC, t.TempMaxC, t.WindMaxKmh,
		t.RecentRainMaxMM, t.RecentRainDays, t.ForecastRainMM)
}
