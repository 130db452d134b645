package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"irricast/internal/types"
)

func defaultThresholds() Thresholds {
	return Thresholds{
		MoistureMinPct:  30,
		MoistureMaxPct:  50,
		TempMinC:        10,
		TempMaxC:        35,
		WindMaxKmh:      20,
		RecentRainMaxMM: 10,
		RecentRainDays:  3,
		ForecastRainMM:  5,
		TrendWindowSize: 7,
	}
}

// historyWith builds a daily history ending today with the given moisture and
// rainfall series (last element is the most recent reading).
func historyWith(moisture, rainfall []float64) []types.SensorReading {
	base := time.Date(2026, 8, 20, 6, 0, 0, 0, time.UTC)
	readings := make([]types.SensorReading, len(moisture))
	for i := range moisture {
		readings[i] = types.SensorReading{
			ID:           "r",
			Timestamp:    base.AddDate(0, 0, i),
			SoilMoisture: moisture[i],
			RainfallMM:   rainfall[i],
			TemperatureC: 22,
			PH:           6.5,
		}
	}
	return readings
}

func day(tempC, wind, rainMM float64) *types.ForecastDay {
	return &types.ForecastDay{
		Date:            time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC),
		TempMeanC:       tempC,
		WindSpeedKmh:    wind,
		PrecipitationMM: rainMM,
	}
}

func TestEvaluate_LowMoistureIrrigates(t *testing.T) {
	// Scenario: dry soil, mild weather, no rain anywhere.
	eng := New(defaultThresholds())
	history := historyWith([]float64{40, 41, 42}, []float64{0, 0, 0})

	d := eng.Evaluate(25, day(28, 10, 0), history)

	assert.Equal(t, types.CommandIrrigate, d.Command)
	assert.InDelta(t, 0.8, d.Confidence, 0.001)
	assert.Contains(t, d.Reasons, "soil moisture below minimum")
}

func TestEvaluate_WetSoilAndRecentRainDoNotIrrigate(t *testing.T) {
	// Scenario: saturated soil plus 18mm observed over the last days.
	eng := New(defaultThresholds())
	history := historyWith([]float64{48, 52, 55}, []float64{6, 6, 6})

	d := eng.Evaluate(55, day(22, 5, 0), history)

	assert.Equal(t, types.CommandDoNotIrrigate, d.Command)
	assert.InDelta(t, 0.8, d.Confidence, 0.001)
	assert.Contains(t, d.Reasons, "recent rainfall sufficient")
	assert.Contains(t, d.Reasons, "soil moisture above maximum")
}

func TestEvaluate_WindOverride(t *testing.T) {
	// Scenario: moisture in range but wind over the limit.
	eng := New(defaultThresholds())
	history := historyWith([]float64{33, 32, 32}, []float64{0, 0, 0})

	d := eng.Evaluate(32, day(25, 25, 0), history)

	assert.Equal(t, types.CommandDoNotIrrigate, d.Command)
	assert.InDelta(t, 0.7, d.Confidence, 0.001)
	assert.Contains(t, d.Reasons, "wind speed exceeds limit")
}

func TestEvaluate_TemperatureDowngradesPendingIrrigate(t *testing.T) {
	eng := New(defaultThresholds())
	history := historyWith([]float64{40, 40, 40}, []float64{0, 0, 0})

	d := eng.Evaluate(25, day(38, 5, 0), history)

	assert.Equal(t, types.CommandHold, d.Command)
	assert.Contains(t, d.Reasons, "soil moisture below minimum")
	assert.Contains(t, d.Reasons, "temperature outside acceptable band")
	assert.GreaterOrEqual(t, d.Confidence, 0.6)
}

func TestEvaluate_ForecastRainTurnsIrrigateIntoWaitRain(t *testing.T) {
	eng := New(defaultThresholds())
	history := historyWith([]float64{40, 40, 40}, []float64{0, 0, 0})

	d := eng.Evaluate(25, day(22, 5, 12), history)

	assert.Equal(t, types.CommandWaitRain, d.Command)
	assert.Contains(t, d.Reasons, "significant rainfall forecast")
}

func TestEvaluate_ForecastRainWithoutPendingIrrigate(t *testing.T) {
	eng := New(defaultThresholds())
	history := historyWith([]float64{40, 40, 40}, []float64{0, 0, 0})

	d := eng.Evaluate(40, day(22, 5, 12), history)

	assert.Equal(t, types.CommandDoNotIrrigate, d.Command)
	assert.Contains(t, d.Reasons, "significant rainfall forecast")
}

func TestEvaluate_TrendDoesNotOverrideDoNotIrrigate(t *testing.T) {
	// Trailing average is below minimum, but the predicted value is above
	// maximum: rule 2 must stand.
	eng := New(defaultThresholds())
	history := historyWith([]float64{20, 22, 25}, []float64{0, 0, 0})

	d := eng.Evaluate(55, day(22, 5, 0), history)

	assert.Equal(t, types.CommandDoNotIrrigate, d.Command)
	assert.Contains(t, d.Reasons, "moisture trend below minimum")
}

func TestEvaluate_TrendReinforcesIrrigate(t *testing.T) {
	eng := New(defaultThresholds())
	history := historyWith([]float64{20, 22, 25}, []float64{0, 0, 0})

	d := eng.Evaluate(35, day(22, 5, 0), history)

	assert.Equal(t, types.CommandIrrigate, d.Command)
	assert.InDelta(t, 0.7, d.Confidence, 0.001)
}

func TestEvaluate_DefaultHold(t *testing.T) {
	eng := New(defaultThresholds())
	history := historyWith([]float64{40, 41, 42}, []float64{0, 0, 0})

	d := eng.Evaluate(40, day(22, 5, 0), history)

	assert.Equal(t, types.CommandHold, d.Command)
	assert.InDelta(t, 0.5, d.Confidence, 0.001)
}

func TestEvaluate_NoForecastSkipsWeatherRules(t *testing.T) {
	eng := New(defaultThresholds())
	history := historyWith([]float64{40, 40, 40}, []float64{0, 0, 0})

	d := eng.Evaluate(25, nil, history)

	assert.Equal(t, types.CommandIrrigate, d.Command)
	assert.Nil(t, d.Weather)
}

func TestEvaluate_Deterministic(t *testing.T) {
	eng := New(defaultThresholds())
	history := historyWith([]float64{20, 55, 31}, []float64{3, 8, 2})
	fd := day(36, 22, 7)

	first := eng.Evaluate(29, fd, history)
	for i := 0; i < 10; i++ {
		again := eng.Evaluate(29, fd, history)
		assert.Equal(t, first.Command, again.Command)
		assert.Equal(t, first.Confidence, again.Confidence)
		assert.Equal(t, first.Reasons, again.Reasons)
	}
}

func TestEvaluate_RainNeverYieldsIrrigate(t *testing.T) {
	// Property: whenever recent or forecast rainfall exceeds its threshold,
	// the command is never IRRIGATE.
	eng := New(defaultThresholds())

	moistures := []float64{5, 25, 31, 45, 55}
	histories := [][]float64{
		{12, 0, 0}, // heavy rain 3 days ago
		{0, 0, 12}, // heavy rain today
		{5, 5, 5},  // cumulative over threshold
	}
	forecastRain := []float64{0, 6, 20}

	for _, m := range moistures {
		for _, rain := range histories {
			for _, fr := range forecastRain {
				history := historyWith([]float64{30, 30, 30}, rain)
				d := eng.Evaluate(m, day(22, 5, fr), history)

				require.True(t, d.Command.Valid())
				assert.NotEqual(t, types.CommandIrrigate, d.Command,
					"moisture=%v recent=%v forecast=%v", m, rain, fr)
				assert.GreaterOrEqual(t, d.Confidence, 0.0)
				assert.LessOrEqual(t, d.Confidence, 1.0)
			}
		}
	}
}
