package schedule

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"irricast/internal/engine"
	"irricast/internal/types"
)

type mockClock struct{ now time.Time }

func (c mockClock) Now() time.Time { return c.now }

// fakeProvider returns canned forecasts or a canned error.
type fakeProvider struct {
	days []types.ForecastDay
	err  error
}

func (f *fakeProvider) Fetch(ctx context.Context, loc types.Location, days int) ([]types.ForecastDay, error) {
	if f.err != nil {
		return nil, f.err
	}
	if days > len(f.days) {
		days = len(f.days)
	}
	out := make([]types.ForecastDay, days)
	copy(out, f.days[:days])
	return out, nil
}

// rampPredictor adds a fixed delta to the lag feature, making the
// feed-forward chain observable.
type rampPredictor struct{ delta float64 }

func (p rampPredictor) Predict(features []float64) float64 {
	return features[0] + p.delta
}

func testThresholds() engine.Thresholds {
	return engine.Thresholds{
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

func mildWeek(n int) []types.ForecastDay {
	base := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	days := make([]types.ForecastDay, n)
	for i := range days {
		days[i] = types.ForecastDay{Date: base.AddDate(0, 0, i), TempMeanC: 22, WindSpeedKmh: 8}
	}
	return days
}

func history(moisture float64) []types.SensorReading {
	base := time.Date(2026, 8, 20, 6, 0, 0, 0, time.UTC)
	readings := make([]types.SensorReading, 5)
	for i := range readings {
		readings[i] = types.SensorReading{
			Timestamp:    base.AddDate(0, 0, i),
			SoilMoisture: moisture,
			PH:           6.5,
			TemperatureC: 23,
			Nitrogen:     40,
			Phosphorus:   30,
			Potassium:    25,
		}
	}
	return readings
}

func newTestBuilder(provider types.ForecastProvider) *Builder {
	clock := mockClock{now: time.Date(2026, 8, 26, 9, 30, 0, 0, time.UTC)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewBuilder(provider, engine.New(testThresholds()), clock, logger)
}

func TestBuild_FullHorizon(t *testing.T) {
	b := newTestBuilder(&fakeProvider{days: mildWeek(7)})

	sched, err := b.Build(context.Background(), history(45), rampPredictor{}, types.Location{Lat: 1, Lon: 2}, 7)
	require.NoError(t, err)

	assert.False(t, sched.Partial)
	assert.Empty(t, sched.Warnings)
	require.Len(t, sched.Decisions, 7)

	for i := 1; i < len(sched.Decisions); i++ {
		assert.True(t, sched.Decisions[i].Date.After(sched.Decisions[i-1].Date), "decisions must be date-ordered")
	}
	for _, d := range sched.Decisions {
		require.True(t, d.Command.Valid())
		assert.GreaterOrEqual(t, d.Confidence, 0.0)
		assert.LessOrEqual(t, d.Confidence, 1.0)
		require.NotNil(t, d.Weather)

		tok, err := ParseToken(d.Token)
		require.NoError(t, err)
		assert.Equal(t, d.Command, tok.Command)
	}
}

func TestBuild_PredictionFeedsForward(t *testing.T) {
	b := newTestBuilder(&fakeProvider{days: mildWeek(3)})

	sched, err := b.Build(context.Background(), history(40), rampPredictor{delta: -4}, types.Location{}, 3)
	require.NoError(t, err)
	require.Len(t, sched.Decisions, 3)

	assert.InDelta(t, 36, sched.Decisions[0].PredictedMoisture, 1e-9)
	assert.InDelta(t, 32, sched.Decisions[1].PredictedMoisture, 1e-9)
	assert.InDelta(t, 28, sched.Decisions[2].PredictedMoisture, 1e-9)

	// Day 3 dips below the minimum: the plan ends with an IRRIGATE.
	assert.Equal(t, types.CommandIrrigate, sched.Decisions[2].Command)
}

func TestBuild_TruncatedForecast(t *testing.T) {
	b := newTestBuilder(&fakeProvider{days: mildWeek(4)})

	sched, err := b.Build(context.Background(), history(45), rampPredictor{}, types.Location{}, 7)
	require.NoError(t, err)

	assert.True(t, sched.Partial)
	assert.Len(t, sched.Decisions, 4)
	require.Len(t, sched.Warnings, 1)
	assert.Equal(t, types.WarnTruncatedHorizon, sched.Warnings[0].Code)
}

func TestBuild_WeatherFreeDegradation(t *testing.T) {
	provider := &fakeProvider{err: types.NewAppError(types.ErrCodeUpstreamForecast, "down", nil)}
	b := newTestBuilder(provider)

	sched, err := b.Build(context.Background(), history(45), rampPredictor{delta: -4}, types.Location{}, 5)
	require.NoError(t, err)

	assert.True(t, sched.Partial)
	require.Len(t, sched.Warnings, 1)
	assert.Equal(t, types.WarnForecastUnavailable, sched.Warnings[0].Code)

	// The full horizon is still planned, dated, and tokenized.
	require.Len(t, sched.Decisions, 5)
	for i, d := range sched.Decisions {
		assert.Nil(t, d.Weather)
		assert.False(t, d.Date.IsZero(), "decision %d missing date", i)
		_, err := ParseToken(d.Token)
		require.NoError(t, err)
	}
}

func TestBuild_StaleForecastWarns(t *testing.T) {
	days := mildWeek(7)
	for i := range days {
		days[i].Stale = true
	}
	b := newTestBuilder(&fakeProvider{days: days})

	sched, err := b.Build(context.Background(), history(45), rampPredictor{}, types.Location{}, 7)
	require.NoError(t, err)

	assert.True(t, sched.Partial)
	require.Len(t, sched.Warnings, 1)
	assert.Equal(t, types.WarnForecastStale, sched.Warnings[0].Code)
	assert.Len(t, sched.Decisions, 7)
}

func TestBuild_ValidationErrors(t *testing.T) {
	b := newTestBuilder(&fakeProvider{days: mildWeek(7)})

	_, err := b.Build(context.Background(), history(45), rampPredictor{}, types.Location{}, 0)
	require.Error(t, err)

	_, err = b.Build(context.Background(), nil, rampPredictor{}, types.Location{}, 7)
	require.Error(t, err)
	assert.True(t, types.IsDataError(err))
}

func TestBuild_NonNetworkFetchErrorAborts(t *testing.T) {
	provider := &fakeProvider{err: types.NewAppError(types.ErrCodeValidationInvalidDays, "bad", nil)}
	b := newTestBuilder(provider)

	_, err := b.Build(context.Background(), history(45), rampPredictor{}, types.Location{}, 7)
	require.Error(t, err)
}
