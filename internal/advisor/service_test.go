package advisor

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"irricast/internal/engine"
	"irricast/internal/schedule"
	"irricast/internal/types"
)

// fakeForecastProvider serves a canned forecast or a canned error.
type fakeForecastProvider struct {
	days []types.ForecastDay
	err  error
}

func (f *fakeForecastProvider) Fetch(ctx context.Context, loc types.Location, days int) ([]types.ForecastDay, error) {
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

func testService(t *testing.T, provider types.ForecastProvider) *Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := mockClock{now: time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)}

	adv := testAdvisor()
	_, err := adv.Reload(context.Background(), trainingHistory(60))
	require.NoError(t, err)

	thresholds := engine.Thresholds{
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
	builder := schedule.NewBuilder(provider, engine.New(thresholds), clock, logger)
	return NewService(adv, builder, nil)
}

func serviceForecast(n int) []types.ForecastDay {
	base := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	days := make([]types.ForecastDay, n)
	for i := range days {
		days[i] = types.ForecastDay{
			Date:      base.AddDate(0, 0, i),
			TempMeanC: 24,
		}
	}
	return days
}

var serviceLoc = types.Location{Lat: 40.4168, Lon: -3.7038}

func TestDecide_CleanForecast(t *testing.T) {
	svc := testService(t, &fakeForecastProvider{days: serviceForecast(7)})

	report, err := svc.Decide(context.Background(), serviceLoc)
	require.NoError(t, err)

	assert.NotEmpty(t, report.Decision.Command)
	assert.NotNil(t, report.Decision.Weather)
	assert.False(t, report.Partial)
	assert.Empty(t, report.Warnings)
}

func TestDecide_ForecastOutageMarksPartial(t *testing.T) {
	outage := types.NewAppError(types.ErrCodeUpstreamForecast, "down", nil)
	svc := testService(t, &fakeForecastProvider{err: outage})

	report, err := svc.Decide(context.Background(), serviceLoc)
	require.NoError(t, err)

	assert.True(t, report.Partial)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, types.WarnForecastUnavailable, report.Warnings[0].Code)
	assert.Nil(t, report.Decision.Weather, "weather-free decision must not carry a forecast snapshot")
	assert.NotEmpty(t, report.Decision.Command)
}

func TestDecide_StaleForecastMarksPartial(t *testing.T) {
	days := serviceForecast(7)
	for i := range days {
		days[i].Stale = true
	}
	svc := testService(t, &fakeForecastProvider{days: days})

	report, err := svc.Decide(context.Background(), serviceLoc)
	require.NoError(t, err)

	assert.True(t, report.Partial)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, types.WarnForecastStale, report.Warnings[0].Code)
	require.NotNil(t, report.Decision.Weather)
	assert.True(t, report.Decision.Weather.Stale)
}
