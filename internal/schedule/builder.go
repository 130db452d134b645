package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"irricast/internal/engine"
	"irricast/internal/model"
	"irricast/internal/types"
)

// Builder assembles multi-day irrigation schedules. A forecast shortfall or
// outage degrades the schedule (Partial=true plus a warning) instead of
// failing it; only validation and data errors abort a build.
type Builder struct {
	weather types.ForecastProvider
	engine  *engine.Engine
	clock   types.Clock
	logger  *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(weather types.ForecastProvider, eng *engine.Engine, clock types.Clock, logger *slog.Logger) *Builder {
	return &Builder{
		weather: weather,
		engine:  eng,
		clock:   clock,
		logger:  logger.With(slog.String("component", "schedule_builder")),
	}
}

// Build produces a date-ordered schedule of up to days decisions. history
// must be chronologically sorted and non-empty; predictor is the currently
// selected model. Each day's predicted moisture feeds forward as the next
// day's lag feature.
func (b *Builder) Build(
	ctx context.Context,
	history []types.SensorReading,
	predictor types.MoisturePredictor,
	loc types.Location,
	days int,
) (*types.Schedule, error) {
	if days < 1 {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidDays, "schedule horizon must be at least 1 day", nil)
	}
	if len(history) == 0 {
		return nil, types.NewAppError(types.ErrCodeDataNoHistory, "no sensor history loaded", nil)
	}

	sched := &types.Schedule{
		Location:    loc,
		GeneratedAt: b.clock.Now(),
	}

	forecast, err := b.weather.Fetch(ctx, loc, days)
	switch {
	case err == nil:
	case types.IsNetworkError(err):
		// Outage with no cached fallback: build the full horizon without
		// weather-derived rules rather than failing the schedule.
		b.logger.Warn("forecast unavailable; building weather-free schedule",
			slog.String("location", loc.Key()),
			slog.String("error", err.Error()),
		)
		forecast = nil
		sched.Partial = true
		sched.Warnings = append(sched.Warnings, types.ScheduleWarning{
			Code:    types.WarnForecastUnavailable,
			Message: "forecast source unavailable; weather rules skipped",
		})
	default:
		return nil, err
	}

	horizon := days
	if forecast != nil && len(forecast) < days {
		horizon = len(forecast)
		sched.Partial = true
		sched.Warnings = append(sched.Warnings, types.ScheduleWarning{
			Code:    types.WarnTruncatedHorizon,
			Message: fmt.Sprintf("forecast covers %d of %d requested days", len(forecast), days),
		})
	}
	for _, day := range forecast {
		if day.Stale {
			sched.Partial = true
			sched.Warnings = append(sched.Warnings, types.ScheduleWarning{
				Code:    types.WarnForecastStale,
				Message: "forecast served from an expired cache entry",
			})
			break
		}
	}

	// Covariates the sensors cannot forecast hold at their last observed
	// values through the horizon.
	tail := history[len(history)-1]
	lagMoisture := tail.SoilMoisture
	startDate := b.clock.Now().UTC().Truncate(24 * time.Hour)

	sched.Decisions = make([]types.IrrigationDecision, 0, horizon)
	for i := 0; i < horizon; i++ {
		var day *types.ForecastDay
		date := startDate.AddDate(0, 0, i+1)
		tempC := tail.TemperatureC
		rainProb, rainMM := 0.0, 0.0

		if forecast != nil {
			day = &forecast[i]
			date = day.Date
			tempC = day.TempMeanC
			rainProb = day.PrecipitationProb
			rainMM = day.PrecipitationMM
		}

		features := model.FeatureVector(
			lagMoisture, tail.PH, tempC,
			tail.Nitrogen, tail.Phosphorus, tail.Potassium,
			rainProb, rainMM,
		)
		predicted := clampMoisture(predictor.Predict(features))

		decision := b.engine.Evaluate(predicted, day, history)
		decision.Date = date
		decision.Token = tokenFor(decision, tempC)
		sched.Decisions = append(sched.Decisions, decision)

		lagMoisture = predicted
	}

	b.logger.Info("schedule built",
		slog.String("location", loc.Key()),
		slog.Int("days", len(sched.Decisions)),
		slog.Bool("partial", sched.Partial),
	)
	return sched, nil
}

// clampMoisture bounds a prediction to the physical 0-100% range.
func clampMoisture(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
