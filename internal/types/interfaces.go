package types

import (
	"context"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// Logger defines the structured logging interface used where components need
// mockable logging. The production implementation wraps log/slog.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}

// ForecastProvider is the weather client contract consumed by the schedule
// builder. Fetch returns up to days date-ordered forecast entries; it may
// return fewer if the upstream source has less data.
type ForecastProvider interface {
	Fetch(ctx context.Context, loc Location, days int) ([]ForecastDay, error)
}

// MoisturePredictor predicts next-day soil moisture from a feature vector.
// Implementations are the fitted regression candidates; all are pure
// functions of their inputs after fitting.
type MoisturePredictor interface {
	Predict(features []float64) float64
}

// HistorySource provides the sensor history backing a dataset load.
// The import pipeline populating the underlying store is an external
// collaborator; this engine only reads.
type HistorySource interface {
	ListByField(ctx context.Context, fieldID string, since time.Time) ([]SensorReading, error)
}
