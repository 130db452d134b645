package advisor

import (
	"context"
	"io"
	"time"

	"irricast/internal/dataset"
	"irricast/internal/schedule"
	"irricast/internal/types"
)

// ModelsReport describes the currently selected model generation.
type ModelsReport struct {
	Candidates    []types.ModelCandidate `json:"candidates"`
	BestAlgorithm types.Algorithm        `json:"best_algorithm"`
	TrainRows     int                    `json:"train_rows"`
	TestRows      int                    `json:"test_rows"`
	HistoryRows   int                    `json:"history_rows"`
	TrainedAt     time.Time              `json:"trained_at"`
	LoadedAt      time.Time              `json:"loaded_at"`
}

// ReloadReport summarizes a successful dataset reload.
type ReloadReport struct {
	Rows          int             `json:"rows"`
	BestAlgorithm types.Algorithm `json:"best_algorithm"`
	R2            float64         `json:"r2"`
	LoadedAt      time.Time       `json:"loaded_at"`
}

// Service ties the snapshot lifecycle to schedule building and dataset
// ingestion. It is the single entry point the HTTP handlers consume.
type Service struct {
	advisor *Advisor
	builder *schedule.Builder
	history types.HistorySource // nil when no database is configured
}

// NewService creates a Service. history may be nil; store-backed reloads
// then fail with data_no_history_loaded.
func NewService(adv *Advisor, builder *schedule.Builder, history types.HistorySource) *Service {
	return &Service{advisor: adv, builder: builder, history: history}
}

// BuildSchedule produces a multi-day schedule against the live snapshot.
func (s *Service) BuildSchedule(ctx context.Context, loc types.Location, days int) (*types.Schedule, error) {
	snap, err := s.advisor.Snapshot()
	if err != nil {
		return nil, err
	}
	return s.builder.Build(ctx, snap.History, snap.Selection.Best, loc, days)
}

// DecisionReport is the next-day decision together with the degradation
// markers of the one-day schedule it was cut from, so a stale or
// weather-free decision never leaves the service unmarked.
type DecisionReport struct {
	Decision types.IrrigationDecision
	Partial  bool
	Warnings []types.ScheduleWarning
}

// Decide produces the next-day decision: a one-day schedule's head.
func (s *Service) Decide(ctx context.Context, loc types.Location) (*DecisionReport, error) {
	sched, err := s.BuildSchedule(ctx, loc, 1)
	if err != nil {
		return nil, err
	}
	if len(sched.Decisions) == 0 {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "schedule produced no decisions", nil)
	}
	return &DecisionReport{
		Decision: sched.Decisions[0],
		Partial:  sched.Partial,
		Warnings: sched.Warnings,
	}, nil
}

// Models reports the live snapshot's candidate ranking.
func (s *Service) Models(ctx context.Context) (*ModelsReport, error) {
	snap, err := s.advisor.Snapshot()
	if err != nil {
		return nil, err
	}
	sel := snap.Selection
	return &ModelsReport{
		Candidates:    sel.Candidates,
		BestAlgorithm: sel.BestAlgorithm,
		TrainRows:     sel.TrainRows,
		TestRows:      sel.TestRows,
		HistoryRows:   len(snap.History),
		TrainedAt:     sel.TrainedAt,
		LoadedAt:      snap.LoadedAt,
	}, nil
}

// ReloadFromCSV parses an uploaded sensor history and retrains.
func (s *Service) ReloadFromCSV(ctx context.Context, r io.Reader, gzipped bool) (*ReloadReport, error) {
	readings, err := dataset.Load(r, gzipped)
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, readings)
}

// ReloadFromStore pulls a field's history from the sensor store and retrains.
func (s *Service) ReloadFromStore(ctx context.Context, fieldID string, since time.Time) (*ReloadReport, error) {
	if s.history == nil {
		return nil, types.NewAppError(types.ErrCodeDataNoHistory, "no sensor store configured; upload a dataset instead", nil)
	}
	readings, err := s.history.ListByField(ctx, fieldID, since)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, types.NewAppError(types.ErrCodeDataNoHistory, "sensor store returned no readings for field", nil).
			WithDetails(map[string]any{"field_id": fieldID})
	}
	return s.reload(ctx, readings)
}

func (s *Service) reload(ctx context.Context, readings []types.SensorReading) (*ReloadReport, error) {
	snap, err := s.advisor.Reload(ctx, readings)
	if err != nil {
		return nil, err
	}
	return &ReloadReport{
		Rows:          len(snap.History),
		BestAlgorithm: snap.Selection.BestAlgorithm,
		R2:            bestR2(snap.Selection),
		LoadedAt:      snap.LoadedAt,
	}, nil
}
