// Package advisor owns the dataset-load lifecycle. A successful reload
// trains the regression candidates and atomically swaps in a new snapshot;
// a failed reload leaves the previous snapshot serving. Schedules and
// decisions are always computed against one coherent snapshot, never a
// half-replaced one.
package advisor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"irricast/internal/model"
	"irricast/internal/types"
)

// Snapshot is one immutable dataset generation: the sorted history it was
// trained on plus the model selection. Never mutated after the swap.
type Snapshot struct {
	History   []types.SensorReading
	Selection *model.Selection
	LoadedAt  time.Time
}

// Advisor coordinates reloads and hands out the live snapshot.
type Advisor struct {
	selector *model.Selector
	clock    types.Clock
	logger   *slog.Logger
	current  atomic.Pointer[Snapshot]
}

// New creates an Advisor with no snapshot loaded.
func New(selector *model.Selector, clock types.Clock, logger *slog.Logger) *Advisor {
	return &Advisor{
		selector: selector,
		clock:    clock,
		logger:   logger.With(slog.String("component", "advisor")),
	}
}

// Reload trains on the given readings and swaps the snapshot on success.
// DataError and ModelError abort only this reload; the prior snapshot stays
// live.
func (a *Advisor) Reload(ctx context.Context, readings []types.SensorReading) (*Snapshot, error) {
	if len(readings) == 0 {
		return nil, types.NewAppError(types.ErrCodeDataNoHistory, "reload requires a non-empty history", nil)
	}

	history := make([]types.SensorReading, len(readings))
	copy(history, readings)
	types.SortReadings(history)

	selection, err := a.selector.Train(ctx, history)
	if err != nil {
		a.logger.Error("reload failed; previous snapshot remains active",
			slog.Int("rows", len(history)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	snap := &Snapshot{
		History:   history,
		Selection: selection,
		LoadedAt:  a.clock.Now(),
	}
	a.current.Store(snap)

	a.logger.Info("dataset reloaded",
		slog.Int("rows", len(history)),
		slog.String("best_algorithm", string(selection.BestAlgorithm)),
		slog.Float64("r2", bestR2(selection)),
	)
	return snap, nil
}

// Snapshot returns the live snapshot, or data_no_history_loaded when no
// reload has succeeded yet.
func (a *Advisor) Snapshot() (*Snapshot, error) {
	snap := a.current.Load()
	if snap == nil {
		return nil, types.NewAppError(types.ErrCodeDataNoHistory, "no dataset loaded; reload first", nil)
	}
	return snap, nil
}

func bestR2(sel *model.Selection) float64 {
	for _, c := range sel.Candidates {
		if c.Best {
			return c.Metrics.R2
		}
	}
	return 0
}
