package model

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"irricast/internal/config"
	"irricast/internal/types"
)

// Selection is the outcome of one training run: every surviving candidate
// with its held-out metrics, plus the best candidate ready for prediction.
type Selection struct {
	Candidates    []types.ModelCandidate
	Best          types.MoisturePredictor
	BestAlgorithm types.Algorithm
	TrainRows     int
	TestRows      int
	TrainedAt     time.Time
}

// Selector trains the five regression candidates on sensor history and picks
// the best by held-out R², breaking ties on RMSE.
type Selector struct {
	cfg    config.ModelConfig
	clock  types.Clock
	logger *slog.Logger
}

// NewSelector creates a Selector.
func NewSelector(cfg config.ModelConfig, clock types.Clock, logger *slog.Logger) *Selector {
	return &Selector{
		cfg:    cfg,
		clock:  clock,
		logger: logger.With(slog.String("component", "model_selector")),
	}
}

// candidateSpec pairs an algorithm name with a fresh regressor constructor so
// each training run fits from clean state.
type candidateSpec struct {
	algo types.Algorithm
	make func(seed uint64) Regressor
}

func candidateSpecs() []candidateSpec {
	return []candidateSpec{
		{types.AlgorithmLinear, func(uint64) Regressor { return &LinearRegression{} }},
		{types.AlgorithmRidge, func(uint64) Regressor { return &RidgeRegression{Alpha: 1.0} }},
		{types.AlgorithmLasso, func(uint64) Regressor { return &LassoRegression{Alpha: 0.1} }},
		{types.AlgorithmBagging, func(seed uint64) Regressor {
			return &BaggingRegressor{Trees: 100, MaxDepth: 10, Seed: seed}
		}},
		{types.AlgorithmBoosting, func(uint64) Regressor {
			return &GradientBoostingRegressor{Trees: 100, MaxDepth: 5, LearningRate: 0.1}
		}},
	}
}

// Train fits all candidates on the given history. Readings must be
// chronologically sorted. Returns data_history_too_short before any fit when
// the history cannot support a train/test split, and model_no_candidates when
// every candidate fails to fit.
func (s *Selector) Train(ctx context.Context, readings []types.SensorReading) (*Selection, error) {
	if len(readings) < s.cfg.MinRows {
		return nil, types.NewAppError(
			types.ErrCodeDataHistoryTooShort,
			fmt.Sprintf("need at least %d readings to train, got %d", s.cfg.MinRows, len(readings)),
			nil,
		).WithDetails(map[string]any{"min_rows": s.cfg.MinRows, "rows": len(readings)})
	}

	// Each reading pairs with its successor, so n readings yield n-1
	// supervised rows; the split needs at least one row on each side.
	x, y := BuildDataset(readings)
	if len(x) < 2 {
		return nil, types.NewAppError(
			types.ErrCodeDataHistoryTooShort,
			fmt.Sprintf("history yields %d supervised rows; need at least 2 for a train/test split", len(x)),
			nil,
		).WithDetails(map[string]any{"min_rows": s.cfg.MinRows, "rows": len(readings)})
	}
	xTrain, xTest, yTrain, yTest := SplitChronological(x, y, s.cfg.SplitRatio)

	scaler := FitScaler(xTrain)
	xTrainStd := scaler.TransformAll(xTrain)
	xTestStd := scaler.TransformAll(xTest)

	specs := candidateSpecs()
	type fitResult struct {
		algo       types.Algorithm
		regressor  Regressor
		metrics    types.RegressionMetrics
		importance map[string]float64
	}

	var mu sync.Mutex
	results := make([]fitResult, 0, len(specs))

	g, ctx := errgroup.WithContext(ctx)
	for _, spec := range specs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			reg := spec.make(uint64(s.cfg.Seed))
			if err := reg.Fit(xTrainStd, yTrain); err != nil {
				// A failed fit drops the candidate, never the run.
				s.logger.Warn("candidate fit failed",
					slog.String("algorithm", string(spec.algo)),
					slog.String("error", err.Error()),
				)
				return nil
			}

			metrics, err := evaluate(reg, xTestStd, yTest)
			if err != nil {
				s.logger.Warn("candidate evaluation failed",
					slog.String("algorithm", string(spec.algo)),
					slog.String("error", err.Error()),
				)
				return nil
			}

			mu.Lock()
			results = append(results, fitResult{
				algo:       spec.algo,
				regressor:  reg,
				metrics:    metrics,
				importance: importanceOf(reg),
			})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "training interrupted", err)
	}

	if len(results) == 0 {
		return nil, types.NewAppError(types.ErrCodeModelNoCandidates, "all regression candidates failed to fit", nil)
	}

	// Best fit first: highest R², then lowest RMSE, then stable by name so
	// reruns on identical data select identically.
	sort.Slice(results, func(i, j int) bool {
		if results[i].metrics.R2 != results[j].metrics.R2 {
			return results[i].metrics.R2 > results[j].metrics.R2
		}
		if results[i].metrics.RMSE != results[j].metrics.RMSE {
			return results[i].metrics.RMSE < results[j].metrics.RMSE
		}
		return results[i].algo < results[j].algo
	})

	candidates := make([]types.ModelCandidate, len(results))
	for i, r := range results {
		candidates[i] = types.ModelCandidate{
			Algorithm:         r.algo,
			Metrics:           r.metrics,
			FeatureImportance: r.importance,
			Best:              i == 0,
		}
	}

	best := results[0]
	s.logger.Info("model selection complete",
		slog.String("best_algorithm", string(best.algo)),
		slog.Float64("r2", best.metrics.R2),
		slog.Float64("rmse", best.metrics.RMSE),
		slog.Int("candidates", len(candidates)),
		slog.Int("train_rows", len(xTrain)),
		slog.Int("test_rows", len(xTest)),
	)

	return &Selection{
		Candidates:    candidates,
		Best:          &scaledPredictor{scaler: scaler, regressor: best.regressor},
		BestAlgorithm: best.algo,
		TrainRows:     len(xTrain),
		TestRows:      len(xTest),
		TrainedAt:     s.clock.Now(),
	}, nil
}

// scaledPredictor applies the training-time scaler before scoring, so callers
// pass raw feature vectors.
type scaledPredictor struct {
	scaler    *Scaler
	regressor Regressor
}

func (p *scaledPredictor) Predict(features []float64) float64 {
	return p.regressor.Predict(p.scaler.Transform(features))
}

// evaluate scores a fitted regressor on the held-out partition.
func evaluate(reg Regressor, xTest [][]float64, yTest []float64) (types.RegressionMetrics, error) {
	absErrs := make([]float64, len(yTest))
	sqErrs := make([]float64, len(yTest))
	for i, row := range xTest {
		pred := reg.Predict(row)
		if math.IsNaN(pred) || math.IsInf(pred, 0) {
			return types.RegressionMetrics{}, types.NewAppError(
				types.ErrCodeModelFitFailed, "candidate produced non-finite prediction", nil)
		}
		diff := pred - yTest[i]
		absErrs[i] = math.Abs(diff)
		sqErrs[i] = diff * diff
	}

	mae, err := stats.Mean(absErrs)
	if err != nil {
		return types.RegressionMetrics{}, err
	}
	mse, err := stats.Mean(sqErrs)
	if err != nil {
		return types.RegressionMetrics{}, err
	}

	// R² = 1 - SS_res/SS_tot. A constant test target makes SS_tot zero;
	// score such candidates 0 so they never win selection on a degenerate
	// partition.
	variance, err := stats.PopulationVariance(yTest)
	if err != nil {
		return types.RegressionMetrics{}, err
	}
	r2 := 0.0
	if variance > 0 {
		r2 = 1 - mse/variance
	}

	return types.RegressionMetrics{
		MAE:  mae,
		MSE:  mse,
		RMSE: math.Sqrt(mse),
		R2:   r2,
	}, nil
}

// importanceOf extracts normalized feature importances from ensemble
// candidates; linear candidates return none.
func importanceOf(reg Regressor) map[string]float64 {
	type importer interface{ FeatureImportance() []float64 }
	imp, ok := reg.(importer)
	if !ok {
		return nil
	}
	values := imp.FeatureImportance()
	out := make(map[string]float64, len(values))
	for i, v := range values {
		if i < len(FeatureNames) {
			out[FeatureNames[i]] = v
		}
	}
	return out
}
