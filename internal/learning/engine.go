// Package learning tracks predicted-vs-actual outcome accuracy per strategy.
package learning

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tradepulse/internal/interfaces"
	"tradepulse/internal/logger"
	"tradepulse/internal/metrics"
	"tradepulse/internal/store"
	"tradepulse/internal/types"
)

// Engine computes accuracy samples and maintains rolling per-strategy
// aggregates. Aggregates are process-local caches re-derivable from the
// store; Reload restores them at process start.
type Engine struct {
	store   interfaces.Store
	cfg     store.LearningConfig
	metrics *metrics.Metrics

	mu   sync.Mutex
	aggs map[string]*types.StrategyPerformance
	// Samples whose persistence failed, kept for a later reconciliation
	// pass to replay.
	unpersisted []types.LearningSample
}

func New(st interfaces.Store, cfg store.LearningConfig, m *metrics.Metrics) *Engine {
	return &Engine{
		store:   st,
		cfg:     cfg,
		metrics: m,
		aggs:    map[string]*types.StrategyPerformance{},
	}
}

// Reload restores the per-strategy aggregates from the persistent store.
func (e *Engine) Reload(ctx context.Context) error {
	aggs, err := e.store.LoadAllAggregates(ctx)
	if err != nil {
		return fmt.Errorf("reload strategy aggregates: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range aggs {
		a := aggs[i]
		e.aggs[a.StrategyID] = &a
	}
	logger.Info(ctx, "Strategy aggregates reloaded", "strategies", len(aggs))
	return nil
}

// RecordOutcome computes the accuracy sample for one executed signal,
// persists it, and folds it into the strategy aggregate. Persistence
// failure degrades gracefully: the in-memory aggregate is still updated
// and the sample is retained for replay.
func (e *Engine) RecordOutcome(ctx context.Context, sig types.Signal, res types.ExecutionResult) types.LearningSample {
	predicted := predictedOutcome(sig)
	actual := -1.0
	if res.Success {
		actual = 1.0
	}

	sample := types.LearningSample{
		Symbol:           sig.Symbol,
		StrategyID:       sig.StrategyID,
		SignalConfidence: sig.Confidence,
		SignalAction:     sig.Action,
		ExecutionSuccess: res.Success,
		PredictedOutcome: predicted,
		ActualOutcome:    actual,
		Accuracy:         accuracyScore(predicted, actual),
		Timestamp:        time.Now(),
	}

	if err := e.store.AppendLearningSample(ctx, sample); err != nil {
		logger.ErrorWithErr(ctx, "Failed to persist learning sample, keeping for replay", err,
			"symbol", sample.Symbol,
			"strategy", sample.StrategyID,
		)
		if e.metrics != nil {
			e.metrics.StoreFailures.Inc()
		}
		e.mu.Lock()
		e.unpersisted = append(e.unpersisted, sample)
		e.mu.Unlock()
	}

	e.updateAggregate(sample)
	if e.metrics != nil {
		e.metrics.SamplesRecorded.Inc()
	}

	logger.Debug(ctx, "Learning sample recorded",
		"symbol", sample.Symbol,
		"strategy", sample.StrategyID,
		"predicted", sample.PredictedOutcome,
		"actual", sample.ActualOutcome,
		"accuracy", sample.Accuracy,
	)
	return sample
}

// predictedOutcome maps the signal to a signed confidence: 0 for HOLD,
// +confidence for BUY, -confidence for SELL.
func predictedOutcome(sig types.Signal) float64 {
	switch sig.Action {
	case types.ActionBuy:
		return sig.Confidence
	case types.ActionSell:
		return -sig.Confidence
	default:
		return 0
	}
}

// accuracyScore grades the prediction by sign agreement: 1 on a match
// (zero matches zero), 0 on opposite signs, 0.5 when exactly one side is
// zero.
func accuracyScore(predicted, actual float64) float64 {
	ps, as := sign(predicted), sign(actual)
	switch {
	case ps == as:
		return 1
	case ps == 0 || as == 0:
		return 0.5
	default:
		return 0
	}
}

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

// updateAggregate folds the sample into the strategy aggregate under a
// narrow critical section. SuccessfulSignals counts execution success,
// which is a different quality axis than the accuracy score.
func (e *Engine) updateAggregate(sample types.LearningSample) {
	e.mu.Lock()
	defer e.mu.Unlock()

	agg := e.aggs[sample.StrategyID]
	if agg == nil {
		agg = &types.StrategyPerformance{StrategyID: sample.StrategyID}
		e.aggs[sample.StrategyID] = agg
	}

	n := float64(agg.TotalSignals)
	agg.TotalSignals++
	if sample.ExecutionSuccess {
		agg.SuccessfulSignals++
	}
	agg.Accuracy = float64(agg.SuccessfulSignals) / float64(agg.TotalSignals)
	agg.AvgConfidence = (agg.AvgConfidence*n + sample.SignalConfidence) / (n + 1)
	agg.AvgPnL = (agg.AvgPnL*n + sample.PnL) / (n + 1)
	agg.Recommendations = e.recommend(agg)
}

// recommend derives advisory strings from fixed policy thresholds. These
// inform the operator; they never gate control flow.
func (e *Engine) recommend(agg *types.StrategyPerformance) []string {
	var recs []string
	if agg.Accuracy < e.cfg.MinAccuracy {
		recs = append(recs, fmt.Sprintf("accuracy %.0f%% below target, consider reducing allocation", agg.Accuracy*100))
	}
	if agg.AvgConfidence < e.cfg.MinConfidence {
		recs = append(recs, fmt.Sprintf("average confidence %.2f is low, review signal quality", agg.AvgConfidence))
	}
	if agg.AvgPnL < 0 {
		recs = append(recs, "average PnL negative, strategy may be unprofitable")
	}
	return recs
}

// Performance returns a copy of the current aggregate for a strategy.
func (e *Engine) Performance(strategyID string) (types.StrategyPerformance, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	agg, ok := e.aggs[strategyID]
	if !ok {
		return types.StrategyPerformance{}, false
	}
	return *agg, true
}

// PendingReplay returns the samples whose persistence failed.
func (e *Engine) PendingReplay() []types.LearningSample {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.LearningSample, len(e.unpersisted))
	copy(out, e.unpersisted)
	return out
}
