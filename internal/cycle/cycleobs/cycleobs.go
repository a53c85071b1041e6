// Package cycleobs wraps a CycleRunner with logging and tracing middleware.
package cycleobs

import (
	"context"

	"tradepulse/internal/interfaces"
	"tradepulse/internal/logger"
	"tradepulse/internal/trace"
	"tradepulse/internal/types"
)

type observableRunner struct {
	runner interfaces.CycleRunner
}

var _ interfaces.CycleRunner = (*observableRunner)(nil)

// Wrap wraps a cycle runner with observability middleware
func Wrap(runner interfaces.CycleRunner) interfaces.CycleRunner {
	return &observableRunner{runner: runner}
}

func (or *observableRunner) Run(ctx context.Context, symbol string) (*types.CycleResult, error) {
	ctx, span := trace.StartSpan(ctx, "cycle.Run")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Cycle starting", "symbol", symbol)

	res, err := or.runner.Run(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Cycle aborted", err, "symbol", symbol)
		return res, err
	}

	logger.DebugSkip(ctx, 1, "Cycle finished",
		"symbol", symbol,
		"status", res.Status,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
