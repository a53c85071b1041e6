package interfaces

import (
	"context"

	"tradepulse/internal/types"
)

// Store persists trade history and learning records. Aggregates are
// re-derivable from the samples, so implementations may recompute them
// rather than maintain a separate table.
type Store interface {
	AppendTradeRecord(ctx context.Context, rec types.TradeRecord) error
	AppendLearningSample(ctx context.Context, sample types.LearningSample) error
	// LoadStrategyAggregate returns (nil, nil) when no samples exist for the strategy.
	LoadStrategyAggregate(ctx context.Context, strategyID string) (*types.StrategyPerformance, error)
	LoadAllAggregates(ctx context.Context) ([]types.StrategyPerformance, error)
}
