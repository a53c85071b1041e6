package interfaces

import (
	"context"

	"tradepulse/internal/types"
)

// Broker is the single canonical broker-client contract. All calls are
// synchronous; callers own timeout and retry policy.
type Broker interface {
	GetAccount(ctx context.Context) (types.AccountSnapshot, error)
	GetPositions(ctx context.Context) ([]types.PositionSnapshot, error)
	RecentCandles(ctx context.Context, symbol string, n int) ([]types.Candle, error)
	SubmitOrder(ctx context.Context, req types.OrderRequest) (types.BrokerOrder, error)
	GetOrder(ctx context.Context, clientOrderID string) (types.BrokerOrder, error)
}
