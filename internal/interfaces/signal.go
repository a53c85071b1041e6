package interfaces

import (
	"context"

	"tradepulse/internal/types"
)

// SignalProvider turns a window of candles into a directional recommendation.
// Implementations are pure functions of their inputs.
type SignalProvider interface {
	Generate(ctx context.Context, symbol string, candles []types.Candle, hint string) (types.Signal, error)
}
