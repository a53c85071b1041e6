package interfaces

import (
	"context"

	"tradepulse/internal/types"
)

// CycleRunner executes one full decision cycle for a symbol.
type CycleRunner interface {
	Run(ctx context.Context, symbol string) (*types.CycleResult, error)
}
