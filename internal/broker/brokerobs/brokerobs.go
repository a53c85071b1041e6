// Package brokerobs wraps a Broker with logging and tracing middleware.
package brokerobs

import (
	"context"

	"tradepulse/internal/interfaces"
	"tradepulse/internal/logger"
	"tradepulse/internal/trace"
	"tradepulse/internal/types"
)

type observableBroker struct {
	broker interfaces.Broker
}

var _ interfaces.Broker = (*observableBroker)(nil)

// Wrap wraps a broker with observability middleware
func Wrap(broker interfaces.Broker) interfaces.Broker {
	return &observableBroker{broker: broker}
}

func (ob *observableBroker) GetAccount(ctx context.Context) (types.AccountSnapshot, error) {
	ctx, span := trace.StartSpan(ctx, "broker.GetAccount")
	defer span.End()

	acct, err := ob.broker.GetAccount(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch account", err)
		return types.AccountSnapshot{}, err
	}
	logger.DebugSkip(ctx, 1, "Account fetched",
		"equity", acct.Equity,
		"buying_power", acct.BuyingPower,
		"positions_value", acct.LongMarketValue,
	)
	return acct, nil
}

func (ob *observableBroker) GetPositions(ctx context.Context) ([]types.PositionSnapshot, error) {
	ctx, span := trace.StartSpan(ctx, "broker.GetPositions")
	defer span.End()

	positions, err := ob.broker.GetPositions(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch positions", err)
		return nil, err
	}
	logger.DebugSkip(ctx, 1, "Positions fetched", "count", len(positions))
	return positions, nil
}

func (ob *observableBroker) RecentCandles(ctx context.Context, symbol string, n int) ([]types.Candle, error) {
	ctx, span := trace.StartSpan(ctx, "broker.RecentCandles")
	defer span.End()

	candles, err := ob.broker.RecentCandles(ctx, symbol, n)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch candles", err, "symbol", symbol, "count", n)
		return nil, err
	}
	logger.DebugSkip(ctx, 1, "Candles fetched", "symbol", symbol, "count", len(candles))
	return candles, nil
}

func (ob *observableBroker) SubmitOrder(ctx context.Context, req types.OrderRequest) (types.BrokerOrder, error) {
	ctx, span := trace.StartSpan(ctx, "broker.SubmitOrder")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Submitting order",
		"symbol", req.Symbol,
		"side", req.Side,
		"type", req.Type,
		"client_order_id", req.ClientOrderID,
	)

	ord, err := ob.broker.SubmitOrder(ctx, req)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to submit order", err,
			"symbol", req.Symbol,
			"side", req.Side,
			"client_order_id", req.ClientOrderID,
		)
		return types.BrokerOrder{}, err
	}

	logger.InfoSkip(ctx, 1, "Order acknowledged",
		"symbol", ord.Symbol,
		"order_id", ord.ID,
		"status", ord.Status,
	)
	return ord, nil
}

func (ob *observableBroker) GetOrder(ctx context.Context, clientOrderID string) (types.BrokerOrder, error) {
	ctx, span := trace.StartSpan(ctx, "broker.GetOrder")
	defer span.End()

	ord, err := ob.broker.GetOrder(ctx, clientOrderID)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch order", err, "client_order_id", clientOrderID)
		return types.BrokerOrder{}, err
	}
	logger.DebugSkip(ctx, 1, "Order fetched", "client_order_id", clientOrderID, "status", ord.Status)
	return ord, nil
}
