// Package execution sizes, constructs, and submits broker orders for
// approved signals.
package execution

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradepulse/internal/broker"
	"tradepulse/internal/interfaces"
	"tradepulse/internal/logger"
	"tradepulse/internal/metrics"
	"tradepulse/internal/store"
	"tradepulse/internal/types"
)

// StatusTracker receives orders whose status must be followed after the
// router has returned: acknowledged orders awaiting fills, and timed-out
// submissions whose outcome is unknown.
type StatusTracker interface {
	Track(ctx context.Context, clientOrderID, symbol string) error
}

// Router submits approved signals as broker orders with bounded
// exponential-backoff retry. One invocation makes exactly one logical
// submission; retries reuse the same client order ID so a resubmission
// after a network failure cannot create a duplicate order.
type Router struct {
	brk     interfaces.Broker
	cfg     store.ExecutionConfig
	tracker StatusTracker
	metrics *metrics.Metrics
}

func New(brk interfaces.Broker, cfg store.ExecutionConfig, tracker StatusTracker, m *metrics.Metrics) *Router {
	return &Router{brk: brk, cfg: cfg, tracker: tracker, metrics: m}
}

// Execute validates preconditions, builds the order, and submits it.
// Expected domain failures (unapproved decision, HOLD, broker rejection)
// come back as a failed ExecutionResult, not as an error.
func (r *Router) Execute(ctx context.Context, sig types.Signal, dec types.RiskDecision, acct types.AccountSnapshot) types.ExecutionResult {
	if sig.Action == types.ActionHold {
		return failure(sig, "", "hold", "signal action is HOLD, nothing to execute")
	}
	if !dec.Approved {
		return failure(sig, "", "blocked", "risk decision not approved: "+dec.Reason)
	}
	if sig.Symbol == "" {
		return failure(sig, "", "invalid", "signal has no symbol")
	}

	req := r.buildOrder(sig, acct)
	return r.submit(ctx, sig, req)
}

func (r *Router) buildOrder(sig types.Signal, acct types.AccountSnapshot) types.OrderRequest {
	req := types.OrderRequest{
		Symbol:        sig.Symbol,
		Side:          strings.ToLower(string(sig.Action)),
		Type:          r.cfg.OrderType,
		TimeInForce:   r.cfg.TimeInForce,
		ClientOrderID: uuid.NewString(),
	}

	switch {
	case r.cfg.Qty > 0:
		req.Qty = decimal.NewFromFloat(r.cfg.Qty)
	case r.cfg.Notional > 0:
		req.Notional = decimal.NewFromFloat(r.cfg.Notional)
	default:
		// No explicit size configured: commit a fixed slice of current
		// buying power.
		req.Notional = decimal.NewFromFloat(acct.BuyingPower * r.cfg.NotionalPct).Round(2)
	}

	if r.cfg.Bracket && sig.StopLoss > 0 && sig.TakeProfit > 0 {
		req.OrderClass = "bracket"
		req.StopLoss = &types.StopLossLeg{StopPrice: decimal.NewFromFloat(sig.StopLoss)}
		req.TakeProfit = &types.TakeProfitLeg{LimitPrice: decimal.NewFromFloat(sig.TakeProfit)}
	}

	return req
}

func (r *Router) submit(ctx context.Context, sig types.Signal, req types.OrderRequest) types.ExecutionResult {
	start := time.Now()
	attempts := r.cfg.MaxRetries + 1
	timedOut := false

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			// 1s, 2s, 4s with the default base.
			backoff := r.cfg.RetryBase() << (attempt - 1)
			logger.Warn(ctx, "Retrying order submission",
				"symbol", req.Symbol,
				"client_order_id", req.ClientOrderID,
				"attempt", attempt+1,
				"backoff", backoff.String(),
			)
			if r.metrics != nil {
				r.metrics.OrderRetries.Inc()
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return r.unknownOutcome(ctx, sig, req, start, ctx.Err(), timedOut)
			}
		}

		submitCtx, cancel := context.WithTimeout(ctx, r.cfg.SubmitTimeoutDur())
		ord, err := r.brk.SubmitOrder(submitCtx, req)
		cancel()

		if err == nil {
			latency := time.Since(start).Milliseconds()
			logger.Order(ctx, ord.Symbol, ord.Side, ord.Status, ord.ID, "latency_ms", latency)
			if r.metrics != nil {
				r.metrics.OrdersSubmitted.WithLabelValues("accepted").Inc()
			}
			r.track(ctx, req)
			return types.ExecutionResult{
				Success:       true,
				OrderID:       ord.ID,
				ClientOrderID: req.ClientOrderID,
				Side:          req.Side,
				Symbol:        req.Symbol,
				FilledPrice:   ord.FilledAvgPrice.InexactFloat64(),
				FilledQty:     ord.FilledQty.InexactFloat64(),
				Notional:      req.Notional.InexactFloat64(),
				LatencyMs:     latency,
				OrderStatus:   ord.Status,
			}
		}

		lastErr = err
		if broker.IsTimeout(err) {
			// The request may have reached the broker; the shared client
			// order ID makes the retry safe.
			timedOut = true
		}
		if !broker.IsRetryable(err) {
			logger.ErrorWithErr(ctx, "Order rejected by broker", err,
				"symbol", req.Symbol,
				"client_order_id", req.ClientOrderID,
			)
			if r.metrics != nil {
				r.metrics.OrdersSubmitted.WithLabelValues("rejected").Inc()
			}
			res := failure(sig, req.ClientOrderID, "rejected", err.Error())
			res.LatencyMs = time.Since(start).Milliseconds()
			return res
		}
	}

	return r.unknownOutcome(ctx, sig, req, start, lastErr, timedOut)
}

// unknownOutcome handles an exhausted retry budget. If any attempt timed
// out the order is possibly submitted, so it is handed to the status
// tracker for reconciliation instead of being resubmitted blindly.
func (r *Router) unknownOutcome(ctx context.Context, sig types.Signal, req types.OrderRequest, start time.Time, err error, timedOut bool) types.ExecutionResult {
	status := "failed"
	if timedOut {
		status = "unknown"
		r.track(ctx, req)
	}
	logger.ErrorWithErr(ctx, "Order submission exhausted retry budget", err,
		"symbol", req.Symbol,
		"client_order_id", req.ClientOrderID,
		"order_status", status,
	)
	if r.metrics != nil {
		r.metrics.OrdersSubmitted.WithLabelValues(status).Inc()
	}
	res := failure(sig, req.ClientOrderID, status, fmt.Sprintf("submission failed after %d attempts: %v", r.cfg.MaxRetries+1, err))
	res.LatencyMs = time.Since(start).Milliseconds()
	return res
}

func (r *Router) track(ctx context.Context, req types.OrderRequest) {
	if r.tracker == nil {
		return
	}
	if err := r.tracker.Track(ctx, req.ClientOrderID, req.Symbol); err != nil {
		logger.Warn(ctx, "Failed to register order with status tracker",
			"client_order_id", req.ClientOrderID,
			"error", err,
		)
	}
}

func failure(sig types.Signal, clientOrderID, status, reason string) types.ExecutionResult {
	return types.ExecutionResult{
		Success:       false,
		ClientOrderID: clientOrderID,
		Side:          strings.ToLower(string(sig.Action)),
		Symbol:        sig.Symbol,
		OrderStatus:   status,
		Error:         reason,
	}
}
