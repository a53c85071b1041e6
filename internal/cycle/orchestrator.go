// Package cycle sequences one decision cycle per symbol: signal, risk,
// execution, and recording, short-circuiting on rejection or HOLD.
package cycle

import (
	"context"
	"fmt"
	"time"

	"tradepulse/internal/execution"
	"tradepulse/internal/interfaces"
	"tradepulse/internal/learning"
	"tradepulse/internal/logger"
	"tradepulse/internal/metrics"
	"tradepulse/internal/risk"
	"tradepulse/internal/types"
)

// Orchestrator wires the pipeline components together. Each Run is
// logically sequential; concurrent Runs for different symbols need no
// coordination beyond the components' own internal locking.
type Orchestrator struct {
	brk      interfaces.Broker
	signals  interfaces.SignalProvider
	risk     *risk.Engine
	router   *execution.Router
	learning *learning.Engine
	store    interfaces.Store
	metrics  *metrics.Metrics
	lookback int
}

var _ interfaces.CycleRunner = (*Orchestrator)(nil)

func New(
	brk interfaces.Broker,
	signals interfaces.SignalProvider,
	riskEngine *risk.Engine,
	router *execution.Router,
	learningEngine *learning.Engine,
	st interfaces.Store,
	m *metrics.Metrics,
	lookback int,
) *Orchestrator {
	return &Orchestrator{
		brk:      brk,
		signals:  signals,
		risk:     riskEngine,
		router:   router,
		learning: learningEngine,
		store:    st,
		metrics:  m,
		lookback: lookback,
	}
}

// Run executes one full cycle for a symbol. Expected domain outcomes
// (rejection, hold, failed execution) come back as a CycleResult with a
// nil error; err is non-nil only for faults that aborted the cycle, and
// even then the result preserves everything computed before the fault.
func (o *Orchestrator) Run(ctx context.Context, symbol string) (res *types.CycleResult, err error) {
	res = &types.CycleResult{Symbol: symbol, StartedAt: time.Now()}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic for %s: %v", symbol, r)
			res.Status = types.CycleError
			res.Reason = err.Error()
		}
		res.Duration = time.Since(res.StartedAt)
		if o.metrics != nil {
			o.metrics.CyclesTotal.WithLabelValues(string(res.Status)).Inc()
			o.metrics.CycleDuration.Observe(res.Duration.Seconds())
		}
		logger.Cycle(ctx, symbol, string(res.Status), res.Reason, "duration_ms", res.Duration.Milliseconds())
	}()

	// SIGNAL
	candles, err := o.brk.RecentCandles(ctx, symbol, o.lookback)
	if err != nil {
		res.Status = types.CycleError
		res.Reason = fmt.Sprintf("candle fetch failed: %v", err)
		return res, err
	}

	sig, err := o.signals.Generate(ctx, symbol, candles, "")
	if err != nil {
		res.Status = types.CycleError
		res.Reason = fmt.Sprintf("signal generation failed: %v", err)
		return res, err
	}
	res.Signal = &sig
	logger.Debug(ctx, "Signal generated",
		"symbol", symbol,
		"action", sig.Action,
		"confidence", sig.Confidence,
		"strategy", sig.StrategyID,
	)

	// RISK. The account snapshot is a consistent read taken once here and
	// used for the remainder of the cycle. Confidence filtering belongs to
	// the risk engine, so even a weak signal goes through evaluation.
	acct, dec := o.assessRisk(ctx, sig)
	res.Decision = &dec

	if sig.Action == types.ActionHold {
		res.Status = types.CycleHold
		res.Reason = dec.Reason
		return res, nil
	}
	if !dec.Approved {
		res.Status = types.CycleRejected
		res.Reason = dec.Reason
		return res, nil
	}

	// EXECUTE. Both successful and failed executions proceed to RECORD.
	execRes := o.router.Execute(ctx, sig, dec, acct)
	res.Execution = &execRes

	// RECORD. Analytics and learning writes are independent; a failure in
	// one must not block the other.
	o.recordTrade(ctx, sig, execRes)
	sample := o.learning.RecordOutcome(ctx, sig, execRes)
	res.Sample = &sample

	res.Status = types.CycleExecuted
	if execRes.Success {
		res.Reason = fmt.Sprintf("order %s %s", execRes.OrderID, execRes.OrderStatus)
	} else {
		res.Reason = "execution failed: " + execRes.Error
	}
	return res, nil
}

// assessRisk fetches the portfolio state and evaluates the signal against
// it. Unobtainable account or position data yields a CRITICAL rejection
// rather than a fault. The returned snapshot is reused by execution so the
// whole cycle acts on one consistent read.
func (o *Orchestrator) assessRisk(ctx context.Context, sig types.Signal) (types.AccountSnapshot, types.RiskDecision) {
	acct, err := o.brk.GetAccount(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Account snapshot unavailable", err, "symbol", sig.Symbol)
		return acct, risk.Unavailable(fmt.Sprintf("account data unavailable: %v", err))
	}
	positions, err := o.brk.GetPositions(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Position snapshot unavailable", err, "symbol", sig.Symbol)
		return acct, risk.Unavailable(fmt.Sprintf("position data unavailable: %v", err))
	}
	return acct, o.risk.Evaluate(ctx, sig, acct, positions)
}

func (o *Orchestrator) recordTrade(ctx context.Context, sig types.Signal, execRes types.ExecutionResult) {
	rec := types.TradeRecord{
		Symbol:        execRes.Symbol,
		Side:          execRes.Side,
		StrategyID:    sig.StrategyID,
		OrderID:       execRes.OrderID,
		ClientOrderID: execRes.ClientOrderID,
		Qty:           execRes.FilledQty,
		Price:         execRes.FilledPrice,
		Notional:      execRes.Notional,
		Status:        execRes.OrderStatus,
		Success:       execRes.Success,
		Confidence:    sig.Confidence,
		Reason:        sig.Reason,
		Time:          time.Now(),
	}
	if err := o.store.AppendTradeRecord(ctx, rec); err != nil {
		logger.ErrorWithErr(ctx, "Failed to persist trade record", err, "symbol", rec.Symbol)
		if o.metrics != nil {
			o.metrics.StoreFailures.Inc()
		}
	}
}
