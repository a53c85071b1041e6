// Package risk implements portfolio and trade-level risk assessment.
// Evaluate is a pure function of its inputs except for the peak
// portfolio-value watermark, which is process-local and monotone.
package risk

import (
	"context"
	"fmt"
	"math"
	"sync"

	"tradepulse/internal/logger"
	"tradepulse/internal/store"
	"tradepulse/internal/types"
)

// Kelly-style sizing fraction bounds. The fraction scales with signal
// confidence but is clamped so a single trade never commits less than 10%
// or more than 25% of portfolio value.
const (
	kellyFloor = 0.10
	kellyCap   = 0.25

	// Share of cash a single trade may consume.
	cashCap = 0.8

	// Thresholds for grading an approved decision against its ceilings.
	highWatermark   = 0.8
	mediumWatermark = 0.6
)

// Engine evaluates signals against portfolio state and configured limits.
type Engine struct {
	cfg store.RiskConfig

	mu   sync.Mutex
	peak float64
}

func New(cfg store.RiskConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Evaluate runs the full check battery for one candidate trade. Fatal
// checks run in fixed priority order and reject immediately at CRITICAL;
// non-fatal conditions are collected as warnings.
func (e *Engine) Evaluate(ctx context.Context, sig types.Signal, acct types.AccountSnapshot, positions []types.PositionSnapshot) types.RiskDecision {
	portfolioValue := acct.TotalValue
	if portfolioValue <= 0 {
		portfolioValue = acct.Equity
	}
	if portfolioValue <= 0 {
		return Unavailable("portfolio value is zero or unknown")
	}

	e.observePeak(portfolioValue)

	metrics := e.computeMetrics(sig, acct, positions, portfolioValue)

	// A HOLD recommendation is a normal, non-error outcome.
	if sig.Action == types.ActionHold {
		return types.RiskDecision{
			Approved:  false,
			RiskLevel: types.RiskLow,
			Reason:    "Signal recommends HOLD",
			Metrics:   metrics,
		}
	}

	estimatedSize := EstimatePositionSize(sig.Confidence, portfolioValue, acct.Cash)

	// Fatal checks, fixed priority order. First match rejects.
	if metrics.Drawdown > e.cfg.MaxDrawdown {
		logger.Risk(ctx, sig.Symbol, "DRAWDOWN_LIMIT", "drawdown", metrics.Drawdown, "limit", e.cfg.MaxDrawdown)
		return reject(fmt.Sprintf("Portfolio drawdown %.2f%% exceeds limit %.2f%%", metrics.Drawdown*100, e.cfg.MaxDrawdown*100), metrics)
	}
	if metrics.Exposure > e.cfg.MaxExposure {
		logger.Risk(ctx, sig.Symbol, "EXPOSURE_LIMIT", "exposure", metrics.Exposure, "limit", e.cfg.MaxExposure)
		return reject(fmt.Sprintf("Portfolio exposure %.2f%% exceeds limit %.2f%%", metrics.Exposure*100, e.cfg.MaxExposure*100), metrics)
	}
	if metrics.DailyPnLPct < -e.cfg.MaxDailyLoss {
		logger.Risk(ctx, sig.Symbol, "DAILY_LOSS_LIMIT", "daily_pnl_pct", metrics.DailyPnLPct, "limit", e.cfg.MaxDailyLoss)
		return reject(fmt.Sprintf("Daily loss %.2f%% exceeds limit %.2f%%", -metrics.DailyPnLPct*100, e.cfg.MaxDailyLoss*100), metrics)
	}
	if acct.BuyingPower < estimatedSize {
		logger.Risk(ctx, sig.Symbol, "INSUFFICIENT_BUYING_POWER", "buying_power", acct.BuyingPower, "estimated_size", estimatedSize)
		return reject(fmt.Sprintf("Buying power %.2f below estimated position size %.2f", acct.BuyingPower, estimatedSize), metrics)
	}
	if acct.TradingBlocked {
		logger.Risk(ctx, sig.Symbol, "TRADING_BLOCKED")
		return reject("Trading is blocked on the account", metrics)
	}

	// Hard constraints that are not portfolio-wide fatals.
	if e.cfg.RequireStopLoss && sig.StopLoss == 0 {
		return reject("Stop-loss required but signal carries none", metrics)
	}
	if metrics.OpenPositions >= e.cfg.MaxOpenPositions {
		return reject(fmt.Sprintf("Open position limit reached (%d/%d)", metrics.OpenPositions, e.cfg.MaxOpenPositions), metrics)
	}

	var warnings []string
	if sig.Confidence < e.cfg.MinConfidence {
		warnings = append(warnings, fmt.Sprintf("confidence %.2f below minimum %.2f", sig.Confidence, e.cfg.MinConfidence))
	}
	if metrics.PositionSizePct > e.cfg.MaxPositionSize {
		warnings = append(warnings, fmt.Sprintf("position size %.2f%% above maximum %.2f%%", metrics.PositionSizePct*100, e.cfg.MaxPositionSize*100))
	}
	if !e.cfg.RequireStopLoss && sig.StopLoss == 0 {
		warnings = append(warnings, "signal carries no stop-loss")
	}
	for _, p := range positions {
		if p.Symbol == sig.Symbol {
			warnings = append(warnings, fmt.Sprintf("existing position in %s adds concentration", sig.Symbol))
			break
		}
	}
	if acct.Equity > 0 {
		leverage := (acct.LongMarketValue + math.Abs(acct.ShortMarketValue)) / acct.Equity
		if leverage > e.cfg.MaxLeverage {
			warnings = append(warnings, fmt.Sprintf("account leverage %.2fx above maximum %.2fx", leverage, e.cfg.MaxLeverage))
		}
	}

	level := e.gradeApproved(metrics)

	return types.RiskDecision{
		Approved:        true,
		RiskLevel:       level,
		Reason:          "All risk checks passed",
		Warnings:        warnings,
		Metrics:         metrics,
		Recommendations: e.recommend(metrics, portfolioValue),
	}
}

func (e *Engine) computeMetrics(sig types.Signal, acct types.AccountSnapshot, positions []types.PositionSnapshot, portfolioValue float64) types.RiskMetrics {
	var unrealized float64
	for _, p := range positions {
		unrealized += p.UnrealizedPnL
	}
	drawdown := math.Max(0, -unrealized) / portfolioValue

	exposure := (acct.LongMarketValue + math.Abs(acct.ShortMarketValue)) / portfolioValue

	var dailyPnLPct float64
	if acct.LastEquity > 0 {
		dailyPnLPct = (acct.Equity - acct.LastEquity) / acct.LastEquity
	}

	estimatedSize := EstimatePositionSize(sig.Confidence, portfolioValue, acct.Cash)

	return types.RiskMetrics{
		Drawdown:        drawdown,
		Exposure:        exposure,
		PositionSizePct: estimatedSize / portfolioValue,
		DailyPnLPct:     dailyPnLPct,
		OpenPositions:   len(positions),
		BuyingPower:     acct.BuyingPower,
	}
}

// EstimatePositionSize returns the capped Kelly-style dollar size for a
// candidate trade: f = clamp(2c-1, 0.10, 0.25), size = min(pv*f, cash*0.8).
func EstimatePositionSize(confidence, portfolioValue, cash float64) float64 {
	f := 2*confidence - 1
	if f < kellyFloor {
		f = kellyFloor
	}
	if f > kellyCap {
		f = kellyCap
	}
	return math.Min(portfolioValue*f, cash*cashCap)
}

func (e *Engine) gradeApproved(m types.RiskMetrics) types.RiskLevel {
	ratio := math.Max(m.Drawdown/e.cfg.MaxDrawdown, m.Exposure/e.cfg.MaxExposure)
	switch {
	case ratio >= highWatermark:
		return types.RiskHigh
	case ratio >= mediumWatermark:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

func (e *Engine) recommend(m types.RiskMetrics, portfolioValue float64) []string {
	var recs []string
	if m.Exposure > e.cfg.MaxExposure*mediumWatermark {
		recs = append(recs, "exposure approaching limit, consider reducing open positions")
	}
	if m.Drawdown > e.cfg.MaxDrawdown*mediumWatermark {
		recs = append(recs, "unrealized losses mounting, review losing positions")
	}
	if peak := e.PeakValue(); peak > 0 && portfolioValue < peak*0.9 {
		recs = append(recs, fmt.Sprintf("portfolio %.1f%% below peak value", (1-portfolioValue/peak)*100))
	}
	return recs
}

// observePeak advances the peak portfolio-value watermark. The watermark is
// monotone and survives across evaluations within the process lifetime.
func (e *Engine) observePeak(portfolioValue float64) {
	e.mu.Lock()
	if portfolioValue > e.peak {
		e.peak = portfolioValue
	}
	e.mu.Unlock()
}

// PeakValue returns the highest portfolio value seen so far.
func (e *Engine) PeakValue() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.peak
}

// SeedPeak restores the watermark from persisted history at process start.
// Lower values than the current watermark are ignored.
func (e *Engine) SeedPeak(v float64) {
	e.observePeak(v)
}

func reject(reason string, m types.RiskMetrics) types.RiskDecision {
	return types.RiskDecision{
		Approved:  false,
		RiskLevel: types.RiskCritical,
		Reason:    reason,
		Metrics:   m,
	}
}

// Unavailable is the decision returned when account or position data cannot
// be obtained. Callers treat it identically to a rejected trade, not a
// retryable fault.
func Unavailable(reason string) types.RiskDecision {
	return types.RiskDecision{
		Approved:  false,
		RiskLevel: types.RiskCritical,
		Reason:    reason,
	}
}
