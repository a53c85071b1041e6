package signal

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"tradepulse/internal/store"
	"tradepulse/internal/types"
)

// breakoutStrategy trades closes beyond the recent range, with a
// confidence bonus when volume confirms the move.
type breakoutStrategy struct{}

func (breakoutStrategy) name() string { return "breakout" }

func (breakoutStrategy) score(s candleSeries, cfg store.SignalConfig) types.Signal {
	n := len(s.closes)
	lookback := cfg.BreakoutLookback
	if n < lookback+2 {
		return hold(s.symbol, "breakout", "not enough history for breakout range")
	}

	// Range of the lookback window ending one bar before the current close.
	prior := s.closes[:n-1]
	highs := talib.Max(prior, lookback)
	lows := talib.Min(prior, lookback)
	rangeHigh := highs[len(highs)-1]
	rangeLow := lows[len(lows)-1]
	price := s.lastClose

	atr := s.atr(cfg.ATRPeriod)
	if atr <= 0 {
		return hold(s.symbol, "breakout", "flat series, no range to break")
	}

	var action types.Action
	var margin float64
	switch {
	case price > rangeHigh:
		action = types.ActionBuy
		margin = (price - rangeHigh) / atr
	case price < rangeLow:
		action = types.ActionSell
		margin = (rangeLow - price) / atr
	default:
		return hold(s.symbol, "breakout", fmt.Sprintf("price %.2f inside %d-bar range [%.2f, %.2f]", price, lookback, rangeLow, rangeHigh))
	}

	confidence := 0.5 + 0.3*clamp01(margin)

	// Volume confirmation: above-average volume on the breakout bar.
	avgVol := talib.Sma(s.volumes, lookback)
	if last := avgVol[len(avgVol)-1]; last > 0 && s.lastVol > last {
		confidence += cfg.VolumeBonus
	}

	stop, target := brackets(action, price, atr, cfg)
	return types.Signal{
		Symbol:     s.symbol,
		Action:     action,
		Confidence: clamp01(confidence),
		RiskScore:  s.riskScore(atr),
		StrategyID: "breakout",
		StopLoss:   stop,
		TakeProfit: target,
		Reason:     fmt.Sprintf("close %.2f broke %d-bar range [%.2f, %.2f]", price, lookback, rangeLow, rangeHigh),
	}
}
