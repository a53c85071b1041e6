package signal

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"tradepulse/internal/store"
	"tradepulse/internal/types"
)

// momentumStrategy follows recent price momentum, filtered by RSI so it
// does not chase already-stretched moves.
type momentumStrategy struct{}

func (momentumStrategy) name() string { return "momentum" }

func (momentumStrategy) score(s candleSeries, cfg store.SignalConfig) types.Signal {
	mom := talib.Mom(s.closes, cfg.MomentumPeriod)
	rsi := talib.Rsi(s.closes, cfg.RSIPeriod)
	lastMom := mom[len(mom)-1]
	lastRSI := rsi[len(rsi)-1]

	if s.lastClose <= 0 {
		return hold(s.symbol, "momentum", "no price data")
	}

	// Momentum as a fraction of price over the lookback; 2% maps to full
	// strength.
	strength := clamp01(math.Abs(lastMom) / s.lastClose / 0.02)
	atr := s.atr(cfg.ATRPeriod)

	var action types.Action
	switch {
	case lastMom > 0 && lastRSI < 70:
		action = types.ActionBuy
	case lastMom < 0 && lastRSI > 30:
		action = types.ActionSell
	default:
		return hold(s.symbol, "momentum", fmt.Sprintf("momentum %.2f conflicts with RSI %.1f", lastMom, lastRSI))
	}

	stop, target := brackets(action, s.lastClose, atr, cfg)
	return types.Signal{
		Symbol:     s.symbol,
		Action:     action,
		Confidence: 0.5 + 0.4*strength,
		RiskScore:  s.riskScore(atr),
		StrategyID: "momentum",
		StopLoss:   stop,
		TakeProfit: target,
		Reason:     fmt.Sprintf("momentum %.2f over %d bars, RSI %.1f", lastMom, cfg.MomentumPeriod, lastRSI),
	}
}
