package signal

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"tradepulse/internal/store"
	"tradepulse/internal/types"
)

// meanReversionStrategy fades moves outside the Bollinger bands, betting
// on a return to the middle band.
type meanReversionStrategy struct{}

func (meanReversionStrategy) name() string { return "mean_reversion" }

func (meanReversionStrategy) score(s candleSeries, cfg store.SignalConfig) types.Signal {
	upper, middle, lower := talib.BBands(s.closes, cfg.BBWindow, cfg.BBStdDev, cfg.BBStdDev, talib.SMA)
	u := upper[len(upper)-1]
	m := middle[len(middle)-1]
	l := lower[len(lower)-1]
	price := s.lastClose

	band := m - l
	if band <= 0 {
		return hold(s.symbol, "mean_reversion", "bands too narrow to score")
	}

	atr := s.atr(cfg.ATRPeriod)

	var action types.Action
	var depth float64
	switch {
	case price <= l:
		action = types.ActionBuy
		depth = (m - price) / band
	case price >= u:
		action = types.ActionSell
		depth = (price - m) / band
	default:
		return hold(s.symbol, "mean_reversion", fmt.Sprintf("price %.2f inside bands [%.2f, %.2f]", price, l, u))
	}

	stop, target := brackets(action, price, atr, cfg)
	return types.Signal{
		Symbol:     s.symbol,
		Action:     action,
		Confidence: 0.5 + 0.4*clamp01(depth-1),
		RiskScore:  s.riskScore(atr),
		StrategyID: "mean_reversion",
		StopLoss:   stop,
		TakeProfit: target,
		Reason:     fmt.Sprintf("price %.2f outside %gσ band [%.2f, %.2f]", price, cfg.BBStdDev, l, u),
	}
}
