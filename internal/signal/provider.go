// Package signal holds the built-in stateless signal strategies. Each
// strategy is a pure scoring function over a candle window; none hold
// state between calls.
package signal

import (
	"context"
	"fmt"
	"time"

	"github.com/markcheno/go-talib"

	"tradepulse/internal/interfaces"
	"tradepulse/internal/store"
	"tradepulse/internal/types"
)

const minCandles = 50

type strategy interface {
	name() string
	score(series candleSeries, cfg store.SignalConfig) types.Signal
}

// Provider dispatches to the configured strategy, or scores all of them
// and picks the most confident directional signal.
type Provider struct {
	cfg        store.SignalConfig
	strategies []strategy
}

var _ interfaces.SignalProvider = (*Provider)(nil)

func NewProvider(cfg store.SignalConfig) *Provider {
	return &Provider{
		cfg: cfg,
		strategies: []strategy{
			momentumStrategy{},
			meanReversionStrategy{},
			breakoutStrategy{},
		},
	}
}

func (p *Provider) Generate(ctx context.Context, symbol string, candles []types.Candle, hint string) (types.Signal, error) {
	if len(candles) < minCandles {
		return types.Signal{}, fmt.Errorf("need at least %d candles for %s, got %d", minCandles, symbol, len(candles))
	}

	series := newCandleSeries(symbol, candles)

	want := p.cfg.Strategy
	if hint != "" {
		want = hint
	}

	if want != "composite" {
		for _, s := range p.strategies {
			if s.name() == want {
				return finalize(s.score(series, p.cfg)), nil
			}
		}
		return types.Signal{}, fmt.Errorf("unknown strategy %q", want)
	}

	// Composite: score every strategy and take the most confident
	// directional recommendation.
	best := types.Signal{
		Symbol:     symbol,
		Action:     types.ActionHold,
		StrategyID: "composite",
		Reason:     "no strategy produced a directional signal",
	}
	for _, s := range p.strategies {
		sig := s.score(series, p.cfg)
		if sig.Action == types.ActionHold {
			continue
		}
		if sig.Confidence > best.Confidence || best.Action == types.ActionHold {
			best = sig
		}
	}
	return finalize(best), nil
}

func finalize(sig types.Signal) types.Signal {
	sig.Confidence = clamp01(sig.Confidence)
	sig.RiskScore = clamp01(sig.RiskScore)
	sig.GeneratedAt = time.Now()
	return sig
}

// candleSeries is the unpacked view of a candle window that talib operates on.
type candleSeries struct {
	symbol             string
	opens, highs, lows []float64
	closes, volumes    []float64
	lastClose, lastVol float64
}

func newCandleSeries(symbol string, candles []types.Candle) candleSeries {
	s := candleSeries{
		symbol:  symbol,
		opens:   make([]float64, len(candles)),
		highs:   make([]float64, len(candles)),
		lows:    make([]float64, len(candles)),
		closes:  make([]float64, len(candles)),
		volumes: make([]float64, len(candles)),
	}
	for i, c := range candles {
		s.opens[i] = c.Open
		s.highs[i] = c.High
		s.lows[i] = c.Low
		s.closes[i] = c.Close
		s.volumes[i] = c.Vol
	}
	s.lastClose = s.closes[len(s.closes)-1]
	s.lastVol = s.volumes[len(s.volumes)-1]
	return s
}

// atr returns the latest average true range for the series.
func (s candleSeries) atr(period int) float64 {
	vals := talib.Atr(s.highs, s.lows, s.closes, period)
	return vals[len(vals)-1]
}

// riskScore normalizes current volatility into [0,1]: ATR at 5% of price
// or more counts as maximum risk.
func (s candleSeries) riskScore(atr float64) float64 {
	if s.lastClose <= 0 {
		return 1
	}
	return clamp01(atr / s.lastClose / 0.05)
}

// brackets derives ATR-based stop-loss and take-profit levels around the
// current price.
func brackets(action types.Action, price, atr float64, cfg store.SignalConfig) (stop, target float64) {
	if atr <= 0 {
		return 0, 0
	}
	if action == types.ActionBuy {
		return price - cfg.StopATRMult*atr, price + cfg.TargetATRMult*atr
	}
	return price + cfg.StopATRMult*atr, price - cfg.TargetATRMult*atr
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func hold(symbol, strategyID, reason string) types.Signal {
	return types.Signal{
		Symbol:     symbol,
		Action:     types.ActionHold,
		StrategyID: strategyID,
		Reason:     reason,
	}
}
