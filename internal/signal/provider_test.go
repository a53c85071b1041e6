package signal

import (
	"context"
	"testing"

	"tradepulse/internal/store"
	"tradepulse/internal/types"
)

func signalConfig() store.SignalConfig {
	return store.SignalConfig{
		Strategy:         "composite",
		MomentumPeriod:   10,
		RSIPeriod:        14,
		BBWindow:         20,
		BBStdDev:         2.0,
		ATRPeriod:        14,
		BreakoutLookback: 20,
		StopATRMult:      2.0,
		TargetATRMult:    3.0,
		VolumeBonus:      0.1,
	}
}

// candlesFromCloses builds a window with half-point wicks around each close.
func candlesFromCloses(closes []float64, vol float64) []types.Candle {
	out := make([]types.Candle, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		out[i] = types.Candle{
			Ts:    int64(i),
			Open:  open,
			High:  c + 0.5,
			Low:   c - 0.5,
			Close: c,
			Vol:   vol,
		}
	}
	return out
}

func flatCloses(n int, price float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = price
	}
	return out
}

// zigzagUp drifts upward two steps forward, one step back, which keeps RSI
// off its extremes while momentum stays positive.
func zigzagUp(n int, start float64) []float64 {
	out := make([]float64, n)
	p := start
	for i := range out {
		if i%2 == 0 {
			p += 2
		} else {
			p -= 1
		}
		out[i] = p
	}
	return out
}

func TestTooFewCandles(t *testing.T) {
	p := NewProvider(signalConfig())
	_, err := p.Generate(context.Background(), "AAPL", candlesFromCloses(flatCloses(30, 100), 1e6), "")
	if err == nil {
		t.Fatal("expected an error below the minimum candle count")
	}
}

func TestUnknownStrategy(t *testing.T) {
	p := NewProvider(signalConfig())
	_, err := p.Generate(context.Background(), "AAPL", candlesFromCloses(flatCloses(60, 100), 1e6), "astrology")
	if err == nil {
		t.Fatal("expected an error for an unknown strategy hint")
	}
}

func TestFlatSeriesHolds(t *testing.T) {
	p := NewProvider(signalConfig())

	sig, err := p.Generate(context.Background(), "AAPL", candlesFromCloses(flatCloses(60, 100), 1e6), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig.Action != types.ActionHold {
		t.Errorf("a flat series must HOLD, got %s (%s)", sig.Action, sig.Reason)
	}
	if sig.StrategyID != "composite" {
		t.Errorf("composite HOLD carries the composite id, got %q", sig.StrategyID)
	}
}

func TestMomentumBuysUptrend(t *testing.T) {
	p := NewProvider(signalConfig())
	closes := zigzagUp(60, 100)

	sig, err := p.Generate(context.Background(), "AAPL", candlesFromCloses(closes, 1e6), "momentum")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig.Action != types.ActionBuy {
		t.Fatalf("expected BUY in an uptrend, got %s (%s)", sig.Action, sig.Reason)
	}
	if sig.StrategyID != "momentum" {
		t.Errorf("expected strategy momentum, got %q", sig.StrategyID)
	}
	if sig.Confidence <= 0.5 || sig.Confidence > 1 {
		t.Errorf("confidence out of range: %f", sig.Confidence)
	}
	price := closes[len(closes)-1]
	if sig.StopLoss <= 0 || sig.StopLoss >= price {
		t.Errorf("BUY stop must sit below price %f, got %f", price, sig.StopLoss)
	}
	if sig.TakeProfit <= price {
		t.Errorf("BUY target must sit above price %f, got %f", price, sig.TakeProfit)
	}
}

func TestMeanReversionBuysBelowLowerBand(t *testing.T) {
	p := NewProvider(signalConfig())
	closes := flatCloses(60, 100)
	closes[len(closes)-1] = 90

	sig, err := p.Generate(context.Background(), "AAPL", candlesFromCloses(closes, 1e6), "mean_reversion")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig.Action != types.ActionBuy {
		t.Fatalf("expected BUY below the lower band, got %s (%s)", sig.Action, sig.Reason)
	}
	if sig.Confidence <= 0.5 {
		t.Errorf("a deep band violation should carry real confidence, got %f", sig.Confidence)
	}
}

func TestMeanReversionSellsAboveUpperBand(t *testing.T) {
	p := NewProvider(signalConfig())
	closes := flatCloses(60, 100)
	closes[len(closes)-1] = 110

	sig, err := p.Generate(context.Background(), "AAPL", candlesFromCloses(closes, 1e6), "mean_reversion")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig.Action != types.ActionSell {
		t.Fatalf("expected SELL above the upper band, got %s (%s)", sig.Action, sig.Reason)
	}
}

func TestBreakoutBuysRangeBreak(t *testing.T) {
	p := NewProvider(signalConfig())
	closes := flatCloses(60, 100)
	closes[len(closes)-1] = 105

	candles := candlesFromCloses(closes, 1e6)
	// Volume spike on the breakout bar.
	candles[len(candles)-1].Vol = 3e6

	sig, err := p.Generate(context.Background(), "AAPL", candles, "breakout")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig.Action != types.ActionBuy {
		t.Fatalf("expected BUY on a range break, got %s (%s)", sig.Action, sig.Reason)
	}
	if sig.StrategyID != "breakout" {
		t.Errorf("expected strategy breakout, got %q", sig.StrategyID)
	}
}

func TestBreakoutVolumeConfirmationRaisesConfidence(t *testing.T) {
	closes := flatCloses(60, 100)
	closes[len(closes)-1] = 105

	quiet := candlesFromCloses(closes, 1e6)
	quiet[len(quiet)-1].Vol = 1e5

	loud := candlesFromCloses(closes, 1e6)
	loud[len(loud)-1].Vol = 3e6

	p := NewProvider(signalConfig())
	ctx := context.Background()

	quietSig, err := p.Generate(ctx, "AAPL", quiet, "breakout")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loudSig, err := p.Generate(ctx, "AAPL", loud, "breakout")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if loudSig.Confidence <= quietSig.Confidence {
		t.Errorf("volume confirmation should raise confidence: quiet %f, loud %f",
			quietSig.Confidence, loudSig.Confidence)
	}
}

func TestCompositePicksDirectionalSignal(t *testing.T) {
	p := NewProvider(signalConfig())
	closes := flatCloses(60, 100)
	closes[len(closes)-1] = 105

	sig, err := p.Generate(context.Background(), "AAPL", candlesFromCloses(closes, 1e6), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig.Action == types.ActionHold {
		t.Fatalf("composite should surface the breakout, got HOLD (%s)", sig.Reason)
	}
	if sig.Confidence < 0 || sig.Confidence > 1 {
		t.Errorf("confidence out of range: %f", sig.Confidence)
	}
	if sig.GeneratedAt.IsZero() {
		t.Error("generated timestamp must be set")
	}
}
