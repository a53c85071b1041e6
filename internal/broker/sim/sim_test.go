package sim

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"tradepulse/internal/types"
)

func TestDuplicateClientOrderIDIsIdempotent(t *testing.T) {
	b := NewBroker(Params{})
	ctx := context.Background()

	req := types.OrderRequest{
		Symbol:        "AAPL",
		Side:          "buy",
		Type:          "market",
		Qty:           decimal.NewFromInt(10),
		ClientOrderID: "dup-1",
	}

	first, err := b.SubmitOrder(ctx, req)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	second, err := b.SubmitOrder(ctx, req)
	if err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("duplicate submission created a new order: %s vs %s", first.ID, second.ID)
	}

	positions, _ := b.GetPositions(ctx)
	if len(positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(positions))
	}
	if positions[0].Qty != 10 {
		t.Errorf("duplicate submission must not double the position, qty = %f", positions[0].Qty)
	}
}

func TestAcceptedOrdersFillOnLookup(t *testing.T) {
	b := NewBroker(Params{})
	ctx := context.Background()

	ord, err := b.SubmitOrder(ctx, types.OrderRequest{
		Symbol:        "AAPL",
		Side:          "buy",
		Qty:           decimal.NewFromInt(5),
		ClientOrderID: "fill-1",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if ord.Status != "accepted" {
		t.Fatalf("fresh order should be accepted, got %q", ord.Status)
	}

	got, err := b.GetOrder(ctx, "fill-1")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if got.Status != "filled" {
		t.Errorf("expected filled, got %q", got.Status)
	}
	if !got.FilledQty.Equal(decimal.NewFromInt(5)) {
		t.Errorf("filled qty = %s, want 5", got.FilledQty)
	}
	if !got.Terminal() {
		t.Error("filled orders are terminal")
	}
}

func TestUnknownOrderLookupFails(t *testing.T) {
	b := NewBroker(Params{})
	if _, err := b.GetOrder(context.Background(), "nope"); err == nil {
		t.Fatal("expected an error for an unknown client order id")
	}
}

func TestCandlesAndAccountShape(t *testing.T) {
	b := NewBroker(Params{StartingCash: 50_000})
	ctx := context.Background()

	candles, err := b.RecentCandles(ctx, "AAPL", 120)
	if err != nil {
		t.Fatalf("candles failed: %v", err)
	}
	if len(candles) != 120 {
		t.Fatalf("expected 120 candles, got %d", len(candles))
	}
	for i, c := range candles {
		if c.High < c.Close || c.Low > c.Close {
			t.Fatalf("candle %d wicks do not straddle the close: %+v", i, c)
		}
		if i > 0 && c.Ts <= candles[i-1].Ts {
			t.Fatalf("candles out of order at %d", i)
		}
	}

	acct, err := b.GetAccount(ctx)
	if err != nil {
		t.Fatalf("account failed: %v", err)
	}
	if acct.Cash != 50_000 {
		t.Errorf("cash = %f, want 50000", acct.Cash)
	}
	if acct.BuyingPower != 100_000 {
		t.Errorf("buying power = %f, want 2x cash", acct.BuyingPower)
	}
}

func TestBuyThenSellFlattens(t *testing.T) {
	b := NewBroker(Params{})
	ctx := context.Background()

	if _, err := b.SubmitOrder(ctx, types.OrderRequest{
		Symbol: "AAPL", Side: "buy", Qty: decimal.NewFromInt(10), ClientOrderID: "open",
	}); err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if _, err := b.SubmitOrder(ctx, types.OrderRequest{
		Symbol: "AAPL", Side: "sell", Qty: decimal.NewFromInt(10), ClientOrderID: "close",
	}); err != nil {
		t.Fatalf("sell failed: %v", err)
	}

	positions, _ := b.GetPositions(ctx)
	if len(positions) != 0 {
		t.Errorf("expected a flat book, got %+v", positions)
	}
}
