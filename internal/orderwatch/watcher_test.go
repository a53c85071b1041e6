package orderwatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"tradepulse/internal/types"
)

type pollBroker struct {
	// orders maps client order IDs to the status GetOrder reports.
	orders map[string]string
	errs   map[string]error
}

func (b *pollBroker) GetOrder(_ context.Context, clientOrderID string) (types.BrokerOrder, error) {
	if err := b.errs[clientOrderID]; err != nil {
		return types.BrokerOrder{}, err
	}
	status, ok := b.orders[clientOrderID]
	if !ok {
		return types.BrokerOrder{}, errors.New("order not found")
	}
	return types.BrokerOrder{
		ID:            "ord-" + clientOrderID,
		ClientOrderID: clientOrderID,
		Symbol:        "AAPL",
		Status:        status,
	}, nil
}

func (b *pollBroker) GetAccount(context.Context) (types.AccountSnapshot, error) {
	return types.AccountSnapshot{}, nil
}
func (b *pollBroker) GetPositions(context.Context) ([]types.PositionSnapshot, error) {
	return nil, nil
}
func (b *pollBroker) RecentCandles(context.Context, string, int) ([]types.Candle, error) {
	return nil, nil
}
func (b *pollBroker) SubmitOrder(context.Context, types.OrderRequest) (types.BrokerOrder, error) {
	return types.BrokerOrder{}, nil
}

func TestMemoryJournalRoundTrip(t *testing.T) {
	j := NewMemoryJournal()
	ctx := context.Background()

	if err := j.Add(ctx, Pending{ClientOrderID: "a", Symbol: "AAPL", TrackedAt: time.Now()}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := j.Add(ctx, Pending{ClientOrderID: "b", Symbol: "MSFT", TrackedAt: time.Now()}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	pending, err := j.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}

	if err := j.Remove(ctx, "a"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	pending, _ = j.List(ctx)
	if len(pending) != 1 || pending[0].ClientOrderID != "b" {
		t.Errorf("expected only b to remain, got %+v", pending)
	}
}

func TestPollResolvesTerminalOrders(t *testing.T) {
	brk := &pollBroker{orders: map[string]string{
		"done":    "filled",
		"working": "accepted",
	}}
	j := NewMemoryJournal()
	w := NewWatcher(brk, j, time.Second)
	ctx := context.Background()

	if err := w.Track(ctx, "done", "AAPL"); err != nil {
		t.Fatalf("track failed: %v", err)
	}
	if err := w.Track(ctx, "working", "AAPL"); err != nil {
		t.Fatalf("track failed: %v", err)
	}

	var resolved []types.BrokerOrder
	w.OnUpdate(func(o types.BrokerOrder) { resolved = append(resolved, o) })

	w.poll(ctx)

	if len(resolved) != 1 {
		t.Fatalf("expected 1 resolved order, got %d", len(resolved))
	}
	if resolved[0].ClientOrderID != "done" || resolved[0].Status != "filled" {
		t.Errorf("unexpected resolution: %+v", resolved[0])
	}

	pending, _ := j.List(ctx)
	if len(pending) != 1 || pending[0].ClientOrderID != "working" {
		t.Errorf("only the working order should remain pending, got %+v", pending)
	}
}

func TestPollKeepsUnresolvableOrders(t *testing.T) {
	brk := &pollBroker{
		orders: map[string]string{},
		errs:   map[string]error{"ghost": errors.New("not found yet")},
	}
	j := NewMemoryJournal()
	w := NewWatcher(brk, j, time.Second)
	ctx := context.Background()

	if err := w.Track(ctx, "ghost", "AAPL"); err != nil {
		t.Fatalf("track failed: %v", err)
	}

	w.poll(ctx)

	// A lookup failure is transient; keep the order for the next poll.
	pending, _ := j.List(ctx)
	if len(pending) != 1 {
		t.Errorf("unresolvable order must stay journaled, got %d pending", len(pending))
	}
}

func TestPollResolvesOnLaterStatusChange(t *testing.T) {
	brk := &pollBroker{orders: map[string]string{"slow": "accepted"}}
	j := NewMemoryJournal()
	w := NewWatcher(brk, j, time.Second)
	ctx := context.Background()

	if err := w.Track(ctx, "slow", "AAPL"); err != nil {
		t.Fatalf("track failed: %v", err)
	}

	var resolved int
	w.OnUpdate(func(types.BrokerOrder) { resolved++ })

	w.poll(ctx)
	if resolved != 0 {
		t.Fatal("accepted is not terminal, nothing should resolve on the first poll")
	}

	brk.orders["slow"] = "canceled"
	w.poll(ctx)
	if resolved != 1 {
		t.Fatalf("expected resolution after the status turned terminal, got %d", resolved)
	}

	pending, _ := j.List(ctx)
	if len(pending) != 0 {
		t.Errorf("journal should be empty, got %+v", pending)
	}
}
