// Package sim is the in-process broker used in DRY_RUN mode. Candles are a
// synthetic random walk and orders are accepted immediately and filled on
// the next status lookup.
package sim

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradepulse/internal/interfaces"
	"tradepulse/internal/types"
)

type Params struct {
	StartingCash float64
}

type Broker struct {
	mu        sync.Mutex
	cash      float64
	positions map[string]*types.PositionSnapshot
	// orders is keyed by client order ID so duplicate submissions with the
	// same ID return the original order instead of creating a second one.
	orders map[string]*types.BrokerOrder
	prices map[string]float64
}

var _ interfaces.Broker = (*Broker)(nil)

func NewBroker(p Params) *Broker {
	if p.StartingCash == 0 {
		p.StartingCash = 100_000
	}
	return &Broker{
		cash:      p.StartingCash,
		positions: map[string]*types.PositionSnapshot{},
		orders:    map[string]*types.BrokerOrder{},
		prices:    map[string]float64{},
	}
}

func (b *Broker) GetAccount(ctx context.Context) (types.AccountSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var long, unrealized float64
	for _, p := range b.positions {
		long += p.MarketValue
		unrealized += p.UnrealizedPnL
	}
	equity := b.cash + long
	return types.AccountSnapshot{
		TotalValue:      equity,
		Cash:            b.cash,
		BuyingPower:     b.cash * 2,
		DayPnL:          unrealized,
		Equity:          equity,
		LastEquity:      equity - unrealized,
		LongMarketValue: long,
	}, nil
}

func (b *Broker) GetPositions(ctx context.Context) ([]types.PositionSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]types.PositionSnapshot, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, *p)
	}
	return out, nil
}

func (b *Broker) RecentCandles(ctx context.Context, symbol string, n int) ([]types.Candle, error) {
	b.mu.Lock()
	base, ok := b.prices[symbol]
	if !ok {
		base = 50 + rand.Float64()*200
		b.prices[symbol] = base
	}
	b.mu.Unlock()

	cs := make([]types.Candle, 0, n)
	now := time.Now().Unix()
	price := base
	for i := n; i > 0; i-- {
		price += (rand.Float64() - 0.5) * base * 0.004
		h := price + rand.Float64()*base*0.002
		l := price - rand.Float64()*base*0.002
		cs = append(cs, types.Candle{
			Ts:    now - int64(i*60),
			Open:  price - (rand.Float64()-0.5)*base*0.001,
			High:  h,
			Low:   l,
			Close: price,
			Vol:   1000 + rand.Float64()*9000,
		})
	}

	b.mu.Lock()
	b.prices[symbol] = price
	b.mu.Unlock()
	return cs, nil
}

func (b *Broker) SubmitOrder(ctx context.Context, req types.OrderRequest) (types.BrokerOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.orders[req.ClientOrderID]; ok {
		return *existing, nil
	}

	price := b.prices[req.Symbol]
	if price == 0 {
		price = 100
	}

	qty := req.Qty
	if qty.IsZero() && !req.Notional.IsZero() {
		qty = req.Notional.Div(decimal.NewFromFloat(price)).Round(4)
	}

	ord := &types.BrokerOrder{
		ID:            uuid.NewString(),
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Qty:           qty,
		Notional:      req.Notional,
		Status:        "accepted",
		SubmittedAt:   time.Now(),
		UpdatedAt:     time.Now(),
	}
	b.orders[req.ClientOrderID] = ord

	notional := qty.InexactFloat64() * price
	if req.Side == "buy" {
		b.cash -= notional
		pos := b.positions[req.Symbol]
		if pos == nil {
			pos = &types.PositionSnapshot{Symbol: req.Symbol, Side: "long", EntryTime: time.Now()}
			b.positions[req.Symbol] = pos
		}
		pos.Qty += qty.InexactFloat64()
		pos.CostBasis += notional
		pos.MarketValue += notional
	} else {
		b.cash += notional
		if pos := b.positions[req.Symbol]; pos != nil {
			pos.Qty -= qty.InexactFloat64()
			pos.MarketValue -= notional
			if pos.Qty <= 0 {
				delete(b.positions, req.Symbol)
			}
		}
	}

	return *ord, nil
}

func (b *Broker) GetOrder(ctx context.Context, clientOrderID string) (types.BrokerOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ord, ok := b.orders[clientOrderID]
	if !ok {
		return types.BrokerOrder{}, errOrderNotFound(clientOrderID)
	}
	// Simulated fill: accepted orders fill by the time anyone asks.
	if ord.Status == "accepted" {
		ord.Status = "filled"
		ord.FilledQty = ord.Qty
		price := b.prices[ord.Symbol]
		if price == 0 {
			price = 100
		}
		ord.FilledAvgPrice = decimal.NewFromFloat(price)
		ord.UpdatedAt = time.Now()
	}
	return *ord, nil
}

type errOrderNotFound string

func (e errOrderNotFound) Error() string {
	return "order not found: " + string(e)
}
