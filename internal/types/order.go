package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderRequest is the broker-facing order payload. Monetary fields are
// decimals to survive the JSON round trip without float drift.
type OrderRequest struct {
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side"`
	Type          string          `json:"type"`
	TimeInForce   string          `json:"time_in_force"`
	Qty           decimal.Decimal `json:"qty,omitempty"`
	Notional      decimal.Decimal `json:"notional,omitempty"`
	ClientOrderID string          `json:"client_order_id"`
	OrderClass    string          `json:"order_class,omitempty"`
	StopLoss      *StopLossLeg    `json:"stop_loss,omitempty"`
	TakeProfit    *TakeProfitLeg  `json:"take_profit,omitempty"`
}

type StopLossLeg struct {
	StopPrice decimal.Decimal `json:"stop_price"`
}

type TakeProfitLeg struct {
	LimitPrice decimal.Decimal `json:"limit_price"`
}

// BrokerOrder is the broker's view of a submitted order.
type BrokerOrder struct {
	ID             string          `json:"id"`
	ClientOrderID  string          `json:"client_order_id"`
	Symbol         string          `json:"symbol"`
	Side           string          `json:"side"`
	Qty            decimal.Decimal `json:"qty"`
	Notional       decimal.Decimal `json:"notional"`
	FilledQty      decimal.Decimal `json:"filled_qty"`
	FilledAvgPrice decimal.Decimal `json:"filled_avg_price"`
	Status         string          `json:"status"`
	SubmittedAt    time.Time       `json:"submitted_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Terminal reports whether the order can no longer change status.
func (o BrokerOrder) Terminal() bool {
	switch o.Status {
	case "filled", "canceled", "rejected", "expired":
		return true
	}
	return false
}
