package types

import "time"

// Candle is one bar of historical price/volume data.
type Candle struct {
	Ts                          int64
	Open, High, Low, Close, Vol float64
}

// Action is the direction a signal recommends.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// RiskLevel classifies how close a decision sits to the configured risk ceilings.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Signal is a directional trade recommendation. Immutable once produced.
type Signal struct {
	Symbol      string    `json:"symbol"`
	Action      Action    `json:"action"`
	Confidence  float64   `json:"confidence"`
	RiskScore   float64   `json:"risk_score"`
	StrategyID  string    `json:"strategy_id"`
	StopLoss    float64   `json:"stop_loss,omitempty"`
	TakeProfit  float64   `json:"take_profit,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// AccountSnapshot is a read-only view of the broker account, fetched fresh per cycle.
type AccountSnapshot struct {
	TotalValue       float64 `json:"total_value"`
	Cash             float64 `json:"cash"`
	BuyingPower      float64 `json:"buying_power"`
	DayPnL           float64 `json:"day_pnl"`
	Equity           float64 `json:"equity"`
	LastEquity       float64 `json:"last_equity"`
	LongMarketValue  float64 `json:"long_market_value"`
	ShortMarketValue float64 `json:"short_market_value"`
	DayTradeCount    int     `json:"day_trade_count"`
	TradingBlocked   bool    `json:"trading_blocked"`
}

// PositionSnapshot is one open position as reported by the broker.
type PositionSnapshot struct {
	Symbol        string    `json:"symbol"`
	Qty           float64   `json:"qty"`
	Side          string    `json:"side"`
	MarketValue   float64   `json:"market_value"`
	CostBasis     float64   `json:"cost_basis"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	EntryTime     time.Time `json:"entry_time,omitempty"`
	StopLoss      float64   `json:"stop_loss,omitempty"`
	TakeProfit    float64   `json:"take_profit,omitempty"`
}

// RiskMetrics are the portfolio measurements backing a RiskDecision.
type RiskMetrics struct {
	Drawdown        float64 `json:"drawdown"`
	Exposure        float64 `json:"exposure"`
	PositionSizePct float64 `json:"position_size_pct"`
	DailyPnLPct     float64 `json:"daily_pnl_pct"`
	OpenPositions   int     `json:"open_positions"`
	BuyingPower     float64 `json:"buying_power"`
}

// RiskDecision is the outcome of a risk evaluation. Produced fresh per
// evaluation and never cached across cycles.
type RiskDecision struct {
	Approved        bool        `json:"approved"`
	RiskLevel       RiskLevel   `json:"risk_level"`
	Reason          string      `json:"reason"`
	Warnings        []string    `json:"warnings,omitempty"`
	Metrics         RiskMetrics `json:"metrics"`
	Recommendations []string    `json:"recommendations,omitempty"`
}

// ExecutionResult is the terminal record of one order submission attempt.
// The underlying broker order may keep changing status asynchronously; that
// is tracked by the order watcher, not here.
type ExecutionResult struct {
	Success       bool    `json:"success"`
	OrderID       string  `json:"order_id,omitempty"`
	ClientOrderID string  `json:"client_order_id,omitempty"`
	Side          string  `json:"side"`
	Symbol        string  `json:"symbol"`
	FilledPrice   float64 `json:"filled_price,omitempty"`
	FilledQty     float64 `json:"filled_qty,omitempty"`
	Notional      float64 `json:"notional,omitempty"`
	LatencyMs     int64   `json:"latency_ms"`
	OrderStatus   string  `json:"order_status"`
	Error         string  `json:"error,omitempty"`
}

// LearningSample is one predicted-vs-actual accuracy observation. Append-only.
type LearningSample struct {
	Symbol           string    `json:"symbol"`
	StrategyID       string    `json:"strategy_id"`
	SignalConfidence float64   `json:"signal_confidence"`
	SignalAction     Action    `json:"signal_action"`
	ExecutionSuccess bool      `json:"execution_success"`
	PredictedOutcome float64   `json:"predicted_outcome"`
	ActualOutcome    float64   `json:"actual_outcome"`
	Accuracy         float64   `json:"accuracy"`
	PnL              float64   `json:"pnl,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// StrategyPerformance is the rolling per-strategy aggregate, recomputed
// incrementally on every new sample.
type StrategyPerformance struct {
	StrategyID        string   `json:"strategy_id"`
	TotalSignals      int      `json:"total_signals"`
	SuccessfulSignals int      `json:"successful_signals"`
	Accuracy          float64  `json:"accuracy"`
	AvgConfidence     float64  `json:"avg_confidence"`
	AvgPnL            float64  `json:"avg_pnl"`
	Recommendations   []string `json:"recommendations,omitempty"`
}

// TradeRecord is the analytics row persisted for every execution attempt.
type TradeRecord struct {
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"`
	StrategyID    string    `json:"strategy_id"`
	OrderID       string    `json:"order_id,omitempty"`
	ClientOrderID string    `json:"client_order_id,omitempty"`
	Qty           float64   `json:"qty,omitempty"`
	Price         float64   `json:"price,omitempty"`
	Notional      float64   `json:"notional,omitempty"`
	Status        string    `json:"status"`
	Success       bool      `json:"success"`
	Confidence    float64   `json:"confidence"`
	Reason        string    `json:"reason,omitempty"`
	Time          time.Time `json:"time"`
}

// CycleStatus is the terminal state of one decision cycle.
type CycleStatus string

const (
	CycleRejected CycleStatus = "rejected"
	CycleHold     CycleStatus = "hold"
	CycleExecuted CycleStatus = "executed"
	CycleError    CycleStatus = "error"
)

// CycleResult aggregates the per-step outputs of one cycle run. Fields past
// the step that terminated the cycle are left nil.
type CycleResult struct {
	Symbol    string           `json:"symbol"`
	Status    CycleStatus      `json:"status"`
	Reason    string           `json:"reason"`
	Signal    *Signal          `json:"signal,omitempty"`
	Decision  *RiskDecision    `json:"decision,omitempty"`
	Execution *ExecutionResult `json:"execution,omitempty"`
	Sample    *LearningSample  `json:"sample,omitempty"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration"`
}
