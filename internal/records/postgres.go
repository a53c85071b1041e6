package records

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"tradepulse/internal/interfaces"
	"tradepulse/internal/types"
)

type tradeRecordRow struct {
	ID            uint      `gorm:"primaryKey"`
	Symbol        string    `gorm:"index;size:16"`
	Side          string    `gorm:"size:8"`
	StrategyID    string    `gorm:"index;size:32"`
	OrderID       string    `gorm:"size:64"`
	ClientOrderID string    `gorm:"uniqueIndex;size:64"`
	Qty           float64
	Price         float64
	Notional      float64
	Status        string `gorm:"size:16"`
	Success       bool
	Confidence    float64
	Reason        string
	TradedAt      time.Time `gorm:"index"`
	CreatedAt     time.Time
}

func (tradeRecordRow) TableName() string { return "trade_records" }

type learningSampleRow struct {
	ID               uint   `gorm:"primaryKey"`
	Symbol           string `gorm:"index;size:16"`
	StrategyID       string `gorm:"index;size:32"`
	SignalConfidence float64
	SignalAction     string `gorm:"size:8"`
	ExecutionSuccess bool
	PredictedOutcome float64
	ActualOutcome    float64
	Accuracy         float64
	PnL              float64
	SampledAt        time.Time `gorm:"index"`
	CreatedAt        time.Time
}

func (learningSampleRow) TableName() string { return "learning_samples" }

// PostgresStore persists records in postgres via gorm. Aggregates are
// computed in SQL from the append-only sample table.
type PostgresStore struct {
	db *gorm.DB
}

var _ interfaces.Store = (*PostgresStore)(nil)

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&tradeRecordRow{}, &learningSampleRow{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) AppendTradeRecord(ctx context.Context, rec types.TradeRecord) error {
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}
	row := tradeRecordRow{
		Symbol:        rec.Symbol,
		Side:          rec.Side,
		StrategyID:    rec.StrategyID,
		OrderID:       rec.OrderID,
		ClientOrderID: rec.ClientOrderID,
		Qty:           rec.Qty,
		Price:         rec.Price,
		Notional:      rec.Notional,
		Status:        rec.Status,
		Success:       rec.Success,
		Confidence:    rec.Confidence,
		Reason:        rec.Reason,
		TradedAt:      rec.Time,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("append trade record: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendLearningSample(ctx context.Context, sample types.LearningSample) error {
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}
	row := learningSampleRow{
		Symbol:           sample.Symbol,
		StrategyID:       sample.StrategyID,
		SignalConfidence: sample.SignalConfidence,
		SignalAction:     string(sample.SignalAction),
		ExecutionSuccess: sample.ExecutionSuccess,
		PredictedOutcome: sample.PredictedOutcome,
		ActualOutcome:    sample.ActualOutcome,
		Accuracy:         sample.Accuracy,
		PnL:              sample.PnL,
		SampledAt:        sample.Timestamp,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("append learning sample: %w", err)
	}
	return nil
}

type aggregateRow struct {
	StrategyID    string
	Total         int
	Successful    int
	AvgConfidence float64
	AvgPnL        float64
}

const aggregateSelect = "strategy_id, count(*) as total, " +
	"sum(case when execution_success then 1 else 0 end) as successful, " +
	"avg(signal_confidence) as avg_confidence, avg(pn_l) as avg_pn_l"

func (s *PostgresStore) LoadStrategyAggregate(ctx context.Context, strategyID string) (*types.StrategyPerformance, error) {
	var rows []aggregateRow
	err := s.db.WithContext(ctx).
		Model(&learningSampleRow{}).
		Select(aggregateSelect).
		Where("strategy_id = ?", strategyID).
		Group("strategy_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load aggregate for %s: %w", strategyID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	perf := rows[0].toPerformance()
	return &perf, nil
}

func (s *PostgresStore) LoadAllAggregates(ctx context.Context) ([]types.StrategyPerformance, error) {
	var rows []aggregateRow
	err := s.db.WithContext(ctx).
		Model(&learningSampleRow{}).
		Select(aggregateSelect).
		Group("strategy_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load aggregates: %w", err)
	}
	out := make([]types.StrategyPerformance, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toPerformance())
	}
	return out, nil
}

func (r aggregateRow) toPerformance() types.StrategyPerformance {
	perf := types.StrategyPerformance{
		StrategyID:        r.StrategyID,
		TotalSignals:      r.Total,
		SuccessfulSignals: r.Successful,
		AvgConfidence:     r.AvgConfidence,
		AvgPnL:            r.AvgPnL,
	}
	if r.Total > 0 {
		perf.Accuracy = float64(r.Successful) / float64(r.Total)
	}
	return perf
}
