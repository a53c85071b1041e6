package cycle

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"tradepulse/internal/broker"
	"tradepulse/internal/execution"
	"tradepulse/internal/learning"
	"tradepulse/internal/risk"
	"tradepulse/internal/store"
	"tradepulse/internal/types"
)

type fakeBroker struct {
	acct       types.AccountSnapshot
	acctErr    error
	positions  []types.PositionSnapshot
	candles    []types.Candle
	candlesErr error
	submitErr  error
	submits    int
}

func (b *fakeBroker) GetAccount(context.Context) (types.AccountSnapshot, error) {
	return b.acct, b.acctErr
}

func (b *fakeBroker) GetPositions(context.Context) ([]types.PositionSnapshot, error) {
	return b.positions, nil
}

func (b *fakeBroker) RecentCandles(context.Context, string, int) ([]types.Candle, error) {
	return b.candles, b.candlesErr
}

func (b *fakeBroker) SubmitOrder(_ context.Context, req types.OrderRequest) (types.BrokerOrder, error) {
	b.submits++
	if b.submitErr != nil {
		return types.BrokerOrder{}, b.submitErr
	}
	return types.BrokerOrder{
		ID:            "ord-1",
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Status:        "accepted",
		Notional:      req.Notional,
		FilledQty:     decimal.Zero,
	}, nil
}

func (b *fakeBroker) GetOrder(context.Context, string) (types.BrokerOrder, error) {
	return types.BrokerOrder{}, nil
}

type fakeProvider struct {
	sig types.Signal
	err error
}

func (p *fakeProvider) Generate(context.Context, string, []types.Candle, string) (types.Signal, error) {
	return p.sig, p.err
}

type captureStore struct {
	trades  []types.TradeRecord
	samples []types.LearningSample
}

func (s *captureStore) AppendTradeRecord(_ context.Context, r types.TradeRecord) error {
	s.trades = append(s.trades, r)
	return nil
}

func (s *captureStore) AppendLearningSample(_ context.Context, sample types.LearningSample) error {
	s.samples = append(s.samples, sample)
	return nil
}

func (s *captureStore) LoadStrategyAggregate(context.Context, string) (*types.StrategyPerformance, error) {
	return nil, nil
}

func (s *captureStore) LoadAllAggregates(context.Context) ([]types.StrategyPerformance, error) {
	return nil, nil
}

func testRiskConfig() store.RiskConfig {
	return store.RiskConfig{
		MaxDrawdown:      0.15,
		MaxExposure:      0.9,
		MaxPositionSize:  0.25,
		MaxDailyLoss:     0.05,
		MinConfidence:    0.55,
		MaxOpenPositions: 8,
		MaxLeverage:      2.0,
	}
}

func buildOrchestrator(brk *fakeBroker, provider *fakeProvider, st *captureStore) *Orchestrator {
	execCfg := store.ExecutionConfig{
		OrderType:     "market",
		TimeInForce:   "day",
		NotionalPct:   0.10,
		MaxRetries:    1,
		RetryBaseMs:   1,
		SubmitTimeout: 500,
	}
	riskEngine := risk.New(testRiskConfig())
	router := execution.New(brk, execCfg, nil, nil)
	learningEngine := learning.New(st, store.LearningConfig{MinAccuracy: 0.5, MinConfidence: 0.6}, nil)
	return New(brk, provider, riskEngine, router, learningEngine, st, nil, 120)
}

func healthyBroker() *fakeBroker {
	return &fakeBroker{
		acct: types.AccountSnapshot{
			TotalValue:  100_000,
			Cash:        60_000,
			BuyingPower: 120_000,
			Equity:      100_000,
			LastEquity:  99_500,
		},
		candles: make([]types.Candle, 120),
	}
}

func TestApprovedSignalRunsFullPipeline(t *testing.T) {
	brk := healthyBroker()
	st := &captureStore{}
	provider := &fakeProvider{sig: types.Signal{
		Symbol: "AAPL", Action: types.ActionBuy, Confidence: 0.8, StrategyID: "momentum",
		StopLoss: 180, TakeProfit: 210,
	}}
	orc := buildOrchestrator(brk, provider, st)

	res, err := orc.Run(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != types.CycleExecuted {
		t.Fatalf("expected executed, got %s (%s)", res.Status, res.Reason)
	}
	if res.Execution == nil || !res.Execution.Success {
		t.Fatal("expected a successful execution result")
	}
	if brk.submits != 1 {
		t.Errorf("expected one submission, got %d", brk.submits)
	}
	if len(st.trades) != 1 || len(st.samples) != 1 {
		t.Errorf("expected one trade record and one sample, got %d/%d", len(st.trades), len(st.samples))
	}
	if res.Sample == nil || res.Sample.Accuracy != 1 {
		t.Errorf("successful BUY should score accuracy 1, got %+v", res.Sample)
	}
}

func TestHoldShortCircuitsBeforeExecution(t *testing.T) {
	brk := healthyBroker()
	st := &captureStore{}
	provider := &fakeProvider{sig: types.Signal{
		Symbol: "AAPL", Action: types.ActionHold, Confidence: 0.4, StrategyID: "momentum",
	}}
	orc := buildOrchestrator(brk, provider, st)

	res, err := orc.Run(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != types.CycleHold {
		t.Fatalf("expected hold, got %s", res.Status)
	}
	if brk.submits != 0 {
		t.Errorf("HOLD must never reach the broker, got %d submissions", brk.submits)
	}
	if res.Execution != nil {
		t.Error("no execution result expected for HOLD")
	}
	if res.Decision == nil || res.Decision.RiskLevel != types.RiskLow {
		t.Errorf("HOLD decision must be LOW risk, got %+v", res.Decision)
	}
	if len(st.trades) != 0 {
		t.Errorf("no trade record expected for HOLD, got %d", len(st.trades))
	}
}

func TestRejectedSignalNeverExecutes(t *testing.T) {
	brk := healthyBroker()
	brk.acct.TradingBlocked = true
	st := &captureStore{}
	provider := &fakeProvider{sig: types.Signal{
		Symbol: "AAPL", Action: types.ActionBuy, Confidence: 0.8, StrategyID: "momentum",
	}}
	orc := buildOrchestrator(brk, provider, st)

	res, err := orc.Run(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != types.CycleRejected {
		t.Fatalf("expected rejected, got %s", res.Status)
	}
	if brk.submits != 0 {
		t.Errorf("rejected signal must never reach the broker, got %d submissions", brk.submits)
	}
	if res.Signal == nil || res.Decision == nil {
		t.Error("rejection must preserve the signal and decision")
	}
}

func TestAccountFetchFailureRejectsCritical(t *testing.T) {
	brk := healthyBroker()
	brk.acctErr = errors.New("connection refused")
	st := &captureStore{}
	provider := &fakeProvider{sig: types.Signal{
		Symbol: "AAPL", Action: types.ActionBuy, Confidence: 0.8, StrategyID: "momentum",
	}}
	orc := buildOrchestrator(brk, provider, st)

	res, err := orc.Run(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("data unavailability is a rejection, not a fault: %v", err)
	}
	if res.Status != types.CycleRejected {
		t.Fatalf("expected rejected, got %s", res.Status)
	}
	if res.Decision.RiskLevel != types.RiskCritical {
		t.Errorf("expected CRITICAL, got %s", res.Decision.RiskLevel)
	}
	if brk.submits != 0 {
		t.Errorf("expected no submissions, got %d", brk.submits)
	}
}

func TestSignalFailureAbortsWithPartialResult(t *testing.T) {
	brk := healthyBroker()
	st := &captureStore{}
	provider := &fakeProvider{err: errors.New("not enough candles")}
	orc := buildOrchestrator(brk, provider, st)

	res, err := orc.Run(context.Background(), "AAPL")
	if err == nil {
		t.Fatal("expected an error from signal failure")
	}
	if res == nil || res.Status != types.CycleError {
		t.Fatalf("expected an error result, got %+v", res)
	}
	if res.Signal != nil {
		t.Error("no signal should be attached when generation failed")
	}
	if brk.submits != 0 {
		t.Errorf("expected no submissions, got %d", brk.submits)
	}
}

func TestCandleFetchFailureAborts(t *testing.T) {
	brk := healthyBroker()
	brk.candlesErr = errors.New("rate limited")
	orc := buildOrchestrator(brk, &fakeProvider{}, &captureStore{})

	res, err := orc.Run(context.Background(), "AAPL")
	if err == nil {
		t.Fatal("expected an error from candle fetch failure")
	}
	if res.Status != types.CycleError {
		t.Fatalf("expected error status, got %s", res.Status)
	}
	if !strings.Contains(res.Reason, "candle fetch failed") {
		t.Errorf("unexpected reason %q", res.Reason)
	}
}

func TestFailedExecutionStillRecords(t *testing.T) {
	brk := healthyBroker()
	brk.submitErr = &broker.APIError{StatusCode: 422, Message: "invalid order"}
	st := &captureStore{}
	provider := &fakeProvider{sig: types.Signal{
		Symbol: "AAPL", Action: types.ActionBuy, Confidence: 0.8, StrategyID: "momentum",
	}}
	orc := buildOrchestrator(brk, provider, st)

	res, err := orc.Run(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != types.CycleExecuted {
		t.Fatalf("failed executions still terminate as executed, got %s", res.Status)
	}
	if res.Execution.Success {
		t.Fatal("expected a failed execution")
	}
	if len(st.trades) != 1 {
		t.Errorf("the failed attempt must be recorded, got %d trade records", len(st.trades))
	}
	if res.Sample == nil || res.Sample.ActualOutcome != -1 {
		t.Errorf("failed execution maps to actual -1, got %+v", res.Sample)
	}
	if res.Sample.Accuracy != 0 {
		t.Errorf("BUY with failed execution scores 0, got %f", res.Sample.Accuracy)
	}
}
