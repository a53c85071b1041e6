package records

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tradepulse/internal/types"
)

func TestAppendAndRecomputeAggregates(t *testing.T) {
	st := NewFileStore(t.TempDir())
	ctx := context.Background()

	samples := []types.LearningSample{
		{StrategyID: "momentum", SignalConfidence: 0.6, ExecutionSuccess: true, PnL: 120},
		{StrategyID: "momentum", SignalConfidence: 0.8, ExecutionSuccess: false, PnL: -50},
		{StrategyID: "breakout", SignalConfidence: 0.7, ExecutionSuccess: true, PnL: 30},
	}
	for _, s := range samples {
		if err := st.AppendLearningSample(ctx, s); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	agg, err := st.LoadStrategyAggregate(ctx, "momentum")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if agg == nil {
		t.Fatal("expected an aggregate for momentum")
	}
	if agg.TotalSignals != 2 || agg.SuccessfulSignals != 1 {
		t.Errorf("unexpected counts: %+v", agg)
	}
	if math.Abs(agg.AvgConfidence-0.7) > 1e-9 {
		t.Errorf("avg confidence = %f, want 0.7", agg.AvgConfidence)
	}
	if math.Abs(agg.AvgPnL-35) > 1e-9 {
		t.Errorf("avg pnl = %f, want 35", agg.AvgPnL)
	}

	all, err := st.LoadAllAggregates(ctx)
	if err != nil {
		t.Fatalf("load all failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 strategies, got %d", len(all))
	}
}

func TestUnknownStrategyIsNilNotError(t *testing.T) {
	st := NewFileStore(t.TempDir())

	agg, err := st.LoadStrategyAggregate(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agg != nil {
		t.Errorf("expected nil for an unknown strategy, got %+v", agg)
	}
}

func TestEmptyStoreHasNoAggregates(t *testing.T) {
	st := NewFileStore(filepath.Join(t.TempDir(), "never-written"))

	all, err := st.LoadAllAggregates(context.Background())
	if err != nil {
		t.Fatalf("a store with no samples yet must not error: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected no aggregates, got %d", len(all))
	}
}

func TestTradeRecordsAppendAsDailyFiles(t *testing.T) {
	dir := t.TempDir()
	st := NewFileStore(dir)
	ctx := context.Background()

	rec := types.TradeRecord{
		Symbol: "AAPL", Side: "buy", StrategyID: "momentum",
		Status: "accepted", Success: true, Time: time.Now(),
	}
	if err := st.AppendTradeRecord(ctx, rec); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := st.AppendTradeRecord(ctx, rec); err != nil {
		t.Fatalf("second append failed: %v", err)
	}

	path := filepath.Join(dir, "trades", dailyName(time.Now()))
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("daily file missing: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 2 {
		t.Errorf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `"symbol":"AAPL"`) {
		t.Errorf("unexpected line content: %s", lines[0])
	}
}

func TestCorruptLinesAreSkipped(t *testing.T) {
	dir := t.TempDir()
	st := NewFileStore(dir)
	ctx := context.Background()

	if err := st.AppendLearningSample(ctx, types.LearningSample{StrategyID: "momentum", ExecutionSuccess: true}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	path := filepath.Join(dir, "samples", dailyName(time.Now()))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := f.WriteString("{not json\n"); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	f.Close()

	agg, err := st.LoadStrategyAggregate(ctx, "momentum")
	if err != nil {
		t.Fatalf("corrupt lines must not fail the load: %v", err)
	}
	if agg == nil || agg.TotalSignals != 1 {
		t.Errorf("expected the one valid sample to survive, got %+v", agg)
	}
}

func TestCompressOlderGzipsOldFiles(t *testing.T) {
	dir := t.TempDir()
	st := NewFileStore(dir)

	old := filepath.Join(dir, "trades", "2024-01-01.jsonl")
	if err := os.MkdirAll(filepath.Dir(old), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(old, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().AddDate(0, 0, -30)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	if err := st.CompressOlder(7); err != nil {
		t.Fatalf("compress failed: %v", err)
	}

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("old file should be removed after compression")
	}
	if _, err := os.Stat(old + ".gz"); err != nil {
		t.Errorf("gzip file missing: %v", err)
	}
}
