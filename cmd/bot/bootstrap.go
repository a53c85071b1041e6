package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"tradepulse/internal/broker/alpaca"
	"tradepulse/internal/broker/brokerobs"
	"tradepulse/internal/broker/sim"
	"tradepulse/internal/cycle"
	"tradepulse/internal/cycle/cycleobs"
	"tradepulse/internal/execution"
	"tradepulse/internal/interfaces"
	"tradepulse/internal/learning"
	"tradepulse/internal/logger"
	"tradepulse/internal/metrics"
	"tradepulse/internal/orderwatch"
	"tradepulse/internal/records"
	"tradepulse/internal/risk"
	"tradepulse/internal/signal"
	"tradepulse/internal/store"
	"tradepulse/internal/trace"
)

// initializeSystem initializes environment, logger, and tracer
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

// initializeBroker returns the broker for the configured mode, wrapped with
// observability middleware.
func initializeBroker(ctx context.Context, cfg *store.Config) interfaces.Broker {
	var brk interfaces.Broker
	if cfg.Mode == "DRY_RUN" {
		logger.Warn(ctx, "Running in DRY_RUN mode - orders will be simulated")
		brk = sim.NewBroker(sim.Params{})
	} else {
		brk = alpaca.NewClient(alpaca.Params{
			BaseURL: cfg.Broker.BaseURL,
			Key:     os.Getenv(cfg.Broker.KeyEnv),
			Secret:  os.Getenv(cfg.Broker.SecretEnv),
		})
	}
	return brokerobs.Wrap(brk)
}

// initializeStore returns the persistence backend for the configured driver.
func initializeStore(ctx context.Context, cfg *store.Config) (interfaces.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		st, err := records.NewPostgresStore(cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		logger.Info(ctx, "Using postgres store")
		return st, nil
	default:
		fs := records.NewFileStore(cfg.Store.Dir)
		compressOldRecords(ctx, fs)
		logger.Info(ctx, "Using JSONL file store", "dir", cfg.Store.Dir)
		return fs, nil
	}
}

// compressOldRecords gzips old record files if retention is configured
func compressOldRecords(ctx context.Context, fs *records.FileStore) {
	if v := os.Getenv("TRADER_LOG_RETENTION_DAYS"); v != "" {
		var n int
		fmt.Sscanf(v, "%d", &n)
		if err := fs.CompressOlder(n); err != nil {
			logger.Warn(ctx, "Failed to compress old record files", "error", err)
		}
	}
}

// initializeWatcher builds the background order-status watcher. The pending
// journal lives in Redis when configured so unknown-outcome orders survive
// a restart.
func initializeWatcher(ctx context.Context, cfg *store.Config, brk interfaces.Broker) *orderwatch.Watcher {
	var journal orderwatch.Journal
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		journal = orderwatch.NewRedisJournal(rdb)
		logger.Info(ctx, "Order journal backed by redis", "addr", cfg.Redis.Addr)
	} else {
		journal = orderwatch.NewMemoryJournal()
		logger.Info(ctx, "Order journal in memory only")
	}
	interval := time.Duration(cfg.PollIntervalMs) * time.Millisecond
	return orderwatch.NewWatcher(brk, journal, interval)
}

// initializeRunner assembles the full decision pipeline.
func initializeRunner(
	ctx context.Context,
	cfg *store.Config,
	brk interfaces.Broker,
	st interfaces.Store,
	watcher *orderwatch.Watcher,
	m *metrics.Metrics,
) (interfaces.CycleRunner, *learning.Engine, *risk.Engine) {
	riskEngine := risk.New(cfg.Risk)
	router := execution.New(brk, cfg.Execution, watcher, m)
	learningEngine := learning.New(st, cfg.Learning, m)
	provider := signal.NewProvider(cfg.Signals)

	if err := learningEngine.Reload(ctx); err != nil {
		logger.Warn(ctx, "Could not reload strategy aggregates, starting cold", "error", err)
	}
	if acct, err := brk.GetAccount(ctx); err == nil {
		riskEngine.SeedPeak(acct.TotalValue)
	}

	orch := cycle.New(brk, provider, riskEngine, router, learningEngine, st, m, cfg.CandleLookback)
	return cycleobs.Wrap(orch), learningEngine, riskEngine
}
