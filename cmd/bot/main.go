package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tradepulse/internal/interfaces"
	"tradepulse/internal/logger"
	"tradepulse/internal/metrics"
	"tradepulse/internal/store"
	"tradepulse/internal/trace"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	must(initializeSystem())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	configPath := "config.yaml"
	if v := os.Getenv("TRADEPULSE_CONFIG"); v != "" {
		configPath = v
	}
	cfg, err := store.LoadConfig(configPath)
	must(err)

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr); err != nil {
				logger.ErrorWithErr(ctx, "Metrics server failed", err)
			}
		}()
		logger.Info(ctx, "Metrics exposed", "addr", cfg.Metrics.Addr)
	}

	brk := initializeBroker(ctx, cfg)

	st, err := initializeStore(ctx, cfg)
	must(err)

	watcher := initializeWatcher(ctx, cfg, brk)
	go watcher.Start(ctx)

	runner, _, _ := initializeRunner(ctx, cfg, brk, st, watcher, m)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	tick := time.NewTicker(time.Duration(cfg.PollSeconds) * time.Second)
	defer tick.Stop()

	logger.Info(ctx, "Bot started",
		"mode", cfg.Mode,
		"symbols", cfg.Symbols,
		"poll_seconds", cfg.PollSeconds,
	)

	var inflight sync.WaitGroup
	for {
		select {
		case <-tick.C:
			runCycles(ctx, runner, cfg.Symbols, &inflight)
		case <-sigc:
			logger.Info(ctx, "Shutting down, letting in-flight cycles finish")
			// In-flight cycles run on ctx, which is canceled only after
			// they drain, so no order submission is cut off mid-call.
			inflight.Wait()
			cancel()
			_ = trace.Shutdown(context.Background())
			return
		case <-ctx.Done():
			inflight.Wait()
			return
		}
	}
}

// runCycles launches one concurrent cycle per symbol. Cycles for different
// symbols are independent; each acts on its own account snapshot.
func runCycles(ctx context.Context, runner interfaces.CycleRunner, symbols []string, inflight *sync.WaitGroup) {
	for _, sym := range symbols {
		inflight.Add(1)
		go func(symbol string) {
			defer inflight.Done()
			res, err := runner.Run(ctx, symbol)
			if err != nil {
				logger.ErrorWithErr(ctx, "Cycle error", err, "symbol", symbol)
			}
			if res != nil {
				b, _ := json.Marshal(res)
				fmt.Println(string(b))
			}
		}(sym)
	}
}
