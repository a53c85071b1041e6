// Package orderwatch resolves order status asynchronously, decoupled from
// the synchronous decision cycle. The router hands it acknowledged and
// unknown-outcome orders; the watcher polls the broker until each reaches a
// terminal status and then notifies registered callbacks.
package orderwatch

import (
	"context"
	"time"

	"tradepulse/internal/interfaces"
	"tradepulse/internal/logger"
	"tradepulse/internal/types"
)

type Watcher struct {
	brk      interfaces.Broker
	journal  Journal
	interval time.Duration

	callbacks []func(types.BrokerOrder)
}

func NewWatcher(brk interfaces.Broker, journal Journal, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Watcher{brk: brk, journal: journal, interval: interval}
}

// Track registers an order for background status resolution. Satisfies the
// execution router's StatusTracker.
func (w *Watcher) Track(ctx context.Context, clientOrderID, symbol string) error {
	return w.journal.Add(ctx, Pending{
		ClientOrderID: clientOrderID,
		Symbol:        symbol,
		TrackedAt:     time.Now(),
	})
}

// OnUpdate registers a callback invoked when a tracked order reaches a
// terminal status. Register callbacks before Start; registration is not
// synchronized with the poll loop.
func (w *Watcher) OnUpdate(fn func(types.BrokerOrder)) {
	w.callbacks = append(w.callbacks, fn)
}

// Start runs the poll loop until ctx is canceled.
func (w *Watcher) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logger.Info(ctx, "Order watcher started", "interval", w.interval.String())
	for {
		select {
		case <-ticker.C:
			w.poll(ctx)
		case <-ctx.Done():
			logger.Info(ctx, "Order watcher stopped")
			return
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	pending, err := w.journal.List(ctx)
	if err != nil {
		logger.Warn(ctx, "Failed to list pending orders", "error", err)
		return
	}

	for _, p := range pending {
		ord, err := w.brk.GetOrder(ctx, p.ClientOrderID)
		if err != nil {
			logger.Debug(ctx, "Pending order not resolvable yet",
				"client_order_id", p.ClientOrderID,
				"error", err,
			)
			continue
		}
		if !ord.Terminal() {
			continue
		}

		if err := w.journal.Remove(ctx, p.ClientOrderID); err != nil {
			logger.Warn(ctx, "Failed to remove resolved order from journal",
				"client_order_id", p.ClientOrderID,
				"error", err,
			)
		}
		logger.Info(ctx, "Tracked order resolved",
			"client_order_id", p.ClientOrderID,
			"symbol", ord.Symbol,
			"status", ord.Status,
			"filled_qty", ord.FilledQty.String(),
		)
		for _, fn := range w.callbacks {
			fn(ord)
		}
	}
}
