// Package metrics exposes Prometheus instrumentation for the decision cycle.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	CyclesTotal     *prometheus.CounterVec
	CycleDuration   prometheus.Histogram
	OrdersSubmitted *prometheus.CounterVec
	OrderRetries    prometheus.Counter
	SamplesRecorded prometheus.Counter
	StoreFailures   prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradepulse",
			Name:      "cycles_total",
			Help:      "Decision cycles by terminal status.",
		}, []string{"status"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tradepulse",
			Name:      "cycle_duration_seconds",
			Help:      "Wall-clock duration of one decision cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		OrdersSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradepulse",
			Name:      "orders_submitted_total",
			Help:      "Order submissions by result.",
		}, []string{"result"}),
		OrderRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tradepulse",
			Name:      "order_retries_total",
			Help:      "Order submission retries after transient failures.",
		}),
		SamplesRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tradepulse",
			Name:      "learning_samples_total",
			Help:      "Learning samples recorded.",
		}),
		StoreFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tradepulse",
			Name:      "store_failures_total",
			Help:      "Persistence failures that degraded gracefully.",
		}),
	}
}

// Serve exposes /metrics on addr until ctx is canceled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
