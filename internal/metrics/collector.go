package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/cloudsync/internal/event"
	"github.com/roach88/cloudsync/internal/flavorsync"
	"github.com/roach88/cloudsync/internal/reconciler"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "cloudsync"

// Collector owns a private registry and implements the recorder interfaces
// of the reconciler, the tracker and the flavor syncer.
//
// Thread-safety: all methods are safe for concurrent use.
type Collector struct {
	registry *prometheus.Registry
	server   *http.Server
	logger   *slog.Logger

	eventsTotal    *prometheus.CounterVec
	eventDuration  *prometheus.HistogramVec
	eventsDropped  *prometheus.CounterVec
	operationsDone *prometheus.CounterVec
	operationTime  *prometheus.HistogramVec
	inFlight       prometheus.Gauge
	flavorsTotal   *prometheus.CounterVec
	lastFlavorSync prometheus.Gauge
}

// NewCollector creates a collector with every metric registered.
func NewCollector(namespace string, logger *slog.Logger) (*Collector, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Collector{
		registry: prometheus.NewRegistry(),
		logger:   logger,
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_processed_total",
			Help:      "Events processed by the reconciler, by origin, type and outcome.",
		}, []string{"origin", "type", "outcome"}),
		eventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_duration_seconds",
			Help:      "Time spent handling one event.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"type"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_events_dropped_total",
			Help:      "Events discarded by the queue, by reason.",
		}, []string{"reason"}),
		operationsDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Long-running remote operations, by outcome.",
		}, []string{"outcome"}),
		operationTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Time from operation start to its outcome.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"outcome"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "operations_in_flight",
			Help:      "Remote operations currently being awaited.",
		}),
		flavorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flavors_synced_total",
			Help:      "Flavors handled by flavor sync, by result.",
		}, []string{"result"}),
		lastFlavorSync: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flavor_sync_last_run_timestamp_seconds",
			Help:      "Unix time of the last completed flavor sync.",
		}),
	}

	for _, m := range []prometheus.Collector{
		c.eventsTotal, c.eventDuration, c.eventsDropped,
		c.operationsDone, c.operationTime, c.inFlight,
		c.flavorsTotal, c.lastFlavorSync,
	} {
		if err := c.registry.Register(m); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return c, nil
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// WatchQueue registers a gauge reporting the queue depth at scrape time.
func (c *Collector) WatchQueue(q *event.Queue, namespace string) error {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return c.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Events waiting in the reconciler queue.",
	}, func() float64 { return float64(q.Len()) }))
}

// EventProcessed implements reconciler.Recorder.
func (c *Collector) EventProcessed(e event.Event, outcome reconciler.Outcome, d time.Duration) {
	c.eventsTotal.WithLabelValues(string(e.Origin), e.Type.String(), string(outcome)).Inc()
	c.eventDuration.WithLabelValues(e.Type.String()).Observe(d.Seconds())
}

// EventDropped is an event.WithDropHook callback.
func (c *Collector) EventDropped(_ event.Event, reason event.DropReason) {
	c.eventsDropped.WithLabelValues(string(reason)).Inc()
}

// OperationDone implements tracker.Recorder.
func (c *Collector) OperationDone(outcome string, d time.Duration) {
	c.operationsDone.WithLabelValues(outcome).Inc()
	c.operationTime.WithLabelValues(outcome).Observe(d.Seconds())
}

// OperationsInFlight implements tracker.Recorder.
func (c *Collector) OperationsInFlight(n int) {
	c.inFlight.Set(float64(n))
}

// FlavorsSynced implements flavorsync.Recorder.
func (c *Collector) FlavorsSynced(r flavorsync.Report) {
	c.flavorsTotal.WithLabelValues("imported").Add(float64(len(r.Imported)))
	c.flavorsTotal.WithLabelValues("updated").Add(float64(len(r.Updated)))
	c.flavorsTotal.WithLabelValues("unchanged").Add(float64(len(r.Unchanged)))
	c.flavorsTotal.WithLabelValues("skipped").Add(float64(len(r.Skipped)))
	c.lastFlavorSync.SetToCurrentTime()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// Serve listens on addr until ctx is done, then shuts the server down.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	c.server = &http.Server{
		Addr:              addr,
		Handler:           c.Handler(),
		ReadHeaderTimeout: 30 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		errc <- c.server.ListenAndServe()
	}()
	c.logger.Info("metrics listening", "addr", addr)

	select {
	case err := <-errc:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics shutdown: %w", err)
		}
		return nil
	}
}
