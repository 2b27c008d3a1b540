package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/roach88/cloudsync/internal/endpoint"
	"github.com/roach88/cloudsync/internal/event"
	"github.com/roach88/cloudsync/internal/resource"
	"github.com/roach88/cloudsync/internal/store"
)

// Outcome labels how an event was handled; it is recorded per event.
type Outcome string

const (
	OutcomeApplied  Outcome = "applied"
	OutcomeNoop     Outcome = "noop"
	OutcomeIgnored  Outcome = "ignored"
	OutcomeDeferred Outcome = "deferred"
	OutcomeDropped  Outcome = "dropped"
	OutcomeFailed   Outcome = "failed"
)

// Recorder observes processed events. metrics.Collector implements it.
type Recorder interface {
	EventProcessed(e event.Event, outcome Outcome, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) EventProcessed(event.Event, Outcome, time.Duration) {}

// Predicate decides mappability. *filter.Filter implements it.
type Predicate interface {
	Mappable(obj resource.Object) bool
}

// Defaults for port mirroring and deferral.
const (
	DefaultDeviceIDPrefix = "cloudsync:"
	DefaultDeviceOwner    = "network:cloudsync"
	DefaultRetryLimit     = 5
	DefaultRetryBackoff   = 200 * time.Millisecond
)

var (
	// errDeferred marks a child CREATE whose parent mapping is not ACTIVE yet.
	errDeferred = errors.New("parent mapping not active")
	// errNoParent marks a child whose network has no mapping at all.
	errNoParent = errors.New("parent network not mapped")
)

// Reconciler is the single consumer of the event queue. It owns every write
// to the mapping store and every outbound mutation of both clouds.
//
// Thread-safety model:
//   - Enqueue: safe from any goroutine (delegates to the queue)
//   - Run, Process, FullSync: must be called from exactly one goroutine
type Reconciler struct {
	store     *store.Store
	sides     map[resource.Side]*endpoint.Adapter
	predicate Predicate
	queue     *event.Queue
	logger    *slog.Logger
	recorder  Recorder

	deviceIDPrefix string
	deviceOwner    string
	retryLimit     int
	retryBackoff   time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// WithRecorder sets the per-event observer.
func WithRecorder(rec Recorder) Option {
	return func(r *Reconciler) { r.recorder = rec }
}

// WithPortPolicy overrides the LOCAL device_id prefix and the REMOTE
// device_owner sentinel applied to mirrored ports.
func WithPortPolicy(deviceIDPrefix, deviceOwner string) Option {
	return func(r *Reconciler) {
		r.deviceIDPrefix = deviceIDPrefix
		r.deviceOwner = deviceOwner
	}
}

// WithDeferral sets how often and how patiently a child CREATE waiting for
// its parent is re-queued before it is dropped.
func WithDeferral(limit int, initial time.Duration) Option {
	return func(r *Reconciler) {
		r.retryLimit = limit
		r.retryBackoff = initial
	}
}

// WithSleep replaces the backoff sleep (tests use an instant one).
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Reconciler) { r.sleep = fn }
}

// New creates a Reconciler over the two adapters.
func New(st *store.Store, local, remote *endpoint.Adapter, predicate Predicate, queue *event.Queue, opts ...Option) *Reconciler {
	r := &Reconciler{
		store: st,
		sides: map[resource.Side]*endpoint.Adapter{
			resource.Local:  local,
			resource.Remote: remote,
		},
		predicate:      predicate,
		queue:          queue,
		logger:         slog.Default(),
		recorder:       nopRecorder{},
		deviceIDPrefix: DefaultDeviceIDPrefix,
		deviceOwner:    DefaultDeviceOwner,
		retryLimit:     DefaultRetryLimit,
		retryBackoff:   DefaultRetryBackoff,
		sleep:          sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enqueue submits an event. Safe from any goroutine.
func (r *Reconciler) Enqueue(e event.Event) bool {
	return r.queue.Enqueue(e)
}

// Run drains the queue until ctx is cancelled or the queue is closed and
// empty. Event failures are logged and do not stop the loop; only an
// unreachable mapping store is returned.
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Info("reconciler starting", "queue_capacity", r.queue.Capacity())
	for {
		if e, ok := r.queue.TryDequeue(); ok {
			if err := r.Process(ctx, e); err != nil {
				return err
			}
			continue
		}
		if r.queue.Drained() {
			r.logger.Info("reconciler stopped, queue closed")
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.queue.Wait():
		}
	}
}

// Process handles one event. It returns an error only when the mapping
// store is unreachable.
func (r *Reconciler) Process(ctx context.Context, e event.Event) error {
	start := time.Now()
	outcome, err := r.dispatch(ctx, e)

	switch {
	case errors.Is(err, errDeferred):
		outcome = r.defer_(ctx, e)
		err = nil
	case err != nil:
		outcome = OutcomeFailed
		r.logger.Error("event failed", "event", e.String(), "seq", e.Seq, "error", err)
	}
	r.recorder.EventProcessed(e, outcome, time.Since(start))
	r.logger.Debug("event processed", "event", e.String(), "seq", e.Seq, "outcome", outcome)

	if err != nil && errors.Is(err, errStore) {
		if pingErr := r.store.DB().PingContext(ctx); pingErr != nil {
			return fmt.Errorf("mapping store unreachable: %w", pingErr)
		}
	}
	return nil
}

func (r *Reconciler) dispatch(ctx context.Context, e event.Event) (Outcome, error) {
	switch e.Type {
	case event.TypeCreate:
		return r.handleCreate(ctx, e.Origin, e.Object, true)
	case event.TypeUpdate:
		return r.handleUpdate(ctx, e.Origin, e.Object)
	case event.TypeDelete:
		return r.handleDelete(ctx, e.Origin, e.Kind, e.ObjectID)
	case event.TypeFullSync:
		if err := r.FullSync(ctx); err != nil {
			return OutcomeFailed, err
		}
		return OutcomeApplied, nil
	}
	return OutcomeIgnored, fmt.Errorf("unknown event type %v", e.Type)
}

// defer_ re-queues e after an exponential backoff, or drops it once the
// retry limit is reached.
func (r *Reconciler) defer_(ctx context.Context, e event.Event) Outcome {
	if e.Attempts >= r.retryLimit {
		r.logger.Warn("dropping event, parent never became active", "event", e.String(), "attempts", e.Attempts)
		return OutcomeDropped
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.retryBackoff
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	delay := b.NextBackOff()
	for i := 0; i < e.Attempts; i++ {
		delay = b.NextBackOff()
	}

	if err := r.sleep(ctx, delay); err != nil {
		return OutcomeDropped
	}
	e.Attempts++
	if !r.queue.Enqueue(e) {
		r.logger.Warn("could not re-queue deferred event", "event", e.String())
		return OutcomeDropped
	}
	r.logger.Debug("deferred event", "event", e.String(), "attempt", e.Attempts, "delay", delay)
	return OutcomeDeferred
}

// errStore wraps mapping store failures so Process can check the database.
var errStore = errors.New("mapping store")

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", errStore, op, err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
