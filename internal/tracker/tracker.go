package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned by a Poller when the resource does not exist.
var ErrNotFound = errors.New("resource not found")

// Reason classifies a Failure.
type Reason string

const (
	ReasonStatus   Reason = "status"
	ReasonNotFound Reason = "notfound"
	ReasonTimeout  Reason = "timeout"
)

// Failure is returned by Await when the operation did not reach its
// terminal status. Status holds the last observed status.
type Failure struct {
	ResourceID string
	Reason     Reason
	Status     string
}

func (f *Failure) Error() string {
	switch f.Reason {
	case ReasonStatus:
		return fmt.Sprintf("resource %s entered status %q", f.ResourceID, f.Status)
	case ReasonNotFound:
		return fmt.Sprintf("resource %s disappeared", f.ResourceID)
	case ReasonTimeout:
		return fmt.Sprintf("resource %s timed out in status %q", f.ResourceID, f.Status)
	}
	return fmt.Sprintf("resource %s failed: %s", f.ResourceID, f.Reason)
}

// Poller fetches the current status of a resource. obj is returned to the
// caller of Await when the terminal status is reached.
type Poller interface {
	Poll(ctx context.Context, id string) (status string, obj any, err error)
}

// PollFunc adapts a function to Poller.
type PollFunc func(ctx context.Context, id string) (string, any, error)

// Poll implements Poller.
func (f PollFunc) Poll(ctx context.Context, id string) (string, any, error) {
	return f(ctx, id)
}

// Operation describes one wait. Zero Interval, StartedAt and Deadline are
// filled from the tracker defaults.
type Operation struct {
	ResourceID string
	Initial    string
	Terminal   string
	Transient  []string
	// Delete makes a vanished resource count as success.
	Delete bool
	// RequireTransition makes the terminal status count only after a
	// transient status was observed. Used when Initial equals Terminal.
	RequireTransition bool
	Interval          time.Duration
	StartedAt         time.Time
	Deadline          time.Time
}

func (op Operation) transient(status string) bool {
	return slices.ContainsFunc(op.Transient, func(s string) bool {
		return strings.EqualFold(s, status)
	})
}

func (op Operation) pending(status string) bool {
	return strings.EqualFold(status, op.Initial) || op.transient(status)
}

// Clock abstracts time so tests can drive the polling loop.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Recorder observes tracker outcomes. metrics.Collector implements it.
type Recorder interface {
	OperationDone(outcome string, d time.Duration)
	OperationsInFlight(n int)
}

type nopRecorder struct{}

func (nopRecorder) OperationDone(string, time.Duration) {}
func (nopRecorder) OperationsInFlight(int)              {}

// Defaults used when an Operation leaves them unset.
const (
	DefaultInterval      = 5 * time.Second
	DefaultDeadline      = 10 * time.Minute
	DefaultMaxPollErrors = 3
)

// Tracker polls long-running remote operations until they settle.
//
// Thread-safety: Await may be called from many goroutines; each call owns
// its own polling loop.
type Tracker struct {
	clock         Clock
	interval      time.Duration
	deadline      time.Duration
	maxPollErrors int
	logger        *slog.Logger
	recorder      Recorder

	mu       sync.Mutex
	inflight map[string]Operation
}

// Option configures a Tracker.
type Option func(*Tracker)

func WithClock(c Clock) Option { return func(t *Tracker) { t.clock = c } }

func WithLogger(l *slog.Logger) Option { return func(t *Tracker) { t.logger = l } }

func WithRecorder(r Recorder) Option { return func(t *Tracker) { t.recorder = r } }

// WithDefaults sets the poll interval and deadline used for operations that
// do not carry their own.
func WithDefaults(interval, deadline time.Duration) Option {
	return func(t *Tracker) {
		if interval > 0 {
			t.interval = interval
		}
		if deadline > 0 {
			t.deadline = deadline
		}
	}
}

// WithMaxPollErrors sets how many consecutive poll errors are tolerated.
func WithMaxPollErrors(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.maxPollErrors = n
		}
	}
}

// New creates a Tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		clock:         realClock{},
		interval:      DefaultInterval,
		deadline:      DefaultDeadline,
		maxPollErrors: DefaultMaxPollErrors,
		logger:        slog.Default(),
		recorder:      nopRecorder{},
		inflight:      make(map[string]Operation),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Await polls op.ResourceID every interval until the terminal status is
// seen (returning the polled object), the resource leaves the
// initial/transient set, it disappears, or the deadline passes. Failures
// are *Failure; the remote resource is never touched.
func (t *Tracker) Await(ctx context.Context, p Poller, op Operation) (any, error) {
	op = t.withDefaults(op)
	key := t.register(op)
	defer t.unregister(key)

	obj, err := t.await(ctx, p, op)

	outcome := "ok"
	var failure *Failure
	switch {
	case errors.As(err, &failure):
		outcome = string(failure.Reason)
		t.logger.Warn("operation failed", "resource_id", op.ResourceID, "reason", failure.Reason, "status", failure.Status)
	case err != nil:
		outcome = "error"
	default:
		t.logger.Debug("operation complete", "resource_id", op.ResourceID, "terminal", op.Terminal)
	}
	t.recorder.OperationDone(outcome, t.clock.Now().Sub(op.StartedAt))
	return obj, err
}

func (t *Tracker) await(ctx context.Context, p Poller, op Operation) (any, error) {
	var (
		lastStatus   = op.Initial
		pollErrs     int
		transitioned = !op.RequireTransition
	)
	for {
		if t.clock.Now().After(op.Deadline) {
			return nil, &Failure{ResourceID: op.ResourceID, Reason: ReasonTimeout, Status: lastStatus}
		}

		status, obj, err := p.Poll(ctx, op.ResourceID)
		switch {
		case errors.Is(err, ErrNotFound):
			if op.Delete {
				return nil, nil
			}
			return nil, &Failure{ResourceID: op.ResourceID, Reason: ReasonNotFound}
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			pollErrs++
			if pollErrs >= t.maxPollErrors {
				return nil, fmt.Errorf("poll %s: %d consecutive errors: %w", op.ResourceID, pollErrs, err)
			}
			t.logger.Warn("poll failed, retrying", "resource_id", op.ResourceID, "attempt", pollErrs, "error", err)
		case transitioned && strings.EqualFold(status, op.Terminal):
			return obj, nil
		case op.pending(status):
			pollErrs = 0
			lastStatus = status
			if op.transient(status) {
				transitioned = true
			}
		default:
			return nil, &Failure{ResourceID: op.ResourceID, Reason: ReasonStatus, Status: status}
		}

		if err := t.clock.Sleep(ctx, op.Interval); err != nil {
			return nil, err
		}
	}
}

func (t *Tracker) withDefaults(op Operation) Operation {
	if op.Interval <= 0 {
		op.Interval = t.interval
	}
	if op.StartedAt.IsZero() {
		op.StartedAt = t.clock.Now()
	}
	if op.Deadline.IsZero() {
		op.Deadline = op.StartedAt.Add(t.deadline)
	}
	return op
}

func (t *Tracker) register(op Operation) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := fmt.Sprintf("%s@%d", op.ResourceID, op.StartedAt.UnixNano())
	for _, exists := t.inflight[key]; exists; _, exists = t.inflight[key] {
		key += "'"
	}
	t.inflight[key] = op
	t.recorder.OperationsInFlight(len(t.inflight))
	return key
}

func (t *Tracker) unregister(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inflight, key)
	t.recorder.OperationsInFlight(len(t.inflight))
}

// InFlight returns the operations currently being awaited, oldest first.
func (t *Tracker) InFlight() []Operation {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Operation, 0, len(t.inflight))
	for _, op := range t.inflight {
		out = append(out, op)
	}
	slices.SortFunc(out, func(a, b Operation) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ResourceID, b.ResourceID)
	})
	return out
}
