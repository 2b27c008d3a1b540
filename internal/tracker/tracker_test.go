package tracker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cloudsync/internal/testutil"
)

// scripted returns the statuses in order, repeating the last one.
type scripted struct {
	statuses []string
	errs     []error
	calls    int
}

func (s *scripted) Poll(_ context.Context, id string) (string, any, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", nil, s.errs[i]
	}
	if i >= len(s.statuses) {
		i = len(s.statuses) - 1
	}
	return s.statuses[i], map[string]string{"id": id, "status": s.statuses[i]}, nil
}

func newTestTracker(clock *testutil.FakeClock, opts ...Option) *Tracker {
	base := []Option{
		WithClock(clock),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithDefaults(time.Second, 30*time.Second),
	}
	return New(append(base, opts...)...)
}

func volumeCreate(id string) Operation {
	return Operation{ResourceID: id, Initial: "creating", Terminal: "available", Transient: []string{"downloading"}}
}

func TestAwait_ReachesTerminal(t *testing.T) {
	clock := testutil.NewFakeClock()
	tr := newTestTracker(clock)
	p := &scripted{statuses: []string{"creating", "creating", "available"}}

	obj, err := tr.Await(context.Background(), p, volumeCreate("V1"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"id": "V1", "status": "available"}, obj)
	assert.Equal(t, 3, p.calls)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, clock.Sleeps())
}

func TestAwait_TransientStatusesContinue(t *testing.T) {
	tr := newTestTracker(testutil.NewFakeClock())
	p := &scripted{statuses: []string{"creating", "downloading", "available"}}

	_, err := tr.Await(context.Background(), p, volumeCreate("V1"))
	assert.NoError(t, err)
}

func TestAwait_UnexpectedStatusFails(t *testing.T) {
	tr := newTestTracker(testutil.NewFakeClock())
	p := &scripted{statuses: []string{"creating", "error"}}

	_, err := tr.Await(context.Background(), p, volumeCreate("V1"))
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, ReasonStatus, failure.Reason)
	assert.Equal(t, "error", failure.Status)
	assert.Equal(t, "V1", failure.ResourceID)
}

func TestAwait_NotFound(t *testing.T) {
	tr := newTestTracker(testutil.NewFakeClock())
	gone := &scripted{statuses: []string{""}, errs: []error{ErrNotFound}}

	_, err := tr.Await(context.Background(), gone, volumeCreate("V1"))
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, ReasonNotFound, failure.Reason)

	deleted := &scripted{statuses: []string{"deleting", ""}, errs: []error{nil, ErrNotFound}}
	obj, err := tr.Await(context.Background(), deleted, Operation{
		ResourceID: "V1", Initial: "deleting", Terminal: "deleted", Delete: true,
	})
	assert.NoError(t, err)
	assert.Nil(t, obj)
}

func TestAwait_Timeout(t *testing.T) {
	clock := testutil.NewFakeClock()
	tr := newTestTracker(clock)
	p := &scripted{statuses: []string{"creating"}}
	op := volumeCreate("V1")
	op.Deadline = clock.Now().Add(3 * time.Second)

	_, err := tr.Await(context.Background(), p, op)
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, ReasonTimeout, failure.Reason)
	assert.Equal(t, "creating", failure.Status)
	assert.Equal(t, 4, p.calls)
}

func TestAwait_TerminalMustPrecedeDeadline(t *testing.T) {
	tests := []struct {
		name     string
		statuses []string
		deadline time.Duration
		wantOK   bool
	}{
		{"immediate", []string{"available"}, 0, true},
		{"within deadline", []string{"creating", "creating", "available"}, 2 * time.Second, true},
		{"after deadline", []string{"creating", "creating", "creating", "available"}, 2 * time.Second, false},
		{"never terminal", []string{"creating"}, 5 * time.Second, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := testutil.NewFakeClock()
			tr := newTestTracker(clock)
			op := volumeCreate("V1")
			op.Deadline = clock.Now().Add(tt.deadline)

			_, err := tr.Await(context.Background(), &scripted{statuses: tt.statuses}, op)
			assert.Equal(t, tt.wantOK, err == nil, "err = %v", err)
		})
	}
}

func TestAwait_RequireTransition(t *testing.T) {
	reboot := Operation{ResourceID: "S1", Initial: "ACTIVE", Terminal: "ACTIVE", Transient: []string{"REBOOT"}, RequireTransition: true}

	t.Run("waits for the transient status", func(t *testing.T) {
		tr := newTestTracker(testutil.NewFakeClock())
		p := &scripted{statuses: []string{"ACTIVE", "ACTIVE", "REBOOT", "ACTIVE"}}

		_, err := tr.Await(context.Background(), p, reboot)
		require.NoError(t, err)
		assert.Equal(t, 4, p.calls)
	})

	t.Run("times out when the transition never shows", func(t *testing.T) {
		clock := testutil.NewFakeClock()
		tr := newTestTracker(clock)
		op := reboot
		op.Deadline = clock.Now().Add(2 * time.Second)

		_, err := tr.Await(context.Background(), &scripted{statuses: []string{"ACTIVE"}}, op)
		var failure *Failure
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, ReasonTimeout, failure.Reason)
		assert.Equal(t, "ACTIVE", failure.Status)
	})
}

func TestAwait_ToleratesTransientPollErrors(t *testing.T) {
	tr := newTestTracker(testutil.NewFakeClock())
	flaky := errors.New("connection reset")
	p := &scripted{statuses: []string{"", "", "available"}, errs: []error{flaky, flaky}}

	_, err := tr.Await(context.Background(), p, volumeCreate("V1"))
	assert.NoError(t, err)
}

func TestAwait_TooManyPollErrors(t *testing.T) {
	tr := newTestTracker(testutil.NewFakeClock(), WithMaxPollErrors(2))
	flaky := errors.New("connection reset")
	p := &scripted{statuses: []string{""}, errs: []error{flaky, flaky, flaky}}

	_, err := tr.Await(context.Background(), p, volumeCreate("V1"))
	assert.ErrorIs(t, err, flaky)
	var failure *Failure
	assert.False(t, errors.As(err, &failure))
	assert.Equal(t, 2, p.calls)
}

func TestAwait_ContextCancelled(t *testing.T) {
	tr := newTestTracker(testutil.NewFakeClock())
	ctx, cancel := context.WithCancel(context.Background())
	p := PollFunc(func(context.Context, string) (string, any, error) {
		cancel()
		return "creating", nil, nil
	})

	_, err := tr.Await(ctx, p, volumeCreate("V1"))
	assert.ErrorIs(t, err, context.Canceled)
}

type countingRecorder struct {
	outcomes []string
	peak     int
}

func (r *countingRecorder) OperationDone(outcome string, _ time.Duration) {
	r.outcomes = append(r.outcomes, outcome)
}

func (r *countingRecorder) OperationsInFlight(n int) {
	if n > r.peak {
		r.peak = n
	}
}

func TestAwait_TracksInFlight(t *testing.T) {
	rec := &countingRecorder{}
	tr := newTestTracker(testutil.NewFakeClock(), WithRecorder(rec))

	var seen []Operation
	p := PollFunc(func(context.Context, string) (string, any, error) {
		seen = tr.InFlight()
		return "available", nil, nil
	})
	_, err := tr.Await(context.Background(), p, volumeCreate("V9"))
	require.NoError(t, err)

	require.Len(t, seen, 1)
	assert.Equal(t, "V9", seen[0].ResourceID)
	assert.Equal(t, time.Second, seen[0].Interval)
	assert.Empty(t, tr.InFlight())
	assert.Equal(t, []string{"ok"}, rec.outcomes)
	assert.Equal(t, 1, rec.peak)
}
