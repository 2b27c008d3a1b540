package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/cloudsync/internal/endpoint"
	"github.com/roach88/cloudsync/internal/event"
	"github.com/roach88/cloudsync/internal/filter"
	"github.com/roach88/cloudsync/internal/reconciler"
	"github.com/roach88/cloudsync/internal/resource"
	"github.com/roach88/cloudsync/internal/store"
	"github.com/roach88/cloudsync/internal/testutil"
)

// maxDrain bounds the deferred events processed after one step.
const maxDrain = 64

// Harness executes one scenario against two fake clouds and a fresh store.
type Harness struct {
	store  *store.Store
	clouds map[resource.Side]*testutil.FakeCloud
	queue  *event.Queue
	rec    *reconciler.Reconciler
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. Fake clouds hand out
// ids "L1", "L2", ... and "R1", "R2", ..., continuing after seeded ids of
// the same form, so results are reproducible.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with reconciler logs sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h, err := newHarness(st, scenario.Filter, logger)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := h.seed(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}
	for i, step := range scenario.Events {
		if err := h.step(ctx, step); err != nil {
			return nil, fmt.Errorf("events[%d]: %w", i, err)
		}
	}

	result := NewResult()
	if err := h.collect(ctx, result); err != nil {
		return nil, err
	}
	for i, a := range scenario.Assertions {
		if err := evaluate(result, a); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return result, nil
}

func newHarness(st *store.Store, fs *FilterSpec, logger *slog.Logger) (*Harness, error) {
	cfg := filter.Config{
		NetworkTypes:  []string{"vlan", "flat"},
		NameAllowlist: []string{"*"},
	}
	if fs != nil {
		cfg = filter.Config{
			NetworkTypes:    fs.NetworkTypes,
			PhysicalNetwork: fs.PhysicalNetwork,
			NameAllowlist:   fs.NameAllowlist,
		}
	}
	f, err := filter.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		store: st,
		clouds: map[resource.Side]*testutil.FakeCloud{
			resource.Local:  testutil.NewFakeCloud("L"),
			resource.Remote: testutil.NewFakeCloud("R"),
		},
		queue:  event.NewQueue(maxDrain, event.WithIDGenerator(event.NewSequenceGenerator("evt"))),
		logger: logger,
	}
	local := endpoint.New(resource.Local, h.clouds[resource.Local], f, st, endpoint.WithLogger(logger))
	remote := endpoint.New(resource.Remote, h.clouds[resource.Remote], f, st, endpoint.WithLogger(logger))
	h.rec = reconciler.New(st, local, remote, f, h.queue,
		reconciler.WithLogger(logger),
		reconciler.WithSleep(func(context.Context, time.Duration) error { return nil }),
	)
	return h, nil
}

func (h *Harness) seed(ctx context.Context, setup Setup) error {
	for side, objs := range map[resource.Side][]ObjectSpec{resource.Local: setup.Local, resource.Remote: setup.Remote} {
		for _, o := range objs {
			obj, err := buildObject(o.Kind, o.ID, o.Attrs)
			if err != nil {
				return err
			}
			h.clouds[side].Seed(obj)
		}
	}
	for _, ms := range setup.Mappings {
		m, err := buildMapping(ms)
		if err != nil {
			return err
		}
		if err := h.store.Insert(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (h *Harness) step(ctx context.Context, step EventStep) error {
	e, err := h.buildEvent(ctx, step)
	if err != nil {
		return err
	}
	if err := h.rec.Process(ctx, e); err != nil {
		return err
	}
	for i := 0; i < maxDrain; i++ {
		next, ok := h.queue.TryDequeue()
		if !ok {
			return nil
		}
		if err := h.rec.Process(ctx, next); err != nil {
			return err
		}
	}
	return fmt.Errorf("queue not drained after %d events", maxDrain)
}

func (h *Harness) buildEvent(ctx context.Context, step EventStep) (event.Event, error) {
	origin, err := resource.ParseSide(step.Origin)
	if err != nil {
		return event.Event{}, err
	}
	if step.Type == StepFullSync {
		return event.FullSync(origin), nil
	}
	kind, err := resource.ParseKind(step.Kind)
	if err != nil {
		return event.Event{}, err
	}
	if step.Type == StepDelete {
		return event.Delete(origin, kind, step.ID), nil
	}

	var obj resource.Object
	if step.Attrs != nil {
		if obj, err = buildObject(step.Kind, step.ID, step.Attrs); err != nil {
			return event.Event{}, err
		}
	} else if obj, err = h.clouds[origin].Get(ctx, kind, step.ID); err != nil {
		return event.Event{}, err
	}
	if step.Type == StepCreate {
		return event.Create(origin, obj), nil
	}
	return event.Update(origin, obj), nil
}

func (h *Harness) collect(ctx context.Context, result *Result) error {
	for _, side := range []resource.Side{resource.Local, resource.Remote} {
		cloud := h.clouds[side]
		for _, c := range cloud.Calls() {
			result.Calls = append(result.Calls, CallRecord{Side: side, Op: c.Op, Kind: c.Kind, ID: c.ID, Attrs: c.Attrs})
		}
		for _, kind := range resource.Kinds {
			objs, err := cloud.List(ctx, kind)
			if err != nil {
				return err
			}
			result.Objects[side] = append(result.Objects[side], objs...)
		}
	}
	mappings, err := h.store.Dump(ctx)
	if err != nil {
		return err
	}
	result.Mappings = append(result.Mappings, mappings...)
	return nil
}

func buildObject(kindName, id string, raw map[string]any) (resource.Object, error) {
	kind, err := resource.ParseKind(kindName)
	if err != nil {
		return resource.Object{}, err
	}
	attrs, err := resource.AttrsFromMap(raw)
	if err != nil {
		return resource.Object{}, fmt.Errorf("%s %s: %w", kind, id, err)
	}
	return resource.NewObject(kind, id, attrs), nil
}

func buildMapping(ms MappingSpec) (resource.Mapping, error) {
	kind, err := resource.ParseKind(ms.Kind)
	if err != nil {
		return resource.Mapping{}, err
	}
	id, err := resource.MappingID(kind, ms.SyncKey)
	if err != nil {
		return resource.Mapping{}, err
	}
	m := resource.Mapping{
		ID:       id,
		Kind:     kind,
		SyncKey:  ms.SyncKey,
		LocalID:  ms.LocalID,
		RemoteID: ms.RemoteID,
		Status:   resource.Status(ms.Status),
	}
	if m.Status == "" {
		m.Status = resource.StatusCreating
		if m.LocalID != "" && m.RemoteID != "" {
			m.Status = resource.StatusActive
		}
	}
	if ms.Snapshot != nil {
		attrs, err := resource.AttrsFromMap(ms.Snapshot)
		if err != nil {
			return resource.Mapping{}, err
		}
		data, err := resource.MarshalCanonical(attrs)
		if err != nil {
			return resource.Mapping{}, err
		}
		m.UpdateData = string(data)
	}
	return m, m.Validate()
}
