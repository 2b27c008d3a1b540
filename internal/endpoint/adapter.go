package endpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/cloudsync/internal/event"
	"github.com/roach88/cloudsync/internal/resource"
)

var (
	// ErrNotFound is returned by a Client when the object does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrTransient marks failures the next full sync should retry: call
	// timeouts, connection loss, a busy backend.
	ErrTransient = errors.New("transient endpoint failure")
	// ErrUntranslatable is returned by Create when a cross-cloud reference
	// has no mapping yet or a port keeps no IPv4 fixed ip.
	ErrUntranslatable = errors.New("reference cannot be translated")
)

// Client is the narrow per-cloud CRUD surface for networks, subnets and ports.
type Client interface {
	List(ctx context.Context, kind resource.Kind) ([]resource.Object, error)
	Get(ctx context.Context, kind resource.Kind, id string) (resource.Object, error)
	Create(ctx context.Context, kind resource.Kind, attrs resource.Attrs) (resource.Object, error)
	Update(ctx context.Context, kind resource.Kind, id string, attrs resource.Attrs) (resource.Object, error)
	Delete(ctx context.Context, kind resource.Kind, id string) error
}

// Translator maps ids between the two clouds. *store.Store implements it.
type Translator interface {
	Translate(ctx context.Context, kind resource.Kind, from resource.Side, id string) (string, error)
}

// Predicate decides mappability. *filter.Filter implements it.
type Predicate interface {
	Mappable(obj resource.Object) bool
}

// Bus delivers notifications for one cloud. Run blocks until ctx is done,
// calling connected after every successful (re)subscription.
type Bus interface {
	Run(ctx context.Context, deliver func(event.Envelope), connected func()) error
}

// DefaultCallTimeout bounds each outbound call when none is configured.
const DefaultCallTimeout = 60 * time.Second

// Adapter gives the reconciler uniform access to one side.
type Adapter struct {
	side        resource.Side
	client      Client
	predicate   Predicate
	translator  Translator
	callTimeout time.Duration
	logger      *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithCallTimeout sets the per-call timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.callTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = l
	}
}

// New creates the adapter for side. translator resolves ids of the opposite side.
func New(side resource.Side, client Client, predicate Predicate, translator Translator, opts ...Option) *Adapter {
	a := &Adapter{
		side:        side,
		client:      client,
		predicate:   predicate,
		translator:  translator,
		callTimeout: DefaultCallTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("side", side)
	return a
}

// Side returns the cloud this adapter talks to.
func (a *Adapter) Side() resource.Side {
	return a.side
}

// List returns all mappable objects of kind.
func (a *Adapter) List(ctx context.Context, kind resource.Kind) ([]resource.Object, error) {
	var all []resource.Object
	err := a.call(ctx, func(ctx context.Context) error {
		var err error
		all, err = a.client.List(ctx, kind)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s list %s: %w", a.side, kind, err)
	}

	out := all[:0]
	for _, obj := range all {
		if a.predicate == nil || a.predicate.Mappable(obj) {
			out = append(out, obj)
		}
	}
	return out, nil
}

// Get fetches one object. It returns an error wrapping ErrNotFound when absent.
func (a *Adapter) Get(ctx context.Context, kind resource.Kind, id string) (resource.Object, error) {
	var obj resource.Object
	err := a.call(ctx, func(ctx context.Context) error {
		var err error
		obj, err = a.client.Get(ctx, kind, id)
		return err
	})
	if err != nil {
		return resource.Object{}, fmt.Errorf("%s get %s %s: %w", a.side, kind, id, err)
	}
	return obj, nil
}

// Create mirrors an object from the opposite side. attrs carry the opposite
// side's ids; only CREATE_FIELDS are sent, and network_id and fixed ip
// subnet ids are translated into this side's namespace first.
func (a *Adapter) Create(ctx context.Context, kind resource.Kind, attrs resource.Attrs) (resource.Object, error) {
	body := resource.Project(attrs, resource.FieldsFor(kind).Create)

	if kind == resource.KindSubnet || kind == resource.KindPort {
		netID, err := a.translate(ctx, resource.KindNetwork, attrs.Str("network_id"))
		if err != nil {
			return resource.Object{}, err
		}
		body["network_id"] = resource.String(netID)
	}
	if kind == resource.KindPort {
		ips, err := a.translateFixedIPs(ctx, resource.NewObject(kind, "", attrs).FixedIPs())
		if err != nil {
			return resource.Object{}, err
		}
		body["fixed_ips"] = resource.FixedIPsValue(ips)
	}

	var obj resource.Object
	err := a.call(ctx, func(ctx context.Context) error {
		var err error
		obj, err = a.client.Create(ctx, kind, body)
		return err
	})
	if err != nil {
		return resource.Object{}, fmt.Errorf("%s create %s: %w", a.side, kind, err)
	}
	a.logger.Info("created object", "kind", kind, "id", obj.ID)
	return obj, nil
}

// Update sends the UPDATE_FIELDS present in attrs. It is a no-op, returning
// false, when none remain.
func (a *Adapter) Update(ctx context.Context, kind resource.Kind, id string, attrs resource.Attrs) (bool, error) {
	body := resource.Project(attrs, resource.FieldsFor(kind).Update)
	if len(body) == 0 {
		return false, nil
	}
	err := a.call(ctx, func(ctx context.Context) error {
		_, err := a.client.Update(ctx, kind, id, body)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("%s update %s %s: %w", a.side, kind, id, err)
	}
	a.logger.Info("updated object", "kind", kind, "id", id, "fields", body.SortedKeys())
	return true, nil
}

// Delete removes an object. An object that is already gone counts as deleted.
func (a *Adapter) Delete(ctx context.Context, kind resource.Kind, id string) error {
	err := a.call(ctx, func(ctx context.Context) error {
		return a.client.Delete(ctx, kind, id)
	})
	if errors.Is(err, ErrNotFound) {
		a.logger.Debug("object already deleted", "kind", kind, "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s delete %s %s: %w", a.side, kind, id, err)
	}
	a.logger.Info("deleted object", "kind", kind, "id", id)
	return nil
}

// Subscribe runs bus until ctx is done, decoding deliveries into events for
// this side and enqueuing a FULL_SYNC after every (re)connect.
func (a *Adapter) Subscribe(ctx context.Context, bus Bus, enqueue func(event.Event) bool) error {
	deliver := func(env event.Envelope) {
		e, err := event.Decode(a.side, env)
		if errors.Is(err, event.ErrUnhandled) {
			a.logger.Debug("ignoring notification", "event_type", env.EventType)
			return
		}
		if err != nil {
			a.logger.Warn("dropping malformed notification", "event_type", env.EventType, "error", err)
			return
		}
		if !enqueue(e) {
			a.logger.Warn("event queue rejected event", "event", e.String())
		}
	}
	connected := func() {
		a.logger.Info("bus connected, scheduling full sync")
		enqueue(event.FullSync(a.side))
	}
	return bus.Run(ctx, deliver, connected)
}

func (a *Adapter) translate(ctx context.Context, kind resource.Kind, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: empty %s id", ErrUntranslatable, kind)
	}
	out, err := a.translator.Translate(ctx, kind, a.side.Opposite(), id)
	if err != nil {
		return "", fmt.Errorf("%w: %s %s %s: %v", ErrUntranslatable, a.side.Opposite(), kind, id, err)
	}
	return out, nil
}

// translateFixedIPs keeps IPv4 entries and rewrites their subnet ids.
func (a *Adapter) translateFixedIPs(ctx context.Context, ips []resource.FixedIP) ([]resource.FixedIP, error) {
	var out []resource.FixedIP
	for _, ip := range ips {
		if !ip.IsIPv4() {
			continue
		}
		subnetID, err := a.translate(ctx, resource.KindSubnet, ip.SubnetID)
		if err != nil {
			return nil, err
		}
		out = append(out, resource.FixedIP{SubnetID: subnetID, IPAddress: ip.IPAddress})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no IPv4 fixed ip", ErrUntranslatable)
	}
	return out, nil
}

// call runs fn under the per-call timeout. A timeout is reported as ErrTransient.
func (a *Adapter) call(ctx context.Context, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	err := fn(callCtx)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: call timed out after %s: %v", ErrTransient, a.callTimeout, err)
	}
	return err
}
