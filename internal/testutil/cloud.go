package testutil

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/roach88/cloudsync/internal/endpoint"
	"github.com/roach88/cloudsync/internal/resource"
)

// Call records one mutating request made against a FakeCloud.
type Call struct {
	Op    string // "create" | "update" | "delete"
	Kind  resource.Kind
	ID    string
	Attrs resource.Attrs
}

// FakeCloud is an in-memory endpoint.Client with deterministic ids.
//
// Objects created through the client get ids prefix+"1", prefix+"2", ...
// (e.g. "R1" for the first REMOTE create). Seed inserts objects without
// recording a call, to build pre-state.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeCloud struct {
	mu      sync.Mutex
	prefix  string
	next    int
	objects map[resource.Kind][]resource.Object
	calls   []Call
	faults  map[string]error
}

var _ endpoint.Client = (*FakeCloud)(nil)

// NewFakeCloud creates an empty cloud whose generated ids start with prefix.
func NewFakeCloud(prefix string) *FakeCloud {
	return &FakeCloud{
		prefix:  prefix,
		objects: make(map[resource.Kind][]resource.Object),
		faults:  make(map[string]error),
	}
}

// Seed stores obj as-is. The id is taken from obj.ID. Seeding a generated
// style id such as "R3" moves the id counter past it.
func (c *FakeCloud) Seed(obj resource.Object) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, err := strconv.Atoi(strings.TrimPrefix(obj.ID, c.prefix)); err == nil && strings.HasPrefix(obj.ID, c.prefix) && n > c.next {
		c.next = n
	}
	attrs := obj.Attrs.Clone()
	attrs["id"] = resource.String(obj.ID)
	c.put(resource.Object{Kind: obj.Kind, ID: obj.ID, Attrs: attrs})
}

// Fail makes every subsequent op ("list", "get", "create", "update",
// "delete") on kind return err until Heal is called.
func (c *FakeCloud) Fail(op string, kind resource.Kind, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faults[op+":"+string(kind)] = err
}

// Heal clears all injected faults.
func (c *FakeCloud) Heal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faults = make(map[string]error)
}

// Calls returns the recorded mutating calls.
func (c *FakeCloud) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.calls)
}

// ResetCalls forgets recorded calls.
func (c *FakeCloud) ResetCalls() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
}

// Object returns the stored object, if present.
func (c *FakeCloud) Object(kind resource.Kind, id string) (resource.Object, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.index(kind, id)
	if i < 0 {
		return resource.Object{}, false
	}
	return cloneObject(c.objects[kind][i]), true
}

// Count returns the number of stored objects of kind.
func (c *FakeCloud) Count(kind resource.Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.objects[kind])
}

// Remove deletes an object without recording a call, simulating an
// out-of-band deletion.
func (c *FakeCloud) Remove(kind resource.Kind, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.index(kind, id); i >= 0 {
		c.objects[kind] = slices.Delete(c.objects[kind], i, i+1)
	}
}

// Set overwrites one attribute without recording a call, simulating an
// out-of-band edit.
func (c *FakeCloud) Set(kind resource.Kind, id, key string, v resource.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.index(kind, id); i >= 0 {
		c.objects[kind][i].Attrs[key] = v
	}
}

// List implements endpoint.Client.
func (c *FakeCloud) List(_ context.Context, kind resource.Kind) ([]resource.Object, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fault("list", kind); err != nil {
		return nil, err
	}
	out := make([]resource.Object, 0, len(c.objects[kind]))
	for _, obj := range c.objects[kind] {
		out = append(out, cloneObject(obj))
	}
	return out, nil
}

// Get implements endpoint.Client.
func (c *FakeCloud) Get(_ context.Context, kind resource.Kind, id string) (resource.Object, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fault("get", kind); err != nil {
		return resource.Object{}, err
	}
	i := c.index(kind, id)
	if i < 0 {
		return resource.Object{}, fmt.Errorf("%s %s: %w", kind, id, endpoint.ErrNotFound)
	}
	return cloneObject(c.objects[kind][i]), nil
}

// Create implements endpoint.Client.
func (c *FakeCloud) Create(_ context.Context, kind resource.Kind, attrs resource.Attrs) (resource.Object, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, Call{Op: "create", Kind: kind, Attrs: attrs.Clone()})
	if err := c.fault("create", kind); err != nil {
		return resource.Object{}, err
	}
	c.next++
	id := fmt.Sprintf("%s%d", c.prefix, c.next)
	stored := attrs.Clone()
	stored["id"] = resource.String(id)
	obj := resource.Object{Kind: kind, ID: id, Attrs: stored}
	c.put(obj)
	c.calls[len(c.calls)-1].ID = id
	return cloneObject(obj), nil
}

// Update implements endpoint.Client.
func (c *FakeCloud) Update(_ context.Context, kind resource.Kind, id string, attrs resource.Attrs) (resource.Object, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, Call{Op: "update", Kind: kind, ID: id, Attrs: attrs.Clone()})
	if err := c.fault("update", kind); err != nil {
		return resource.Object{}, err
	}
	i := c.index(kind, id)
	if i < 0 {
		return resource.Object{}, fmt.Errorf("%s %s: %w", kind, id, endpoint.ErrNotFound)
	}
	for k, v := range attrs {
		c.objects[kind][i].Attrs[k] = v
	}
	return cloneObject(c.objects[kind][i]), nil
}

// Delete implements endpoint.Client.
func (c *FakeCloud) Delete(_ context.Context, kind resource.Kind, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, Call{Op: "delete", Kind: kind, ID: id})
	if err := c.fault("delete", kind); err != nil {
		return err
	}
	i := c.index(kind, id)
	if i < 0 {
		return fmt.Errorf("%s %s: %w", kind, id, endpoint.ErrNotFound)
	}
	c.objects[kind] = slices.Delete(c.objects[kind], i, i+1)
	return nil
}

func (c *FakeCloud) put(obj resource.Object) {
	if i := c.index(obj.Kind, obj.ID); i >= 0 {
		c.objects[obj.Kind][i] = obj
		return
	}
	c.objects[obj.Kind] = append(c.objects[obj.Kind], obj)
}

func (c *FakeCloud) index(kind resource.Kind, id string) int {
	return slices.IndexFunc(c.objects[kind], func(o resource.Object) bool { return o.ID == id })
}

func (c *FakeCloud) fault(op string, kind resource.Kind) error {
	return c.faults[op+":"+string(kind)]
}

func cloneObject(o resource.Object) resource.Object {
	return resource.Object{Kind: o.Kind, ID: o.ID, Attrs: o.Attrs.Clone()}
}
