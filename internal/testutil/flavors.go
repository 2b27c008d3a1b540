package testutil

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/cloudsync/internal/flavorsync"
)

// FakeFlavors is an in-memory flavorsync.Source and flavorsync.Sink.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeFlavors struct {
	mu      sync.Mutex
	flavors map[string]flavorsync.Flavor
	writes  []string
}

var (
	_ flavorsync.Source = (*FakeFlavors)(nil)
	_ flavorsync.Sink   = (*FakeFlavors)(nil)
)

// NewFakeFlavors creates a store holding flavors.
func NewFakeFlavors(flavors ...flavorsync.Flavor) *FakeFlavors {
	f := &FakeFlavors{flavors: make(map[string]flavorsync.Flavor)}
	for _, fl := range flavors {
		f.flavors[fl.ID] = fl
	}
	return f
}

// Names returns the stored flavor names, sorted.
func (f *FakeFlavors) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.flavors))
	for _, fl := range f.flavors {
		names = append(names, fl.Name)
	}
	slices.Sort(names)
	return names
}

// Writes returns "create:<id>" and "specs:<id>" entries in call order.
func (f *FakeFlavors) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.writes)
}

// Flavor returns a stored flavor.
func (f *FakeFlavors) Flavor(id string) (flavorsync.Flavor, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fl, ok := f.flavors[id]
	return fl, ok
}

// ListFlavors implements flavorsync.Source.
func (f *FakeFlavors) ListFlavors(context.Context) ([]flavorsync.Flavor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]flavorsync.Flavor, 0, len(f.flavors))
	for _, fl := range f.flavors {
		out = append(out, fl)
	}
	slices.SortFunc(out, func(a, b flavorsync.Flavor) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// GetFlavor implements flavorsync.Sink.
func (f *FakeFlavors) GetFlavor(_ context.Context, id string) (flavorsync.Flavor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fl, ok := f.flavors[id]
	if !ok {
		return flavorsync.Flavor{}, fmt.Errorf("flavor %s: %w", id, flavorsync.ErrNotFound)
	}
	return fl, nil
}

// CreateFlavor implements flavorsync.Sink.
func (f *FakeFlavors) CreateFlavor(_ context.Context, fl flavorsync.Flavor) (flavorsync.Flavor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.flavors[fl.ID]; exists {
		return flavorsync.Flavor{}, fmt.Errorf("flavor %s already exists", fl.ID)
	}
	f.flavors[fl.ID] = fl
	f.writes = append(f.writes, "create:"+fl.ID)
	return fl, nil
}

// UpdateExtraSpecs implements flavorsync.Sink.
func (f *FakeFlavors) UpdateExtraSpecs(_ context.Context, id string, specs map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fl, ok := f.flavors[id]
	if !ok {
		return fmt.Errorf("flavor %s: %w", id, flavorsync.ErrNotFound)
	}
	fl.ExtraSpecs = maps.Clone(specs)
	f.flavors[id] = fl
	f.writes = append(f.writes, "specs:"+id)
	return nil
}
