package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cloudsync/internal/resource"
)

// Scenario defines one reconciliation scenario: the pre-state of both
// clouds and the mapping store, the events to process, and the assertions
// over the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Filter overrides the mappability settings. When nil, vlan and flat
	// networks on any physical network with any name are mappable.
	Filter *FilterSpec `yaml:"filter,omitempty"`

	Setup Setup `yaml:"setup"`

	// Events are processed in order by the reconciler. Deferred events are
	// drained before the next step.
	Events []EventStep `yaml:"events"`

	Assertions []Assertion `yaml:"assertions"`
}

// FilterSpec mirrors the reconciler section of the configuration.
type FilterSpec struct {
	NetworkTypes    []string `yaml:"network_types"`
	PhysicalNetwork string   `yaml:"physical_network"`
	NameAllowlist   []string `yaml:"name_allowlist"`
}

// Setup seeds the clouds and the mapping store without recording calls.
type Setup struct {
	Local    []ObjectSpec  `yaml:"local,omitempty"`
	Remote   []ObjectSpec  `yaml:"remote,omitempty"`
	Mappings []MappingSpec `yaml:"mappings,omitempty"`
}

// ObjectSpec is one cloud object.
type ObjectSpec struct {
	Kind  string         `yaml:"kind"`
	ID    string         `yaml:"id"`
	Attrs map[string]any `yaml:"attrs"`
}

// MappingSpec is one pre-existing mapping row. Status defaults to ACTIVE
// when both ids are set and CREATING otherwise.
type MappingSpec struct {
	Kind     string         `yaml:"kind"`
	SyncKey  string         `yaml:"sync_key"`
	LocalID  string         `yaml:"local_id,omitempty"`
	RemoteID string         `yaml:"remote_id,omitempty"`
	Status   string         `yaml:"status,omitempty"`
	Snapshot map[string]any `yaml:"snapshot,omitempty"`
}

// EventStep is one event. For create and update the object is built from
// Attrs when given, otherwise read from the origin cloud by ID.
type EventStep struct {
	Origin string         `yaml:"origin"`
	Type   string         `yaml:"type"`
	Kind   string         `yaml:"kind,omitempty"`
	ID     string         `yaml:"id,omitempty"`
	Attrs  map[string]any `yaml:"attrs,omitempty"`
}

// Assertion validates the outcome.
type Assertion struct {
	// Type is one of mapping, no_mapping, call_count, object.
	Type string `yaml:"type"`

	Kind    string `yaml:"kind,omitempty"`
	SyncKey string `yaml:"sync_key,omitempty"`
	Side    string `yaml:"side,omitempty"`
	ID      string `yaml:"id,omitempty"`

	// Op restricts call_count to one operation.
	Op    string `yaml:"op,omitempty"`
	Count int    `yaml:"count,omitempty"`

	// Expect holds expected mapping columns (mapping) or attributes
	// (object). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertMapping   = "mapping"
	AssertNoMapping = "no_mapping"
	AssertCallCount = "call_count"
	AssertObject    = "object"
)

// Event type names accepted in scenarios.
const (
	StepCreate   = "create"
	StepUpdate   = "update"
	StepDelete   = "delete"
	StepFullSync = "full_sync"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Events) == 0 {
		return fmt.Errorf("at least one event is required")
	}
	for i, o := range s.Setup.Local {
		if err := validateObject(o); err != nil {
			return fmt.Errorf("setup.local[%d]: %w", i, err)
		}
	}
	for i, o := range s.Setup.Remote {
		if err := validateObject(o); err != nil {
			return fmt.Errorf("setup.remote[%d]: %w", i, err)
		}
	}
	for i, m := range s.Setup.Mappings {
		if _, err := resource.ParseKind(m.Kind); err != nil {
			return fmt.Errorf("setup.mappings[%d]: %w", i, err)
		}
		if m.SyncKey == "" {
			return fmt.Errorf("setup.mappings[%d]: sync_key is required", i)
		}
	}
	for i, e := range s.Events {
		if err := validateEvent(e); err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateObject(o ObjectSpec) error {
	if _, err := resource.ParseKind(o.Kind); err != nil {
		return err
	}
	if o.ID == "" {
		return fmt.Errorf("id is required")
	}
	return nil
}

func validateEvent(e EventStep) error {
	if _, err := resource.ParseSide(e.Origin); err != nil {
		return err
	}
	switch e.Type {
	case StepFullSync:
		return nil
	case StepCreate, StepUpdate, StepDelete:
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if _, err := resource.ParseKind(e.Kind); err != nil {
		return err
	}
	if e.ID == "" {
		return fmt.Errorf("id is required for %s", e.Type)
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertMapping:
		if a.Kind == "" || a.SyncKey == "" {
			return fmt.Errorf("kind and sync_key are required for mapping")
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("expect is required for mapping")
		}
	case AssertNoMapping:
		if a.Kind == "" {
			return fmt.Errorf("kind is required for no_mapping")
		}
	case AssertCallCount:
		if _, err := resource.ParseSide(a.Side); err != nil {
			return err
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for call_count")
		}
	case AssertObject:
		if _, err := resource.ParseSide(a.Side); err != nil {
			return err
		}
		if a.Kind == "" || a.ID == "" {
			return fmt.Errorf("kind and id are required for object")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
