package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/cloudsync/internal/resource"
)

// Snapshot renders the calls and final mappings of a result as canonical
// JSON. Mapping ids are omitted: they are content hashes of kind and sync
// key, both already present.
func Snapshot(name string, r *Result) ([]byte, error) {
	calls := make(resource.List, 0, len(r.Calls))
	for _, c := range r.Calls {
		entry := resource.Attrs{
			"side": resource.String(c.Side),
			"op":   resource.String(c.Op),
			"kind": resource.String(c.Kind),
			"id":   resource.String(c.ID),
		}
		if c.Attrs != nil {
			entry["attrs"] = c.Attrs
		}
		calls = append(calls, entry)
	}

	mappings := make(resource.List, 0, len(r.Mappings))
	for _, m := range r.Mappings {
		snap, err := m.Snapshot()
		if err != nil {
			return nil, err
		}
		entry := resource.Attrs{
			"kind":        resource.String(m.Kind),
			"sync_key":    resource.String(m.SyncKey),
			"status":      resource.String(m.Status),
			"local_id":    nullable(m.LocalID),
			"remote_id":   nullable(m.RemoteID),
			"update_data": resource.Null{},
		}
		if snap != nil {
			entry["update_data"] = snap
		}
		mappings = append(mappings, entry)
	}

	return resource.MarshalCanonical(resource.Attrs{
		"scenario": resource.String(name),
		"calls":    calls,
		"mappings": mappings,
	})
}

func nullable(s string) resource.Value {
	if s == "" {
		return resource.Null{}
	}
	return resource.String(s)
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden. Assertion failures are reported
// through t.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	for _, e := range result.Errors {
		t.Errorf("%s: %s", scenario.Name, e)
	}

	data, err := Snapshot(scenario.Name, result)
	if err != nil {
		return nil, err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return result, nil
}
