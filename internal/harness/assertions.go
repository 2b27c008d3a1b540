package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/cloudsync/internal/resource"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

func evaluate(r *Result, a Assertion) error {
	switch a.Type {
	case AssertMapping:
		return assertMapping(r, a)
	case AssertNoMapping:
		return assertNoMapping(r, a)
	case AssertCallCount:
		return assertCallCount(r, a)
	case AssertObject:
		return assertObject(r, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func findMapping(r *Result, kind resource.Kind, key string) (resource.Mapping, bool) {
	for _, m := range r.Mappings {
		if m.Kind == kind && m.SyncKey == key {
			return m, true
		}
	}
	return resource.Mapping{}, false
}

// assertMapping checks the named columns of one mapping. "update_data" is
// compared as an attribute set; null expects an empty column.
func assertMapping(r *Result, a Assertion) error {
	kind, err := resource.ParseKind(a.Kind)
	if err != nil {
		return err
	}
	m, ok := findMapping(r, kind, a.SyncKey)
	if !ok {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("mapping %s/%s", kind, a.SyncKey), Actual: "none"}
	}
	columns := map[string]string{
		"local_id":  m.LocalID,
		"remote_id": m.RemoteID,
		"status":    string(m.Status),
	}
	for col, want := range a.Expect {
		if col == "update_data" {
			if err := compareSnapshot(m, want); err != nil {
				return err
			}
			continue
		}
		got, known := columns[col]
		if !known {
			return fmt.Errorf("unknown mapping column %q", col)
		}
		wantStr := ""
		if want != nil {
			wantStr = fmt.Sprint(want)
		}
		if got != wantStr {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%s=%q", col, wantStr), Actual: fmt.Sprintf("%q", got)}
		}
	}
	return nil
}

func compareSnapshot(m resource.Mapping, want any) error {
	got, err := m.Snapshot()
	if err != nil {
		return err
	}
	if want == nil {
		if got != nil {
			return &AssertionError{Type: AssertMapping, Expected: "update_data=null", Actual: m.UpdateData}
		}
		return nil
	}
	wantValue, err := resource.FromAny(want)
	if err != nil {
		return err
	}
	if got == nil || !resource.Equal(got, wantValue) {
		return &AssertionError{Type: AssertMapping, Expected: fmt.Sprintf("update_data=%v", want), Actual: m.UpdateData}
	}
	return nil
}

// assertNoMapping fails when kind has a mapping for sync_key, or any mapping
// at all when sync_key is empty.
func assertNoMapping(r *Result, a Assertion) error {
	kind, err := resource.ParseKind(a.Kind)
	if err != nil {
		return err
	}
	var keys []string
	for _, m := range r.Mappings {
		if m.Kind == kind && (a.SyncKey == "" || m.SyncKey == a.SyncKey) {
			keys = append(keys, m.SyncKey)
		}
	}
	if len(keys) > 0 {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("no %s mapping", kind), Actual: strings.Join(keys, ", ")}
	}
	return nil
}

func assertCallCount(r *Result, a Assertion) error {
	side, err := resource.ParseSide(a.Side)
	if err != nil {
		return err
	}
	calls := r.CallsOn(side, a.Op)
	if len(calls) != a.Count {
		ops := make([]string, len(calls))
		for i, c := range calls {
			ops[i] = c.Op + " " + string(c.Kind) + " " + c.ID
		}
		what := "calls"
		if a.Op != "" {
			what = a.Op + " calls"
		}
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d %s on %s", a.Count, what, side),
			Actual:   fmt.Sprintf("%d %v", len(calls), ops),
		}
	}
	return nil
}

// assertObject checks a subset of one cloud object's attributes.
func assertObject(r *Result, a Assertion) error {
	side, err := resource.ParseSide(a.Side)
	if err != nil {
		return err
	}
	kind, err := resource.ParseKind(a.Kind)
	if err != nil {
		return err
	}
	for _, obj := range r.Objects[side] {
		if obj.Kind != kind || obj.ID != a.ID {
			continue
		}
		for key, want := range a.Expect {
			wantValue, err := resource.FromAny(want)
			if err != nil {
				return err
			}
			if !resource.Equal(obj.Attrs[key], wantValue) {
				return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%s=%v", key, want), Actual: fmt.Sprintf("%v", resource.ToAny(obj.Attrs[key]))}
			}
		}
		return nil
	}
	return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%s %s %s", side, kind, a.ID), Actual: "absent"}
}
