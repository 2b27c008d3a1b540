package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cloudsync/internal/resource"
)

func sampleResult() *Result {
	r := NewResult()
	r.Calls = []CallRecord{
		{Side: resource.Remote, Op: "create", Kind: resource.KindNetwork, ID: "R1"},
		{Side: resource.Remote, Op: "update", Kind: resource.KindNetwork, ID: "R1"},
	}
	r.Mappings = []resource.Mapping{{
		Kind: resource.KindNetwork, SyncKey: "vlan_1_default", Status: resource.StatusActive,
		LocalID: "L1", RemoteID: "R1", UpdateData: `{"name":"a"}`,
	}}
	r.Objects[resource.Local] = []resource.Object{
		resource.NewObject(resource.KindNetwork, "L1", resource.Attrs{"name": resource.String("a")}),
	}
	return r
}

func TestEvaluate(t *testing.T) {
	r := sampleResult()
	tests := []struct {
		name string
		a    Assertion
		ok   bool
	}{
		{"mapping columns", Assertion{Type: AssertMapping, Kind: "network", SyncKey: "vlan_1_default", Expect: map[string]any{"local_id": "L1", "status": "ACTIVE"}}, true},
		{"mapping snapshot", Assertion{Type: AssertMapping, Kind: "network", SyncKey: "vlan_1_default", Expect: map[string]any{"update_data": map[string]any{"name": "a"}}}, true},
		{"mapping snapshot differs", Assertion{Type: AssertMapping, Kind: "network", SyncKey: "vlan_1_default", Expect: map[string]any{"update_data": map[string]any{"name": "b"}}}, false},
		{"mapping null snapshot", Assertion{Type: AssertMapping, Kind: "network", SyncKey: "vlan_1_default", Expect: map[string]any{"update_data": nil}}, false},
		{"mapping wrong id", Assertion{Type: AssertMapping, Kind: "network", SyncKey: "vlan_1_default", Expect: map[string]any{"remote_id": "R9"}}, false},
		{"mapping absent", Assertion{Type: AssertMapping, Kind: "subnet", SyncKey: "x", Expect: map[string]any{"status": "ACTIVE"}}, false},
		{"no mapping holds", Assertion{Type: AssertNoMapping, Kind: "port"}, true},
		{"no mapping fails", Assertion{Type: AssertNoMapping, Kind: "network"}, false},
		{"call count all ops", Assertion{Type: AssertCallCount, Side: "REMOTE", Count: 2}, true},
		{"call count one op", Assertion{Type: AssertCallCount, Side: "REMOTE", Op: "update", Count: 1}, true},
		{"call count mismatch", Assertion{Type: AssertCallCount, Side: "LOCAL", Count: 1}, false},
		{"object attrs", Assertion{Type: AssertObject, Side: "LOCAL", Kind: "network", ID: "L1", Expect: map[string]any{"name": "a"}}, true},
		{"object attr differs", Assertion{Type: AssertObject, Side: "LOCAL", Kind: "network", ID: "L1", Expect: map[string]any{"name": "z"}}, false},
		{"object absent", Assertion{Type: AssertObject, Side: "REMOTE", Kind: "network", ID: "R1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := evaluate(r, tt.a)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
		})
	}
}

func TestAssertionError_Message(t *testing.T) {
	err := evaluate(sampleResult(), Assertion{Type: AssertCallCount, Side: "LOCAL", Count: 3})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertCallCount, ae.Type)
	assert.Contains(t, err.Error(), "expected 3 calls on LOCAL")
}
