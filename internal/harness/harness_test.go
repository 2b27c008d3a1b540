package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cloudsync/internal/resource"
)

func TestScenarios_Golden(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			assert.Equal(t, name, scenario.Name, "scenario name must match its file")

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_ReplayLeavesStoreUnchanged(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: replay
setup:
  local:
    - {kind: network, id: L1, attrs: {name: n, network_type: vlan, physical_network: default, segmentation_id: 7}}
events:
  - {origin: LOCAL, type: create, kind: network, id: L1}
  - {origin: LOCAL, type: create, kind: network, id: L1}
  - {origin: LOCAL, type: full_sync}
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.Len(t, result.Mappings, 1)
	assert.Equal(t, resource.StatusActive, result.Mappings[0].Status)
	assert.Len(t, result.CallsOn(resource.Remote, "create"), 1)
	assert.Empty(t, result.CallsOn(resource.Local, ""))
}

func TestRun_DeferredChildDrained(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: deferred
setup:
  local:
    - {kind: subnet, id: LS1, attrs: {network_id: L1, cidr: 10.1.0.0/24, ip_version: 4, enable_dhcp: false}}
  mappings:
    - {kind: network, sync_key: vlan_7_default, local_id: L1}
events:
  - {origin: LOCAL, type: create, kind: subnet, id: LS1}
assertions:
  - {type: no_mapping, kind: subnet}
  - {type: call_count, side: REMOTE, count: 0}
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_FilterOverride(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: filtered
filter:
  network_types: [vlan]
  name_allowlist: ["prod-*"]
setup:
  local:
    - {kind: network, id: L1, attrs: {name: dev-1, network_type: vlan, physical_network: default, segmentation_id: 5}}
events:
  - {origin: LOCAL, type: create, kind: network, id: L1}
assertions:
  - {type: no_mapping, kind: network}
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_MissingOriginObject(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: missing
events:
  - {origin: LOCAL, type: update, kind: network, id: L404}
`))
	require.NoError(t, err)

	_, err = Run(scenario)
	assert.ErrorContains(t, err, "events[0]")
}

func TestSnapshot_NullColumns(t *testing.T) {
	r := NewResult()
	r.Mappings = append(r.Mappings, resource.Mapping{
		Kind: resource.KindPort, SyncKey: "10.0.0.5_R1", Status: resource.StatusCreating, LocalID: "LP1",
	})
	data, err := Snapshot("nulls", r)
	require.NoError(t, err)
	assert.Equal(t,
		`{"calls":[],"mappings":[{"kind":"port","local_id":"LP1","remote_id":null,"status":"CREATING","sync_key":"10.0.0.5_R1","update_data":null}],"scenario":"nulls"}`,
		string(data))
}
