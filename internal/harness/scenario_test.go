package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "events: [{origin: LOCAL, type: full_sync}]", "name is required"},
		{"no events", "name: x", "at least one event"},
		{"unknown field", "name: x\nevent: []", "field event not found"},
		{"bad origin", "name: x\nevents: [{origin: MIDDLE, type: full_sync}]", "unknown side"},
		{"bad type", "name: x\nevents: [{origin: LOCAL, type: upsert, kind: network, id: L1}]", "unknown event type"},
		{"bad kind", "name: x\nevents: [{origin: LOCAL, type: create, kind: router, id: L1}]", "unknown kind"},
		{"delete without id", "name: x\nevents: [{origin: LOCAL, type: delete, kind: port}]", "id is required"},
		{"mapping without key", "name: x\nsetup: {mappings: [{kind: network, local_id: L1}]}\nevents: [{origin: LOCAL, type: full_sync}]", "sync_key is required"},
		{"object without id", "name: x\nsetup: {remote: [{kind: network}]}\nevents: [{origin: LOCAL, type: full_sync}]", "setup.remote[0]"},
		{"unknown assertion", "name: x\nevents: [{origin: LOCAL, type: full_sync}]\nassertions: [{type: trace_order}]", "unknown assertion type"},
		{"mapping assertion without expect", "name: x\nevents: [{origin: LOCAL, type: full_sync}]\nassertions: [{type: mapping, kind: network, sync_key: k}]", "expect is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/s3_conflicting_update_remote_wins.yaml")
	require.NoError(t, err)
	assert.Len(t, s.Setup.Local, 2)
	assert.Len(t, s.Setup.Mappings, 2)
	assert.Equal(t, StepFullSync, s.Events[0].Type)

	_, err = LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("name: [unterminated"), 0o600))
	_, err = LoadScenario(bad)
	assert.ErrorContains(t, err, "failed to parse YAML")
}
