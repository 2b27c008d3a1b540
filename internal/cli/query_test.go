package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cloudsync/internal/resource"
)

func seededDB(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "map.db")
	net := mapping(resource.KindNetwork, "vlan_100_default", "L1", "R1")
	net.UpdateData = `{"name":"net100"}`
	seedStore(t, db,
		net,
		mapping(resource.KindNetwork, "vlan_7_default", "L7", ""),
		mapping(resource.KindSubnet, "R1_10.0.0.0/24", "L2", "R2"),
		mapping(resource.KindPort, "R1_10.0.0.5", "L3", "R3"),
	)
	return db
}

func TestGetNetwork(t *testing.T) {
	db := seededDB(t)

	out, _, err := execute(t, &RootOptions{}, "--db", db, "get_network", "vlan_100_default")
	require.NoError(t, err)
	assert.Equal(t, ""+
		"kind:        network\n"+
		"sync_key:    vlan_100_default\n"+
		"status:      ACTIVE\n"+
		"local_id:    L1\n"+
		"remote_id:   R1\n"+
		"update_data: {\"name\":\"net100\"}\n", out)
}

func TestGetSubnetJSON(t *testing.T) {
	db := seededDB(t)

	out, _, err := execute(t, &RootOptions{}, "--db", db, "--format", "json", "get_subnet", "R1_10.0.0.0/24")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   MappingView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, MappingView{Kind: "subnet", SyncKey: "R1_10.0.0.0/24", Status: "ACTIVE", LocalID: "L2", RemoteID: "R2"}, resp.Data)
}

func TestGetPort_NotFound(t *testing.T) {
	db := seededDB(t)

	out, _, err := execute(t, &RootOptions{}, "--db", db, "get_port", "R1_10.0.0.99")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, `Error [E005]: no port mapping for sync key "R1_10.0.0.99"`)
}

func TestGetNetworks(t *testing.T) {
	db := seededDB(t)

	out, _, err := execute(t, &RootOptions{}, "--db", db, "get_networks")
	require.NoError(t, err)
	assert.Equal(t, ""+
		"STATUS    LOCAL_ID  REMOTE_ID  SYNC_KEY\n"+
		"ACTIVE    L1        R1         vlan_100_default\n"+
		"CREATING  L7        -          vlan_7_default\n", out)
}

func TestGetPortsJSON(t *testing.T) {
	db := seededDB(t)

	out, _, err := execute(t, &RootOptions{}, "--db", db, "--format", "json", "get_ports")
	require.NoError(t, err)

	var resp struct {
		Data []MappingView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "R3", resp.Data[0].RemoteID)
}

func TestGetSubnets_Empty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")
	seedStore(t, db)

	out, _, err := execute(t, &RootOptions{}, "--db", db, "get_subnets")
	require.NoError(t, err)
	assert.Equal(t, "STATUS  LOCAL_ID  REMOTE_ID  SYNC_KEY\n", out)
}

func TestTranslateCommands(t *testing.T) {
	db := seededDB(t)

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"get_local_network_uuid", "R1"}, "L1\n"},
		{[]string{"get_remote_network_uuid", "L1"}, "R1\n"},
		{[]string{"get_remote_port_uuid", "L3"}, "R3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			out, _, err := execute(t, &RootOptions{}, append([]string{"--db", db}, tt.args...)...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestTranslateCommands_JSONAndMisses(t *testing.T) {
	db := seededDB(t)

	out, _, err := execute(t, &RootOptions{}, "--db", db, "--format", "json", "get_local_network_uuid", "R1")
	require.NoError(t, err)
	var resp struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, map[string]string{"local_id": "L1"}, resp.Data)

	// L7 is mapped but has no REMOTE copy yet.
	_, _, err = execute(t, &RootOptions{}, "--db", db, "get_remote_network_uuid", "L7")
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, _, err = execute(t, &RootOptions{}, "--db", db, "get_remote_port_uuid", "nope")
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestQuery_MissingStore(t *testing.T) {
	db := filepath.Join(t.TempDir(), "absent.db")

	out, _, err := execute(t, &RootOptions{}, "--db", db, "get_networks")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]: failed to open mapping store")
}
