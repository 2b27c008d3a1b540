package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/cloudsync/internal/config"
	"github.com/roach88/cloudsync/internal/endpoint"
	"github.com/roach88/cloudsync/internal/resource"
	"github.com/roach88/cloudsync/internal/store"
	"github.com/roach88/cloudsync/internal/testutil"
)

// testClouds is an in-memory pair of clouds.
type testClouds struct {
	local, remote *testutil.FakeCloud
	buses         map[resource.Side]*testutil.ChannelBus
	remoteFlavors *testutil.FakeFlavors
	localFlavors  *testutil.FakeFlavors
}

func newTestClouds() *testClouds {
	return &testClouds{
		local:  testutil.NewFakeCloud("L"),
		remote: testutil.NewFakeCloud("R"),
		buses: map[resource.Side]*testutil.ChannelBus{
			resource.Local:  testutil.NewChannelBus(),
			resource.Remote: testutil.NewChannelBus(),
		},
		remoteFlavors: testutil.NewFakeFlavors(),
		localFlavors:  testutil.NewFakeFlavors(),
	}
}

func (c *testClouds) connect(context.Context, *config.Config, *slog.Logger) (*Clouds, error) {
	return &Clouds{
		Network: map[resource.Side]endpoint.Client{
			resource.Local:  c.local,
			resource.Remote: c.remote,
		},
		Buses: map[resource.Side]endpoint.Bus{
			resource.Local:  c.buses[resource.Local],
			resource.Remote: c.buses[resource.Remote],
		},
		FlavorSource: c.remoteFlavors,
		FlavorSink:   c.localFlavors,
	}, nil
}

// execute runs the root command with args and returns stdout, stderr and
// the command error.
func execute(t *testing.T, opts *RootOptions, args ...string) (string, string, error) {
	t.Helper()
	return executeContext(t, context.Background(), opts, args...)
}

func executeContext(t *testing.T, ctx context.Context, opts *RootOptions, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := newRootCommand(opts)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

// writeConfig writes a config with both endpoints set, every network name
// allowed and the store under dir.
func writeConfig(t *testing.T, dir, extra string) (cfgPath, dbPath string) {
	t.Helper()
	dbPath = filepath.Join(dir, "cloudsync.db")
	body := `
store:
  path: ` + dbPath + `
reconciler:
  network_name_allowlist: ["*"]
  deferred_backoff_ms: 1
endpoints:
  local:
    auth_url: http://local.example:5000/v3
    bus_url: redis://127.0.0.1:6379/0
  remote:
    auth_url: http://remote.example:5000/v3
    bus_url: redis://127.0.0.1:6379/1
` + extra
	cfgPath = filepath.Join(dir, "cloudsync.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o600))
	return cfgPath, dbPath
}

// seedStore creates a store at path holding mappings.
func seedStore(t *testing.T, path string, mappings ...resource.Mapping) {
	t.Helper()
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()
	for _, m := range mappings {
		require.NoError(t, st.Insert(context.Background(), m))
	}
}

func mapping(kind resource.Kind, syncKey, localID, remoteID string) resource.Mapping {
	status := resource.StatusActive
	if localID == "" || remoteID == "" {
		status = resource.StatusCreating
	}
	return resource.Mapping{
		ID:       resource.MustMappingID(kind, syncKey),
		Kind:     kind,
		Status:   status,
		SyncKey:  syncKey,
		LocalID:  localID,
		RemoteID: remoteID,
	}
}

func vlanNetwork(id, name string, segment int64) resource.Object {
	return resource.NewObject(resource.KindNetwork, id, resource.Attrs{
		"name":             resource.String(name),
		"network_type":     resource.String("vlan"),
		"physical_network": resource.String("default"),
		"segmentation_id":  resource.Int(segment),
	})
}
