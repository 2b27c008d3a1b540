package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/roach88/cloudsync/internal/config"
	"github.com/roach88/cloudsync/internal/driver"
	"github.com/roach88/cloudsync/internal/event"
	"github.com/roach88/cloudsync/internal/flavorsync"
	"github.com/roach88/cloudsync/internal/resource"
	"github.com/roach88/cloudsync/internal/rpc"
	"github.com/roach88/cloudsync/internal/store"
	"github.com/roach88/cloudsync/internal/testutil"
	"github.com/roach88/cloudsync/internal/tracker"
)

func TestSync_MirrorsLocalNetwork(t *testing.T) {
	cfgPath, db := writeConfig(t, t.TempDir(), "")
	clouds := newTestClouds()
	clouds.local.Seed(vlanNetwork("L1", "net100", 100))

	out, _, err := execute(t, &RootOptions{Connect: clouds.connect}, "--config", cfgPath, "sync")
	require.NoError(t, err)
	assert.Equal(t, "Full sync complete: 1 network(s), 0 subnet(s), 0 port(s) mapped, 0 pending\n", out)
	assert.Equal(t, 1, clouds.remote.Count(resource.KindNetwork))

	out, _, err = execute(t, &RootOptions{}, "--db", db, "get_remote_network_uuid", "L1")
	require.NoError(t, err)
	assert.Equal(t, "R1\n", out)
}

func TestSync_JSONAndIdempotent(t *testing.T) {
	cfgPath, _ := writeConfig(t, t.TempDir(), "")
	clouds := newTestClouds()
	clouds.remote.Seed(vlanNetwork("R1", "net5", 5))
	opts := &RootOptions{Connect: clouds.connect}

	_, _, err := execute(t, opts, "--config", cfgPath, "sync")
	require.NoError(t, err)
	clouds.local.ResetCalls()
	clouds.remote.ResetCalls()

	out, _, err := execute(t, opts, "--config", cfgPath, "--format", "json", "sync")
	require.NoError(t, err)
	var resp struct {
		Status string      `json:"status"`
		Data   SyncSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, SyncSummary{Networks: 1}, resp.Data)
	assert.Empty(t, clouds.local.Calls(), "second pass must not write")
	assert.Empty(t, clouds.remote.Calls(), "second pass must not write")
}

func TestSync_CommandErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing endpoints", func(t *testing.T) {
		out, _, err := execute(t, &RootOptions{Connect: newTestClouds().connect}, "--db", filepath.Join(dir, "a.db"), "sync")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "Error [E002]: invalid configuration")
		assert.Contains(t, err.Error(), "endpoints.local.auth_url")
	})

	t.Run("unreachable cloud", func(t *testing.T) {
		cfgPath, _ := writeConfig(t, dir, "")
		refuse := func(context.Context, *config.Config, *slog.Logger) (*Clouds, error) {
			return nil, errors.New("connection refused")
		}
		out, _, err := execute(t, &RootOptions{Connect: refuse}, "--config", cfgPath, "sync")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "Error [E007]")
	})

	t.Run("cloud failure during pass", func(t *testing.T) {
		cfgPath, _ := writeConfig(t, t.TempDir(), "")
		clouds := newTestClouds()
		clouds.remote.Fail("list", resource.KindNetwork, errors.New("503 service unavailable"))
		out, _, err := execute(t, &RootOptions{Connect: clouds.connect}, "--config", cfgPath, "sync")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "Error [E008]: full sync failed")
	})
}

func TestRun_SyncsOnConnectAndFollowsBus(t *testing.T) {
	cfgPath, db := writeConfig(t, t.TempDir(), "metrics:\n  listen: 127.0.0.1:0\n")
	clouds := newTestClouds()
	clouds.local.Seed(vlanNetwork("L1", "net100", 100))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, _, err := executeContext(t, ctx, &RootOptions{Connect: clouds.connect}, "--config", cfgPath, "run")
		done <- err
	}()

	// Each bus reports a connection at start, which triggers a full sync.
	require.Eventually(t, func() bool {
		return clouds.remote.Count(resource.KindNetwork) == 1
	}, 5*time.Second, 10*time.Millisecond)

	clouds.remote.Seed(vlanNetwork("R9", "net200", 200))
	clouds.buses[resource.Remote].Deliveries <- event.Envelope{
		EventType: "network.create.end",
		Payload: json.RawMessage(`{"network": {"id": "R9", "name": "net200", "network_type": "vlan",
			"physical_network": "default", "segmentation_id": 200}}`),
	}
	require.Eventually(t, func() bool {
		return clouds.local.Count(resource.KindNetwork) == 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}

	out, _, err := execute(t, &RootOptions{}, "--db", db, "get_networks")
	require.NoError(t, err)
	assert.Contains(t, out, "vlan_100_default")
	assert.Contains(t, out, "vlan_200_default")
}

func TestRun_InvalidConfig(t *testing.T) {
	cfgPath, _ := writeConfig(t, t.TempDir(), "reconciler:\n  bogus: 1\n")

	_, _, err := execute(t, &RootOptions{Connect: newTestClouds().connect}, "--config", cfgPath, "run")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFlavorSync(t *testing.T) {
	cfgPath, _ := writeConfig(t, t.TempDir(), "flavor_sync:\n  prefix: pvc-\n")
	clouds := newTestClouds()
	clouds.remoteFlavors = testutil.NewFakeFlavors(
		flavorsync.Flavor{ID: "f1", Name: "m1.small", VCPUs: 1, RAM: 2048, Disk: 20, IsPublic: true},
		flavorsync.Flavor{ID: "f2", Name: "secret", VCPUs: 8, IsPublic: false},
	)

	out, _, err := execute(t, &RootOptions{Connect: clouds.connect}, "--config", cfgPath, "flavor-sync")
	require.NoError(t, err)
	assert.Equal(t, ""+
		"Flavor sync complete: 1 imported, 0 updated, 0 unchanged, 1 skipped\n"+
		"  imported: m1.small\n"+
		"  skipped: secret\n", out)
	assert.Equal(t, []string{"pvc-m1.small"}, clouds.localFlavors.Names())

	out, _, err = execute(t, &RootOptions{Connect: clouds.connect}, "--config", cfgPath, "--format", "json", "flavor-sync")
	require.NoError(t, err)
	var resp struct {
		Data flavorsync.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []string{"m1.small"}, resp.Data.Unchanged)
}

func TestFlavorSync_BadPattern(t *testing.T) {
	cfgPath, _ := writeConfig(t, t.TempDir(), "flavor_sync:\n  denylist: [\"m1.(\"]\n")

	out, _, err := execute(t, &RootOptions{Connect: newTestClouds().connect}, "--config", cfgPath, "flavor-sync")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "invalid flavor sync settings")
}

func TestServeDriver_RequiresListenAddress(t *testing.T) {
	cfgPath, _ := writeConfig(t, t.TempDir(), "")

	out, _, err := execute(t, &RootOptions{Connect: newTestClouds().connect}, "--config", cfgPath, "serve-driver")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E010]")
}

func TestServeDriver_NoRemoteClients(t *testing.T) {
	cfgPath, _ := writeConfig(t, t.TempDir(), "")

	out, _, err := execute(t, &RootOptions{Connect: newTestClouds().connect}, "--config", cfgPath, "serve-driver", "--listen", "127.0.0.1:0")
	require.Error(t, err)
	assert.Contains(t, out, "failed to build driver")
}

func TestServeDriver_ServesUntilCancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	volumes := driver.NewMockVolumeAPI(ctrl)
	compute := driver.NewMockComputeAPI(ctrl)

	st, err := store.Open(filepath.Join(t.TempDir(), "driver.db"))
	require.NoError(t, err)
	defer st.Close()
	d, err := driver.New(driver.Config{}, volumes, compute, st, st,
		tracker.New(tracker.WithClock(testutil.NewFakeClock()), tracker.WithLogger(logger)),
		driver.WithLogger(logger))
	require.NoError(t, err)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveDriver(ctx, lis, d, logger) }()

	client, conn, err := rpc.Dial(lis.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	volumes.EXPECT().CreateVolume(gomock.Any(), gomock.Any()).Return(driver.RemoteVolume{ID: "V1", Status: "available"}, nil)
	volumes.EXPECT().GetVolume(gomock.Any(), "V1").Return(driver.RemoteVolume{ID: "V1", Status: "available"}, nil).AnyTimes()

	callCtx, callCancel := context.WithTimeout(ctx, 5*time.Second)
	defer callCancel()
	upd, err := client.CreateVolume(callCtx, driver.Volume{ID: "vol-1", Name: "data", SizeGB: 1})
	require.NoError(t, err)
	assert.Equal(t, "available", upd.Status)

	md, err := st.Metadata(context.Background(), "vol-1")
	require.NoError(t, err)
	assert.Equal(t, "V1", md[driver.MetadataKey])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("driver service did not stop")
	}
}
