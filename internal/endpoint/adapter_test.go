package endpoint_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cloudsync/internal/endpoint"
	"github.com/roach88/cloudsync/internal/event"
	"github.com/roach88/cloudsync/internal/filter"
	"github.com/roach88/cloudsync/internal/resource"
	"github.com/roach88/cloudsync/internal/store"
	"github.com/roach88/cloudsync/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupAdapter(t *testing.T, side resource.Side) (*endpoint.Adapter, *testutil.FakeCloud, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	f, err := filter.New(filter.Config{
		NetworkTypes:  []string{"vlan"},
		NameAllowlist: []string{"*"},
	}, quietLogger())
	require.NoError(t, err)

	prefix := "R"
	if side == resource.Local {
		prefix = "L"
	}
	cloud := testutil.NewFakeCloud(prefix)
	return endpoint.New(side, cloud, f, st, endpoint.WithLogger(quietLogger())), cloud, st
}

func seedActive(t *testing.T, st *store.Store, kind resource.Kind, key, localID, remoteID string) {
	t.Helper()
	require.NoError(t, st.Insert(context.Background(), resource.Mapping{
		ID:       resource.MustMappingID(kind, key),
		Kind:     kind,
		Status:   resource.StatusActive,
		SyncKey:  key,
		LocalID:  localID,
		RemoteID: remoteID,
	}))
}

func TestList_FiltersUnmappable(t *testing.T) {
	a, cloud, _ := setupAdapter(t, resource.Remote)
	cloud.Seed(resource.NewObject(resource.KindNetwork, "R1", resource.Attrs{
		"name": resource.String("a"), "network_type": resource.String("vlan"),
	}))
	cloud.Seed(resource.NewObject(resource.KindNetwork, "R2", resource.Attrs{
		"name": resource.String("b"), "network_type": resource.String("vxlan"),
	}))

	objs, err := a.List(context.Background(), resource.KindNetwork)
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "R1", objs[0].ID)
}

func TestCreate_RestrictsToCreateFields(t *testing.T) {
	a, cloud, _ := setupAdapter(t, resource.Remote)

	obj, err := a.Create(context.Background(), resource.KindNetwork, resource.Attrs{
		"id":              resource.String("L1"),
		"name":            resource.String("net100"),
		"network_type":    resource.String("vlan"),
		"segmentation_id": resource.Int(100),
		"status":          resource.String("ACTIVE"),
	})
	require.NoError(t, err)
	assert.Equal(t, "R1", obj.ID)

	calls := cloud.Calls()
	require.Len(t, calls, 1)
	assert.NotContains(t, calls[0].Attrs, "id")
	assert.NotContains(t, calls[0].Attrs, "status")
	assert.Equal(t, "net100", calls[0].Attrs.Str("name"))
}

func TestCreate_PortTranslatesReferences(t *testing.T) {
	a, cloud, st := setupAdapter(t, resource.Remote)
	seedActive(t, st, resource.KindNetwork, "vlan_100_default", "L1", "R1")
	seedActive(t, st, resource.KindSubnet, "10.0.0.0/24_R1", "LS1", "RS1")

	_, err := a.Create(context.Background(), resource.KindPort, resource.Attrs{
		"network_id": resource.String("L1"),
		"fixed_ips": resource.List{
			resource.Attrs{"subnet_id": resource.String("LS1"), "ip_address": resource.String("10.0.0.5")},
			resource.Attrs{"subnet_id": resource.String("LS6"), "ip_address": resource.String("fd00::5")},
		},
	})
	require.NoError(t, err)

	calls := cloud.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "R1", calls[0].Attrs.Str("network_id"))
	ips := resource.NewObject(resource.KindPort, "", calls[0].Attrs).FixedIPs()
	assert.Equal(t, []resource.FixedIP{{SubnetID: "RS1", IPAddress: "10.0.0.5"}}, ips)
}

func TestCreate_PortMissingSubnetMapping(t *testing.T) {
	a, cloud, st := setupAdapter(t, resource.Remote)
	seedActive(t, st, resource.KindNetwork, "vlan_100_default", "L1", "R1")

	_, err := a.Create(context.Background(), resource.KindPort, resource.Attrs{
		"network_id": resource.String("L1"),
		"fixed_ips": resource.List{
			resource.Attrs{"subnet_id": resource.String("LS1"), "ip_address": resource.String("10.0.0.5")},
		},
	})
	assert.ErrorIs(t, err, endpoint.ErrUntranslatable)
	assert.Empty(t, cloud.Calls())
}

func TestCreate_PortWithoutIPv4(t *testing.T) {
	a, cloud, st := setupAdapter(t, resource.Remote)
	seedActive(t, st, resource.KindNetwork, "vlan_100_default", "L1", "R1")

	_, err := a.Create(context.Background(), resource.KindPort, resource.Attrs{
		"network_id": resource.String("L1"),
		"fixed_ips":  resource.List{resource.Attrs{"ip_address": resource.String("fd00::5")}},
	})
	assert.ErrorIs(t, err, endpoint.ErrUntranslatable)
	assert.Empty(t, cloud.Calls())
}

func TestCreate_SubnetMissingNetwork(t *testing.T) {
	a, cloud, _ := setupAdapter(t, resource.Local)

	_, err := a.Create(context.Background(), resource.KindSubnet, resource.Attrs{
		"network_id": resource.String("R404"),
		"cidr":       resource.String("10.0.0.0/24"),
	})
	assert.ErrorIs(t, err, endpoint.ErrUntranslatable)
	assert.Empty(t, cloud.Calls())
}

func TestUpdate_OnlyUpdateFields(t *testing.T) {
	a, cloud, _ := setupAdapter(t, resource.Local)
	cloud.Seed(resource.NewObject(resource.KindSubnet, "LS1", resource.Attrs{"cidr": resource.String("10.0.0.0/24")}))

	sent, err := a.Update(context.Background(), resource.KindSubnet, "LS1", resource.Attrs{
		"gateway_ip": resource.String("10.0.0.3"),
		"cidr":       resource.String("10.9.0.0/24"),
	})
	require.NoError(t, err)
	assert.True(t, sent)

	calls := cloud.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, resource.Attrs{"gateway_ip": resource.String("10.0.0.3")}, calls[0].Attrs)
}

func TestUpdate_EmptyDiffIsNoop(t *testing.T) {
	a, cloud, _ := setupAdapter(t, resource.Local)

	sent, err := a.Update(context.Background(), resource.KindSubnet, "LS1", resource.Attrs{"cidr": resource.String("x")})
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Empty(t, cloud.Calls())
}

func TestDelete_NotFoundIsSuccess(t *testing.T) {
	a, _, _ := setupAdapter(t, resource.Local)
	assert.NoError(t, a.Delete(context.Background(), resource.KindNetwork, "gone"))
}

func TestDelete_OtherErrorsSurface(t *testing.T) {
	a, cloud, _ := setupAdapter(t, resource.Local)
	boom := errors.New("boom")
	cloud.Fail("delete", resource.KindNetwork, boom)

	assert.ErrorIs(t, a.Delete(context.Background(), resource.KindNetwork, "L1"), boom)
}

type slowClient struct {
	*testutil.FakeCloud
}

func (s slowClient) Get(ctx context.Context, kind resource.Kind, id string) (resource.Object, error) {
	<-ctx.Done()
	return resource.Object{}, ctx.Err()
}

func TestCall_TimeoutIsTransient(t *testing.T) {
	a := endpoint.New(resource.Local, slowClient{testutil.NewFakeCloud("L")}, nil, nil,
		endpoint.WithCallTimeout(10*time.Millisecond), endpoint.WithLogger(quietLogger()))

	_, err := a.Get(context.Background(), resource.KindNetwork, "L1")
	assert.ErrorIs(t, err, endpoint.ErrTransient)
}

func TestSubscribe_EnqueuesEventsAndFullSyncOnConnect(t *testing.T) {
	a, _, _ := setupAdapter(t, resource.Remote)
	bus := testutil.NewChannelBus()
	q := event.NewQueue(16)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Subscribe(ctx, bus, q.Enqueue) }()

	bus.Deliveries <- event.Envelope{EventType: "network.create.end", Payload: []byte(`{"network":{"id":"R5"}}`)}
	bus.Deliveries <- event.Envelope{EventType: "network.create.start", Payload: []byte(`{}`)}
	require.Eventually(t, func() bool { return q.Len() == 2 && len(bus.Deliveries) == 0 }, time.Second, 5*time.Millisecond)
	bus.Reconnect <- struct{}{}

	require.Eventually(t, func() bool { return q.Len() == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	first, _ := q.TryDequeue()
	second, _ := q.TryDequeue()
	third, _ := q.TryDequeue()
	assert.Equal(t, event.TypeFullSync, first.Type)
	assert.Equal(t, resource.Remote, first.Origin)
	assert.Equal(t, event.TypeCreate, second.Type)
	assert.Equal(t, "R5", second.ObjectID)
	assert.Equal(t, event.TypeFullSync, third.Type)
}
