package rpc

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/roach88/cloudsync/internal/driver"
	"github.com/roach88/cloudsync/internal/testutil"
	"github.com/roach88/cloudsync/internal/tracker"
)

type harness struct {
	client  *Client
	volumes *driver.MockVolumeAPI
	compute *driver.MockComputeAPI
	records *driver.MockRecordStore
}

func startServer(t *testing.T) harness {
	t.Helper()
	ctrl := gomock.NewController(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := harness{
		volumes: driver.NewMockVolumeAPI(ctrl),
		compute: driver.NewMockComputeAPI(ctrl),
		records: driver.NewMockRecordStore(ctrl),
	}
	tr := tracker.New(tracker.WithClock(testutil.NewFakeClock()), tracker.WithLogger(logger))
	d, err := driver.New(driver.Config{}, h.volumes, h.compute, h.records, driver.NewMockNetworkTranslator(ctrl), tr, driver.WithLogger(logger))
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(d, logger)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	client, conn, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	h.client = client
	return h
}

func TestCreateVolumeOverRPC(t *testing.T) {
	h := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h.volumes.EXPECT().CreateVolume(gomock.Any(), gomock.Any()).Return(driver.RemoteVolume{ID: "V1", Status: "creating"}, nil)
	h.records.EXPECT().SaveMetadata(gomock.Any(), "local-1", gomock.Any()).Return(nil)
	h.volumes.EXPECT().GetVolume(gomock.Any(), "V1").Return(driver.RemoteVolume{ID: "V1", Status: "available"}, nil)

	upd, err := h.client.CreateVolume(ctx, driver.Volume{ID: "local-1", Name: "data", SizeGB: 1})
	require.NoError(t, err)
	assert.Equal(t, driver.Update{Status: "available", Metadata: map[string]string{driver.MetadataKey: "V1"}}, upd)
}

func TestCreateVolume_StructMessages(t *testing.T) {
	h := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h.volumes.EXPECT().CreateVolume(gomock.Any(), driver.VolumeRequest{Name: "data", SizeGB: 2}).
		Return(driver.RemoteVolume{ID: "V1", Status: "available"}, nil)
	h.records.EXPECT().SaveMetadata(gomock.Any(), "local-1", gomock.Any()).Return(nil)
	h.volumes.EXPECT().GetVolume(gomock.Any(), "V1").Return(driver.RemoteVolume{ID: "V1", Status: "available"}, nil)

	req, err := structpb.NewStruct(map[string]any{
		"volume": map[string]any{"id": "local-1", "name": "data", "size_gb": 2},
	})
	require.NoError(t, err)
	resp := new(structpb.Struct)
	require.NoError(t, h.client.cc.Invoke(ctx, "/"+ServiceName+"/CreateVolume", req, resp))

	assert.Equal(t, "available", resp.GetFields()["status"].GetStringValue())
	md := resp.GetFields()["metadata"].GetStructValue()
	require.NotNil(t, md)
	assert.Equal(t, "V1", md.GetFields()[driver.MetadataKey].GetStringValue())
}

func TestMalformedRequestRejected(t *testing.T) {
	h := startServer(t)
	req, err := structpb.NewStruct(map[string]any{"volume": "not an object"})
	require.NoError(t, err)

	err = h.client.cc.Invoke(context.Background(), "/"+ServiceName+"/DeleteVolume", req, &emptypb.Empty{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestDeleteVolume_EmptyReply(t *testing.T) {
	h := startServer(t)

	// No remote id: the driver warns and succeeds without calling the cloud.
	require.NoError(t, h.client.DeleteVolume(context.Background(), driver.Volume{ID: "local-1"}))
}

func TestStatsOverRPC(t *testing.T) {
	h := startServer(t)
	h.volumes.EXPECT().ListStoragePools(gomock.Any()).Return([]driver.StoragePool{
		{Name: "p1", Group: "g", TotalCapacityGB: 10, FreeCapacityGB: 4},
	}, nil)

	stats, err := h.client.GetVolumeStats(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 10.0, stats.TotalCapacityGB)
	assert.Equal(t, []string{"p1"}, stats.Pools)
}

func TestErrorsMapToCodes(t *testing.T) {
	h := startServer(t)
	ctx := context.Background()

	_, err := h.client.PowerOnInstance(ctx, driver.Instance{ID: "i1"})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.ErrorIs(t, err, driver.ErrNoRemoteID)

	h.compute.EXPECT().DeleteServer(gomock.Any(), "S1").Return(assert.AnError)
	err = h.client.DestroyInstance(ctx, driver.Instance{ID: "i1", Metadata: map[string]string{driver.MetadataKey: "S1"}})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestToStatus_TrackerFailures(t *testing.T) {
	err := toStatus(&tracker.Failure{ResourceID: "V1", Reason: tracker.ReasonTimeout, Status: "creating"})
	assert.Equal(t, codes.DeadlineExceeded, status.Code(err))

	err = toStatus(&tracker.Failure{ResourceID: "V1", Reason: tracker.ReasonNotFound})
	assert.Equal(t, codes.NotFound, status.Code(err))
}
