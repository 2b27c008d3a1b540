package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/roach88/cloudsync/internal/driver"
	"github.com/roach88/cloudsync/internal/rpc"
	"github.com/roach88/cloudsync/internal/schedule"
	"github.com/roach88/cloudsync/internal/store"
	"github.com/roach88/cloudsync/internal/testutil"
	"github.com/roach88/cloudsync/internal/tracker"
)

// lockedBuffer is a log sink safe for the server's goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestTriggerOnSignal_RunsEveryJob(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := schedule.New(logger)
	ran := make(chan string, 4)
	require.NoError(t, sched.Add(jobFullSync, schedule.Every(time.Hour), func(context.Context) error {
		ran <- jobFullSync
		return nil
	}))
	require.NoError(t, sched.Add(jobFlavorSync, schedule.Every(time.Hour), func(context.Context) error {
		ran <- jobFlavorSync
		return errors.New("flavor endpoint down")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	done := make(chan struct{})
	go func() {
		triggerOnSignal(ctx, sched, sigs, logger)
		close(done)
	}()

	sigs <- syscall.SIGHUP
	var got []string
	for range 2 {
		select {
		case name := <-ran:
			got = append(got, name)
		case <-time.After(5 * time.Second):
			t.Fatal("jobs not triggered")
		}
	}
	// A failing job does not stop the ones after it.
	assert.Equal(t, []string{jobFlavorSync, jobFullSync}, got)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("trigger loop did not stop")
	}
	assert.Empty(t, ran)
}

func TestServeDriver_LogsInFlightOperationsAtShutdown(t *testing.T) {
	ctrl := gomock.NewController(t)
	logs := &lockedBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
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
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- serveDriver(ctx, lis, d, logger) }()

	client, conn, err := rpc.Dial(lis.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	polling := make(chan struct{})
	release := make(chan struct{})
	volumes.EXPECT().CreateVolume(gomock.Any(), gomock.Any()).Return(driver.RemoteVolume{ID: "V1", Status: "creating"}, nil)
	volumes.EXPECT().GetVolume(gomock.Any(), "V1").DoAndReturn(func(context.Context, string) (driver.RemoteVolume, error) {
		close(polling)
		<-release
		return driver.RemoteVolume{ID: "V1", Status: "available"}, nil
	})

	created := make(chan error, 1)
	go func() {
		callCtx, callCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer callCancel()
		_, err := client.CreateVolume(callCtx, driver.Volume{ID: "vol-1", Name: "data", SizeGB: 1})
		created <- err
	}()

	select {
	case <-polling:
	case <-time.After(5 * time.Second):
		t.Fatal("volume never polled")
	}
	assert.Len(t, d.InFlight(), 1)

	cancel()
	assert.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "waiting for driver operation")
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, logs.String(), "resource_id=V1")
	close(release)

	// The server drains the call before stopping.
	select {
	case err := <-created:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("create did not finish")
	}
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("driver service did not stop")
	}
	assert.Empty(t, d.InFlight())
}
