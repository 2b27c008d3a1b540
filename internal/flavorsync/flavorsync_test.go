package flavorsync_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cloudsync/internal/flavorsync"
	"github.com/roach88/cloudsync/internal/testutil"
)

func public(id, name string, specs map[string]string) flavorsync.Flavor {
	return flavorsync.Flavor{ID: id, Name: name, VCPUs: 1, RAM: 512, Disk: 1, IsPublic: true, ExtraSpecs: specs}
}

func newSyncer(t *testing.T, cfg flavorsync.Config, remote, local *testutil.FakeFlavors) *flavorsync.Syncer {
	t.Helper()
	s, err := flavorsync.New(cfg, remote, local, flavorsync.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return s
}

func TestSync_AllowlistGateDenylistOverride(t *testing.T) {
	remote := testutil.NewFakeFlavors(
		public("1", "m1.tiny", nil),
		public("2", "m1.small", nil),
		public("3", "c1.large", nil),
	)
	local := testutil.NewFakeFlavors()
	s := newSyncer(t, flavorsync.Config{
		Prefix:    "remote-",
		Allowlist: []string{`m1\..*`},
		Denylist:  []string{`m1\.tiny`},
	}, remote, local)

	report, err := s.Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"remote-m1.small"}, local.Names())
	fl, ok := local.Flavor("remote-2")
	require.True(t, ok)
	assert.True(t, fl.IsPublic)
	assert.Equal(t, 512, fl.RAM)
	assert.Equal(t, []string{"m1.small"}, report.Imported)
	assert.Equal(t, []string{"c1.large", "m1.tiny"}, report.Skipped)
}

func TestSync_EmptyAllowlistAllowsAll(t *testing.T) {
	remote := testutil.NewFakeFlavors(public("1", "a", nil), public("2", "b", nil))
	local := testutil.NewFakeFlavors()
	s := newSyncer(t, flavorsync.Config{Prefix: "p-"}, remote, local)

	_, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"p-a", "p-b"}, local.Names())
}

func TestSync_PatternsMatchWholeName(t *testing.T) {
	remote := testutil.NewFakeFlavors(public("1", "m1.small", nil), public("2", "xm1.small", nil))
	local := testutil.NewFakeFlavors()
	s := newSyncer(t, flavorsync.Config{Allowlist: []string{`m1\.small`}}, remote, local)

	_, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"m1.small"}, local.Names())
}

func TestSync_StorageConnectivityGroup(t *testing.T) {
	remote := testutil.NewFakeFlavors(
		public("1", "ok", map[string]string{flavorsync.SCGExtraSpec: "scg-a"}),
		public("2", "blocked", map[string]string{flavorsync.SCGExtraSpec: "scg-b"}),
		public("3", "plain", nil),
	)
	local := testutil.NewFakeFlavors()
	s := newSyncer(t, flavorsync.Config{AllowedSCGs: []string{"scg-a"}}, remote, local)

	report, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ok", "plain"}, local.Names())
	assert.Equal(t, []string{"blocked"}, report.Skipped)
}

func TestSync_PrivateFlavorsSkipped(t *testing.T) {
	private := public("1", "secret", nil)
	private.IsPublic = false
	remote := testutil.NewFakeFlavors(private)
	local := testutil.NewFakeFlavors()

	report, err := newSyncer(t, flavorsync.Config{}, remote, local).Sync(context.Background())
	require.NoError(t, err)
	assert.Empty(t, local.Names())
	assert.Equal(t, []string{"secret"}, report.Skipped)
}

func TestSync_IdempotentAndUpdatesExtraSpecs(t *testing.T) {
	remote := testutil.NewFakeFlavors(public("1", "m1.small", map[string]string{"hw:cpu": "1"}))
	local := testutil.NewFakeFlavors()
	s := newSyncer(t, flavorsync.Config{Prefix: "r-"}, remote, local)
	ctx := context.Background()

	_, err := s.Sync(ctx)
	require.NoError(t, err)
	report, err := s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1.small"}, report.Unchanged)
	assert.Equal(t, []string{"create:r-1"}, local.Writes())

	require.NoError(t, remote.UpdateExtraSpecs(ctx, "1", map[string]string{"hw:cpu": "2"}))
	report, err = s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1.small"}, report.Updated)
	fl, _ := local.Flavor("r-1")
	assert.Equal(t, "2", fl.ExtraSpecs["hw:cpu"])
}

func TestNew_InvalidPattern(t *testing.T) {
	_, err := flavorsync.New(flavorsync.Config{Denylist: []string{"("}}, nil, nil)
	assert.ErrorContains(t, err, "denylist")
}
