package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/cloudsync/internal/resource"
)

// createTestStore opens a fresh store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestMapping builds an ACTIVE network mapping for syncKey.
func createTestMapping(syncKey, localID, remoteID string) resource.Mapping {
	return resource.Mapping{
		ID:         resource.MustMappingID(resource.KindNetwork, syncKey),
		Kind:       resource.KindNetwork,
		Status:     resource.StatusActive,
		SyncKey:    syncKey,
		LocalID:    localID,
		RemoteID:   remoteID,
		UpdateData: `{"name":"n"}`,
	}
}
