package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveMetadata_Upserts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveMetadata(ctx, "vol-1", map[string]string{"cloudsync:id": "V1", "zone": "a"}))
	require.NoError(t, s.SaveMetadata(ctx, "vol-1", map[string]string{"cloudsync:id": "V2"}))

	md, err := s.Metadata(ctx, "vol-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"cloudsync:id": "V2", "zone": "a"}, md)

	md, err = s.Metadata(ctx, "vol-2")
	require.NoError(t, err)
	assert.Empty(t, md)
}

func TestSaveMetadata_Rejects(t *testing.T) {
	s := createTestStore(t)
	assert.Error(t, s.SaveMetadata(context.Background(), "", map[string]string{"k": "v"}))
}
