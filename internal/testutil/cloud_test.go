package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cloudsync/internal/endpoint"
	"github.com/roach88/cloudsync/internal/resource"
)

func TestFakeCloud_DeterministicIDs(t *testing.T) {
	c := NewFakeCloud("R")
	ctx := context.Background()

	a, err := c.Create(ctx, resource.KindNetwork, resource.Attrs{"name": resource.String("a")})
	require.NoError(t, err)
	b, err := c.Create(ctx, resource.KindSubnet, resource.Attrs{"name": resource.String("b")})
	require.NoError(t, err)

	assert.Equal(t, "R1", a.ID)
	assert.Equal(t, "R2", b.ID)
	assert.Equal(t, "R1", a.Attrs.Str("id"))
	require.Len(t, c.Calls(), 2)
	assert.Equal(t, "R1", c.Calls()[0].ID)
}

func TestFakeCloud_NotFoundAndFaults(t *testing.T) {
	c := NewFakeCloud("L")
	ctx := context.Background()

	_, err := c.Get(ctx, resource.KindPort, "missing")
	assert.ErrorIs(t, err, endpoint.ErrNotFound)
	assert.ErrorIs(t, c.Delete(ctx, resource.KindPort, "missing"), endpoint.ErrNotFound)

	boom := errors.New("boom")
	c.Fail("list", resource.KindNetwork, boom)
	_, err = c.List(ctx, resource.KindNetwork)
	assert.ErrorIs(t, err, boom)

	c.Heal()
	_, err = c.List(ctx, resource.KindNetwork)
	assert.NoError(t, err)
}

func TestFakeCloud_SeedIsolation(t *testing.T) {
	c := NewFakeCloud("L")
	c.Seed(resource.NewObject(resource.KindNetwork, "L7", resource.Attrs{"name": resource.String("x")}))

	got, ok := c.Object(resource.KindNetwork, "L7")
	require.True(t, ok)
	got.Attrs["name"] = resource.String("mutated")

	again, _ := c.Object(resource.KindNetwork, "L7")
	assert.Equal(t, "x", again.Attrs.Str("name"))
	assert.Empty(t, c.Calls())
}

func TestFakeCloud_SeedAdvancesIDs(t *testing.T) {
	c := NewFakeCloud("R")
	c.Seed(resource.NewObject(resource.KindNetwork, "R2", nil))
	c.Seed(resource.NewObject(resource.KindSubnet, "RS1", nil))

	obj, err := c.Create(context.Background(), resource.KindNetwork, resource.Attrs{})
	require.NoError(t, err)
	assert.Equal(t, "R3", obj.ID)
}
