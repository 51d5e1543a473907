package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beehive-cloud/beehive-resource/pkg/engine"
)

func TestBackend_StatusSequence(t *testing.T) {
	b := NewBackend("openstack", "10")
	b.SetStatusSequence("network", "BUILD", "BUILD", "ACTIVE")
	ctx := context.Background()

	e, err := b.Create(ctx, "network", engine.Entity{"name": "net1"})
	require.NoError(t, err)
	assert.Equal(t, "BUILD", e.Status())
	assert.Equal(t, "net1", e["name"])

	var statuses []string
	for i := 0; i < 4; i++ {
		got, err := b.Get(ctx, "network", e.ID())
		require.NoError(t, err)
		statuses = append(statuses, got.Status())
	}
	assert.Equal(t, []string{"BUILD", "ACTIVE", "ACTIVE", "ACTIVE"}, statuses)
}

func TestBackend_DeleteAndNotFound(t *testing.T) {
	b := NewBackend("openstack", "10")
	ctx := context.Background()

	e, err := b.Create(ctx, "router", engine.Entity{})
	require.NoError(t, err)
	require.NoError(t, b.Delete(ctx, "router", e.ID()))

	_, err = b.Get(ctx, "router", e.ID())
	assert.True(t, engine.IsNotFound(err))
	assert.True(t, engine.IsNotFound(b.Delete(ctx, "router", e.ID())))
	assert.Equal(t, 2, b.CallCount("delete", "router"))
}

func TestBackend_StatusOnDelete(t *testing.T) {
	b := NewBackend("openstack", "10")
	b.StatusOnDelete("network", "ERROR")
	ctx := context.Background()

	e, err := b.Create(ctx, "network", engine.Entity{})
	require.NoError(t, err)
	require.NoError(t, b.Delete(ctx, "network", e.ID()))

	got, err := b.Get(ctx, "network", e.ID())
	require.NoError(t, err)
	assert.Equal(t, "ERROR", got.Status())
	assert.Equal(t, 1, b.Len("network"))
}

func TestBackend_FailOn(t *testing.T) {
	b := NewBackend("vsphere", "20")
	ctx := context.Background()
	boom := errors.New("boom")

	b.FailOn("create", "volume", boom)
	_, err := b.Create(ctx, "volume", engine.Entity{})
	assert.ErrorIs(t, err, boom)

	b.FailOn("create", "volume", nil)
	_, err = b.Create(ctx, "volume", engine.Entity{})
	assert.NoError(t, err)
}

func TestBackend_UpdateAndList(t *testing.T) {
	b := NewBackend("openstack", "10")
	b.SetStatus("volume", "available")
	ctx := context.Background()

	v1, _ := b.Create(ctx, "volume", engine.Entity{"size": 10})
	_, _ = b.Create(ctx, "volume", engine.Entity{"size": 20})

	updated, err := b.Update(ctx, "volume", v1.ID(), engine.Entity{"size": 30, "id": "hijack"})
	require.NoError(t, err)
	assert.Equal(t, 30, updated["size"])
	assert.Equal(t, v1.ID(), updated.ID())

	_, err = b.Update(ctx, "volume", "missing", engine.Entity{})
	assert.True(t, engine.IsNotFound(err))

	all, err := b.List(ctx, "volume", nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	big, err := b.List(ctx, "volume", engine.Entity{"size": 30})
	require.NoError(t, err)
	require.Len(t, big, 1)
	assert.Equal(t, "available", big[0].Status())
}

func TestConnector(t *testing.T) {
	b := NewBackend("openstack", "10")
	c := NewConnector(b)
	ctx := context.Background()

	got, err := c.Connect(ctx, "10", "")
	require.NoError(t, err)
	assert.Equal(t, "openstack", got.Type())
	assert.Equal(t, 1, c.Connects())

	_, err = c.Connect(ctx, "99", "")
	assert.True(t, engine.IsBackendUnavailable(err))

	c.FailConnect(errors.New("auth failed"))
	_, err = c.Connect(ctx, "10", "")
	assert.Error(t, err)

	c.FailConnect(nil)
	c.Add(NewBackend("vsphere", "20"))
	assert.Equal(t, "vsphere", c.Backend("20").Type())
}

func TestBackend_NextID(t *testing.T) {
	ctx := context.Background()
	b := NewBackend("openstack", "c1")
	b.NextID("network", "ext-123")

	e, err := b.Create(ctx, "network", engine.Entity{"name": "net1"})
	require.NoError(t, err)
	assert.Equal(t, "ext-123", e.ID())

	e, err = b.Create(ctx, "network", engine.Entity{"name": "net2"})
	require.NoError(t, err)
	assert.Equal(t, "network-2", e.ID())
}
