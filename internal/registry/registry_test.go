package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"comport-service/internal/model"
)

type collector struct {
	mu     sync.Mutex
	events []model.PortEvent
}

func (c *collector) Publish(event model.PortEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *collector) types() []model.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.EventType, len(c.events))
	for i, e := range c.events {
		out[i] = e.EventType
	}
	return out
}

func newTestRegistry(t *testing.T) (*Registry, *collector) {
	t.Helper()
	events := &collector{}
	r := New(model.DefaultNaming(), events, zap.NewNop())
	t.Cleanup(r.Close)
	return r, events
}

func TestRegistry_InsertKeepsAscendingOrder(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Update(ctx, "test", func(tx *Tx) {
		assert.NoError(t, tx.Insert(17, "DEV-C", model.StateNormal))
		assert.NoError(t, tx.Insert(3, "DEV-A", model.StateNormal))
		assert.NoError(t, tx.Insert(9, "DEV-B", model.StateNewest))
		assert.Error(t, tx.Insert(9, "DEV-X", model.StateNewest))
		assert.Error(t, tx.Insert(256, "DEV-Y", model.StateNewest))
	}))

	ports, err := r.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, ports, 3)
	assert.Equal(t, []string{"COM3", "COM9", "COM17"}, []string{ports[0].Name, ports[1].Name, ports[2].Name})
	assert.Equal(t, model.StateNewest, ports[1].State)
}

func TestRegistry_RemovedClearsOwner(t *testing.T) {
	r, events := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Update(ctx, "test", func(tx *Tx) {
		assert.NoError(t, tx.Insert(4, "DEV-A", model.StateNormal))
		tx.SetOwner(4, model.StringPtr("putty"))
		tx.SetState(4, model.StateRemoved)
	}))

	port, found, err := r.Get(ctx, 4)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, model.StateRemoved, port.State)
	assert.Nil(t, port.ProcessName)

	assert.Equal(t, []model.EventType{
		model.EventPortAdded,
		model.EventPortOwnerChanged,
		model.EventPortStateChanged,
		model.EventPortOwnerChanged,
	}, events.types())
}

func TestRegistry_SetOwnersSkipsRemoved(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Update(ctx, "test", func(tx *Tx) {
		assert.NoError(t, tx.Insert(1, "DEV-A", model.StateNormal))
		assert.NoError(t, tx.Insert(2, "DEV-B", model.StateNormal))
		assert.NoError(t, tx.Insert(3, "DEV-C", model.StateRemoved))
		tx.SetOwner(2, model.StringPtr("stale"))
		tx.SetOwners(map[string]string{"DEV-A": "putty", "DEV-C": "ghost"})
	}))

	ports, err := r.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "putty", ports[0].Owner())
	assert.Nil(t, ports[1].ProcessName)
	assert.Nil(t, ports[2].ProcessName)
}

func TestRegistry_UnchangedValuesEmitNothing(t *testing.T) {
	r, events := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Update(ctx, "test", func(tx *Tx) {
		assert.NoError(t, tx.Insert(5, "DEV-A", model.StateNormal))
		tx.SetDescription(5, "USB Serial")
		tx.SetDescription(5, "USB Serial")
		tx.SetState(5, model.StateNormal)
		tx.SetOwner(5, nil)
	}))

	assert.Equal(t, []model.EventType{model.EventPortAdded, model.EventPortDescription}, events.types())
}

func TestRegistry_DeviceNamesAndRemove(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Update(ctx, "test", func(tx *Tx) {
		assert.NoError(t, tx.Insert(1, "DEV-A", model.StateNormal))
		assert.NoError(t, tx.Insert(2, "DEV-B", model.StateNormal))
		assert.True(t, tx.Remove(1))
		assert.False(t, tx.Remove(1))
	}))

	names, err := r.DeviceNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"DEV-B": {}}, names)
}

func TestRegistry_ClosedAndCancelled(t *testing.T) {
	r := New(model.DefaultNaming(), nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Snapshot(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	r.Close()
	r.Close()

	_, err = r.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
