package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"comport-service/internal/handles"
	"comport-service/internal/model"
	"comport-service/internal/registry"
	"comport-service/internal/repository"
)

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()

	reg := registry.New(model.DefaultNaming(), nil, zap.NewNop())
	t.Cleanup(reg.Close)

	err := reg.Update(context.Background(), "test", func(tx *registry.Tx) {
		assert.NoError(t, tx.Insert(1, `\Device\Serial0`, model.StateNormal))
		assert.NoError(t, tx.Insert(5, `\Device\Serial1`, model.StateNewest))
		assert.NoError(t, tx.Insert(9, `\Device\VCP0`, model.StateNormal))
		tx.SetOwner(9, model.StringPtr("putty"))
	})
	require.NoError(t, err)
	return reg
}

func TestPortService_ListPorts(t *testing.T) {
	svc := NewPortService(newRegistry(t), nil, zap.NewNop())
	ctx := context.Background()

	ports, err := svc.ListPorts(ctx, nil)
	require.NoError(t, err)
	require.Len(t, ports, 3)
	assert.Equal(t, "COM1", ports[0].Name)

	normal := model.StateNormal
	ports, err = svc.ListPorts(ctx, &PortFilter{State: &normal})
	require.NoError(t, err)
	assert.Len(t, ports, 2)

	owned := true
	ports, err = svc.ListPorts(ctx, &PortFilter{Owned: &owned})
	require.NoError(t, err)
	require.Len(t, ports, 1)
	assert.Equal(t, 9, ports[0].Number)
}

func TestPortService_GetPort(t *testing.T) {
	svc := NewPortService(newRegistry(t), nil, zap.NewNop())

	port, err := svc.GetPort(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, model.StateNewest, port.State)

	_, err = svc.GetPort(context.Background(), 6)
	assert.ErrorIs(t, err, ErrPortNotFound)
}

func TestPortService_HistoryWithoutRepository(t *testing.T) {
	svc := NewPortService(newRegistry(t), nil, zap.NewNop())

	events, err := svc.GetHistory(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Empty(t, events)
}

type fakeInspector struct {
	pids    []int32
	handles map[int32][]handles.HandleInfo
	err     error
}

func (f *fakeInspector) QueryPIDs(context.Context) ([]int32, error) {
	return f.pids, f.err
}

func (f *fakeInspector) QueryHandles(_ context.Context, pid int32) ([]handles.HandleInfo, error) {
	return f.handles[pid], f.err
}

type fakeNamer map[int32]string

func (f fakeNamer) Name(_ context.Context, pid int32) (string, error) {
	if name, ok := f[pid]; ok {
		return name, nil
	}
	return "", errors.New("access denied")
}

func TestInspectorService(t *testing.T) {
	inspector := &fakeInspector{
		pids: []int32{4, 100},
		handles: map[int32][]handles.HandleInfo{
			100: {{Handle: 8, Name: model.StringPtr(`\Device\Serial0`), Status: handles.StatusSuccess}},
		},
	}
	svc := NewInspectorService(inspector, fakeNamer{100: "putty"}, zap.NewNop())
	require.True(t, svc.Available())

	processes, err := svc.ListProcesses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ProcessInfo{{PID: 4, Name: model.UnknownProcess}, {PID: 100, Name: "putty"}}, processes)

	infos, err := svc.ListHandles(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, int32(8), infos[0].Handle)

	inspector.err = handles.ErrStopped
	_, err = svc.ListProcesses(context.Background())
	assert.ErrorIs(t, err, handles.ErrStopped)
}

func TestInspectorService_Unavailable(t *testing.T) {
	svc := NewInspectorService(nil, nil, zap.NewNop())

	assert.False(t, svc.Available())
	_, err := svc.ListProcesses(context.Background())
	assert.ErrorIs(t, err, ErrInspectorUnavailable)
	_, err = svc.ListHandles(context.Background(), 1)
	assert.ErrorIs(t, err, ErrInspectorUnavailable)
}

func TestHistoryRecorder(t *testing.T) {
	repo := repository.NewMemoryPortEventRepository(10)
	events := make(chan model.PortEvent, 4)

	recorder := NewHistoryRecorder(repo, events, 24*time.Hour, zap.NewNop())

	port := &model.Port{Number: 3, Name: "COM3", State: model.StateNewest}
	events <- model.NewPortEvent(model.EventPortAdded, port, "presence", nil)
	events <- model.NewPortEvent(model.EventPortStateChanged, port, "presence", model.JSONObject{"from": "NEWEST", "to": "NORMAL"})
	close(events)

	select {
	case <-recorder.Done():
	case <-time.After(time.Second):
		t.Fatal("recorder did not stop after the channel closed")
	}

	svc := NewPortService(newRegistry(t), repo, zap.NewNop())
	history, err := svc.GetHistory(context.Background(), 3, nil)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.EventPortStateChanged, history[0].EventType)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, recorder.Stop(ctx))
}
