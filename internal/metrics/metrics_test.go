package metrics

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comport-service/internal/handles"
	"comport-service/internal/model"
)

type fakeSnapshotter struct {
	ports []model.Port
	err   error
}

func (f fakeSnapshotter) Snapshot(context.Context) ([]model.Port, error) {
	return f.ports, f.err
}

func TestMetrics_Observers(t *testing.T) {
	m := New()

	m.ObserveCycle("handles", 10*time.Millisecond, nil)
	m.ObserveCycle("handles", 10*time.Millisecond, errors.New("boom"))
	m.ObserveStatus(handles.StatusSuccess)
	m.ObserveStatus(handles.StatusSuccess)
	m.ObserveStatus(handles.StatusInvalidType)
	m.ObserveChannelFault()
	m.SetCacheSize(12, 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycleErrors.WithLabelValues("handles")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.workerStatuses.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.workerStatuses.WithLabelValues("invalid_type")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.channelFaults))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.cacheEntries))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.cacheProcesses))
}

func TestPortCollector(t *testing.T) {
	owner := "putty"
	ports := []model.Port{
		{Number: 1, Name: "COM1", State: model.StateNormal, ProcessName: &owner},
		{Number: 2, Name: "COM2", State: model.StateNormal},
		{Number: 9, Name: "COM9", State: model.StateRemoved},
	}

	c := NewPortCollector(fakeSnapshotter{ports: ports})

	// registry_up + ports_owned + 3 states + 3 port_info
	assert.Equal(t, 8, testutil.CollectAndCount(c))

	expected := `
# HELP comport_ports_owned Tracked serial ports currently held open by a process.
# TYPE comport_ports_owned gauge
comport_ports_owned 1
`
	assert.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected), "comport_ports_owned"))
}

func TestPortCollector_RegistryDown(t *testing.T) {
	c := NewPortCollector(fakeSnapshotter{err: context.DeadlineExceeded})
	assert.Equal(t, 1, testutil.CollectAndCount(c))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	require.NoError(t, m.Register(
		CounterFunc("events_dropped_total", "Dropped events.", func() float64 { return 4 }),
		GaugeFunc("registry_ports", "Ports.", func() float64 { return 2 }),
	))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, "comport_events_dropped_total 4")
	assert.Contains(t, body, "comport_registry_ports 2")
}
