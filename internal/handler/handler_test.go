package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"comport-service/internal/config"
	"comport-service/internal/handles"
	"comport-service/internal/model"
	"comport-service/internal/registry"
	"comport-service/internal/repository"
	"comport-service/internal/service"
	"comport-service/internal/utils"
)

type envelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Error     *utils.APIError `json:"error"`
	RequestID string          `json:"request_id"`
}

type list[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func newRegistry(t *testing.T, publisher registry.Publisher) *registry.Registry {
	t.Helper()

	reg := registry.New(model.DefaultNaming(), publisher, zap.NewNop())
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

func newAPI(reg *registry.Registry, history repository.PortEventRepository, inspector service.HandleInspector) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(utils.RequestIDKey, "req-1")
	})

	api := router.Group("/api/v1")
	NewPortHandler(service.NewPortService(reg, history, logger), logger).RegisterRoutes(api)
	NewProcessHandler(service.NewInspectorService(inspector, nil, logger), logger).RegisterRoutes(api)
	return router
}

func get(t *testing.T, router http.Handler, path string) (int, envelope) {
	t.Helper()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var body envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w.Code, body
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestPortHandler_ListPorts(t *testing.T) {
	router := newAPI(newRegistry(t, nil), nil, nil)

	code, body := get(t, router, "/api/v1/ports")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, body.Success)
	assert.Equal(t, "req-1", body.RequestID)
	ports := decode[list[model.Port]](t, body.Data)
	require.Equal(t, 3, ports.Count)
	assert.Equal(t, "COM1", ports.Items[0].Name)
	assert.Equal(t, model.StateNewest, ports.Items[1].State)

	_, body = get(t, router, "/api/v1/ports?state=NORMAL")
	assert.Equal(t, 2, decode[list[model.Port]](t, body.Data).Count)

	_, body = get(t, router, "/api/v1/ports?owned=true")
	owned := decode[list[model.Port]](t, body.Data)
	require.Equal(t, 1, owned.Count)
	assert.Equal(t, "putty", owned.Items[0].Owner())

	_, body = get(t, router, "/api/v1/ports?owned=false&state=NORMAL")
	assert.Equal(t, 1, decode[list[model.Port]](t, body.Data).Count)
}

func TestPortHandler_ListPortsInvalidFilter(t *testing.T) {
	router := newAPI(newRegistry(t, nil), nil, nil)

	code, body := get(t, router, "/api/v1/ports?state=gone&owned=maybe")
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)

	errs := decode[map[string]map[string]string](t, body.Data)["validation_errors"]
	assert.Contains(t, errs, "state")
	assert.Contains(t, errs, "owned")
}

func TestPortHandler_GetPort(t *testing.T) {
	router := newAPI(newRegistry(t, nil), nil, nil)

	code, body := get(t, router, "/api/v1/ports/5")
	require.Equal(t, http.StatusOK, code)
	port := decode[model.Port](t, body.Data)
	assert.Equal(t, "COM5", port.Name)
	assert.Equal(t, `\Device\Serial1`, port.DeviceName)

	code, body = get(t, router, "/api/v1/ports/6")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)

	code, _ = get(t, router, "/api/v1/ports/COM5")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPortHandler_GetPortHistory(t *testing.T) {
	ctx := context.Background()
	history := repository.NewMemoryPortEventRepository(10)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	port := &model.Port{Number: 1, Name: "COM1", State: model.StateNewest}
	for i, eventType := range []model.EventType{model.EventPortAdded, model.EventPortStateChanged, model.EventPortOwnerChanged} {
		event := model.NewPortEvent(eventType, port, "presence", nil)
		event.Timestamp = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, history.Create(ctx, &event))
	}

	router := newAPI(newRegistry(t, nil), history, nil)

	code, body := get(t, router, "/api/v1/ports/1/history")
	require.Equal(t, http.StatusOK, code)
	events := decode[list[model.PortEvent]](t, body.Data)
	require.Equal(t, 3, events.Count)
	assert.Equal(t, model.EventPortOwnerChanged, events.Items[0].EventType)

	_, body = get(t, router, "/api/v1/ports/1/history?limit=1")
	assert.Equal(t, 1, decode[list[model.PortEvent]](t, body.Data).Count)

	_, body = get(t, router, "/api/v1/ports/1/history?since="+base.Add(time.Minute).Format(time.RFC3339))
	assert.Equal(t, 2, decode[list[model.PortEvent]](t, body.Data).Count)

	code, _ = get(t, router, "/api/v1/ports/1/history?limit=0")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = get(t, router, "/api/v1/ports/1/history?since=yesterday")
	assert.Equal(t, http.StatusBadRequest, code)
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

func TestProcessHandler(t *testing.T) {
	inspector := &fakeInspector{
		pids: []int32{4, 812},
		handles: map[int32][]handles.HandleInfo{
			812: {
				{Handle: 4, Name: model.StringPtr(`\Device\Serial0`), Status: handles.StatusSuccess},
				{Handle: 8, Status: handles.StatusInvalidType},
			},
		},
	}
	router := newAPI(newRegistry(t, nil), nil, inspector)

	code, body := get(t, router, "/api/v1/processes")
	require.Equal(t, http.StatusOK, code)
	processes := decode[list[service.ProcessInfo]](t, body.Data)
	require.Equal(t, 2, processes.Count)
	assert.Equal(t, service.ProcessInfo{PID: 4, Name: model.UnknownProcess}, processes.Items[0])

	code, body = get(t, router, "/api/v1/processes/812/handles")
	require.Equal(t, http.StatusOK, code)
	infos := decode[list[handles.HandleInfo]](t, body.Data)
	require.Equal(t, 2, infos.Count)
	assert.Equal(t, `\Device\Serial0`, *infos.Items[0].Name)
	assert.Nil(t, infos.Items[1].Name)

	code, _ = get(t, router, "/api/v1/processes/pid/handles")
	assert.Equal(t, http.StatusBadRequest, code)

	inspector.err = handles.ErrStopped
	code, _ = get(t, router, "/api/v1/processes")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	inspector.err = context.DeadlineExceeded
	code, body = get(t, router, "/api/v1/processes/812/handles")
	assert.Equal(t, http.StatusGatewayTimeout, code)
	assert.Equal(t, "GATEWAY_TIMEOUT", body.Error.Code)
}

func TestProcessHandler_Unavailable(t *testing.T) {
	router := newAPI(newRegistry(t, nil), nil, nil)

	code, body := get(t, router, "/api/v1/processes")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrPortNotFound, http.StatusNotFound},
		{fmt.Errorf("failed to read port: %w", registry.ErrClosed), http.StatusServiceUnavailable},
		{service.ErrInspectorUnavailable, http.StatusServiceUnavailable},
		{context.Canceled, http.StatusRequestTimeout},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, errorStatus(tt.err), tt.err.Error())
	}
}

type fakeWorker struct {
	running  bool
	restarts uint64
}

func (f fakeWorker) Running() bool    { return f.running }
func (f fakeWorker) Restarts() uint64 { return f.restarts }

func newHealthRouter(h *HealthHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h.RegisterRoutes(router.Group(""))
	return router
}

func healthConfig() *config.Config {
	return &config.Config{App: config.AppConfig{Name: "comport-service", Version: "1.0.0"}}
}

func serve(router http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthHandler(t *testing.T) {
	reg := newRegistry(t, nil)
	router := newHealthRouter(NewHealthHandler(nil, reg, nil, healthConfig(), zap.NewNop()))

	w := serve(router, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "1.0.0", health.Version)
	assert.EqualValues(t, 3, health.Checks["registry"].Data["ports"])
	assert.NotContains(t, health.Checks, "database")

	assert.Equal(t, http.StatusOK, serve(router, "/ready").Code)
	assert.Equal(t, http.StatusOK, serve(router, "/live").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(router, "/health/db").Code)

	reg.Close()
	assert.Equal(t, http.StatusServiceUnavailable, serve(router, "/health").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(router, "/ready").Code)
	assert.Equal(t, http.StatusOK, serve(router, "/live").Code)
}

func TestHealthHandler_WorkerDown(t *testing.T) {
	reg := newRegistry(t, nil)
	router := newHealthRouter(NewHealthHandler(nil, reg, fakeWorker{running: false, restarts: 3}, healthConfig(), zap.NewNop()))

	w := serve(router, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "degraded", health.Checks["handle_worker"].Status)
	assert.EqualValues(t, 3, health.Checks["handle_worker"].Data["restarts"])
}

func TestHealthHandler_DatabaseEnabledButMissing(t *testing.T) {
	cfg := healthConfig()
	cfg.Database.Enabled = true
	router := newHealthRouter(NewHealthHandler(nil, newRegistry(t, nil), nil, cfg, zap.NewNop()))

	assert.Equal(t, http.StatusServiceUnavailable, serve(router, "/health").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(router, "/ready").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(router, "/health/db").Code)
}
