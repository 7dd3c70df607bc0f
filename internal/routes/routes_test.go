package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"comport-service/internal/config"
	"comport-service/internal/handler"
	"comport-service/internal/metrics"
	"comport-service/internal/middleware"
	"comport-service/internal/model"
	"comport-service/internal/registry"
	"comport-service/internal/service"
)

func newTestRouter(t *testing.T, metricsEnabled bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	reg := registry.New(model.DefaultNaming(), nil, logger)
	t.Cleanup(reg.Close)

	cfg := &config.Config{
		App:     config.AppConfig{Name: "comport-service", Version: "1.0.0", Environment: "test"},
		Metrics: config.MetricsConfig{Enabled: metricsEnabled, Path: "/metrics"},
	}

	return NewRouter(cfg, logger, Handlers{
		Health:    handler.NewHealthHandler(nil, reg, nil, cfg, logger),
		Ports:     handler.NewPortHandler(service.NewPortService(reg, nil, logger), logger),
		Processes: handler.NewProcessHandler(service.NewInspectorService(nil, nil, logger), logger),
		Metrics:   metrics.New().Handler(),
	}).SetupRouter()
}

func TestSetupRouter(t *testing.T) {
	router := newTestRouter(t, true)

	tests := []struct {
		path string
		want int
	}{
		{"/live", http.StatusOK},
		{"/ready", http.StatusOK},
		{"/api/v1/ports", http.StatusOK},
		{"/api/v1/ports/1", http.StatusNotFound},
		{"/api/v1/processes", http.StatusServiceUnavailable},
		{"/metrics", http.StatusOK},
		{"/docs", http.StatusMovedPermanently},
		{"/api/v1/devices", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
			assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
		})
	}
}

func TestSetupRouter_MetricsDisabled(t *testing.T) {
	router := newTestRouter(t, false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
