// internal/handler/health_handler.go
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"comport-service/internal/config"
	"comport-service/internal/database"
	"comport-service/internal/service"
	"comport-service/internal/utils"
)

const checkTimeout = 2 * time.Second

// WorkerStatus reports the state of the supervised handle worker
type WorkerStatus interface {
	Running() bool
	Restarts() uint64
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db        *database.DB
	ports     service.PortReader
	worker    WorkerStatus
	config    *config.Config
	logger    *utils.ServiceLogger
	startTime time.Time
}

// NewHealthHandler creates a new health handler. db is only checked when the
// database is enabled; worker may be nil.
func NewHealthHandler(db *database.DB, ports service.PortReader, worker WorkerStatus, config *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:        db,
		ports:     ports,
		worker:    worker,
		config:    config,
		logger:    utils.NewServiceLogger(logger, "health-handler"),
		startTime: time.Now(),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.HealthCheck)
	router.GET("/health/db", h.DatabaseHealthCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck performs general health check
// @Summary Health check
// @Description Get overall service health including the port registry, database and handle worker
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "Service is healthy"
// @Failure 503 {object} HealthResponse "Service is unhealthy"
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    make(map[string]CheckResult),
	}

	if count, err := h.checkRegistry(c.Request.Context()); err != nil {
		health.Status = "unhealthy"
		health.Checks["registry"] = CheckResult{Status: "unhealthy", Message: err.Error()}
	} else {
		health.Checks["registry"] = CheckResult{
			Status: "healthy",
			Data:   map[string]interface{}{"ports": count},
		}
	}

	if h.config.Database.Enabled {
		if err := h.db.HealthCheck(); err != nil {
			health.Status = "unhealthy"
			health.Checks["database"] = CheckResult{Status: "unhealthy", Message: err.Error()}
		} else {
			stats := h.db.GetStats()
			health.Checks["database"] = CheckResult{
				Status:  "healthy",
				Message: "Database connection OK",
				Data: map[string]interface{}{
					"open_connections": stats.OpenConnections,
					"in_use":           stats.InUse,
					"idle":             stats.Idle,
				},
			}
		}
	}

	// A stopped worker only degrades ownership data; presence keeps working.
	if h.worker != nil {
		check := CheckResult{
			Status: "healthy",
			Data:   map[string]interface{}{"restarts": h.worker.Restarts()},
		}
		if !h.worker.Running() {
			check.Status = "degraded"
			check.Message = "handle worker is not running"
			if health.Status == "healthy" {
				health.Status = "degraded"
			}
		}
		health.Checks["handle_worker"] = check
	}

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, health)
}

// DatabaseHealthCheck checks database connectivity
// @Summary Database health check
// @Description Check connectivity of the port history database
// @Tags Health
// @Produce json
// @Success 200 {object} utils.APIResponse "Database is healthy"
// @Failure 503 {object} utils.APIResponse "Database is unhealthy or disabled"
// @Router /health/db [get]
func (h *HealthHandler) DatabaseHealthCheck(c *gin.Context) {
	if !h.config.Database.Enabled {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Database is disabled", nil)
		return
	}

	startTime := time.Now()
	if err := h.db.HealthCheck(); err != nil {
		h.logger.Error("Database health check failed", zap.Error(err))
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Database unhealthy", err)
		return
	}

	stats := h.db.GetStats()
	utils.SuccessResponse(c, http.StatusOK, "Database is healthy", gin.H{
		"status":           "healthy",
		"response_time_ms": time.Since(startTime).Milliseconds(),
		"stats": gin.H{
			"open_connections":    stats.OpenConnections,
			"in_use":              stats.InUse,
			"idle":                stats.Idle,
			"wait_count":          stats.WaitCount,
			"wait_duration":       stats.WaitDuration,
			"max_lifetime_closed": stats.MaxLifetimeClosed,
		},
	})
}

// ReadinessCheck for Kubernetes readiness probe
// @Summary Readiness check
// @Description Check if the port registry answers and the database, when enabled, is reachable
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is ready"
// @Failure 503 {object} object{status=string,reason=string} "Service is not ready"
// @Router /ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if _, err := h.checkRegistry(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "port registry not available",
		})
		return
	}

	if h.config.Database.Enabled {
		if err := h.db.HealthCheck(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"reason": "database not available",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessCheck for Kubernetes liveness probe
// @Summary Liveness check
// @Description Check if service is alive
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is alive"
// @Router /live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

func (h *HealthHandler) checkRegistry(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	ports, err := h.ports.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	return len(ports), nil
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
