// internal/handler/process_handler.go
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"comport-service/internal/service"
	"comport-service/internal/utils"
)

// ProcessHandler exposes the handle cache of the correlation poller
type ProcessHandler struct {
	inspectorService *service.InspectorService
	logger           *utils.ServiceLogger
}

// NewProcessHandler creates a new process handler
func NewProcessHandler(inspectorService *service.InspectorService, logger *zap.Logger) *ProcessHandler {
	return &ProcessHandler{
		inspectorService: inspectorService,
		logger:           utils.NewServiceLogger(logger, "process-handler"),
	}
}

// RegisterRoutes registers process routes
func (h *ProcessHandler) RegisterRoutes(router *gin.RouterGroup) {
	processes := router.Group("/processes")
	{
		processes.GET("", h.ListProcesses)
		processes.GET("/:pid/handles", h.ListHandles)
	}
}

// ListProcesses lists processes with cached handles
// @Summary List inspected processes
// @Description List the processes holding handles known to the correlation poller. Answered after the next poller cycle.
// @Tags Processes
// @Produce json
// @Success 200 {object} utils.APIResponse{data=utils.ListData{items=[]service.ProcessInfo}} "Processes retrieved"
// @Failure 503 {object} utils.APIResponse "Handle inspection not running"
// @Failure 504 {object} utils.APIResponse "Poller did not answer in time"
// @Router /processes [get]
func (h *ProcessHandler) ListProcesses(c *gin.Context) {
	processes, err := h.inspectorService.ListProcesses(c.Request.Context())
	if err != nil {
		h.logger.Warn("Failed to list processes", zap.Error(err))
		utils.ErrorResponse(c, errorStatus(err), "Failed to list processes", err)
		return
	}

	utils.ListResponse(c, "Processes retrieved successfully", processes, len(processes))
}

// ListHandles lists the cached handles of a process
// @Summary List process handles
// @Description List cached handles of a process with their resolved object names and last worker status
// @Tags Processes
// @Produce json
// @Param pid path int true "Process ID"
// @Success 200 {object} utils.APIResponse{data=utils.ListData{items=[]handles.HandleInfo}} "Handles retrieved"
// @Failure 400 {object} utils.APIResponse "Invalid process ID"
// @Failure 503 {object} utils.APIResponse "Handle inspection not running"
// @Router /processes/{pid}/handles [get]
func (h *ProcessHandler) ListHandles(c *gin.Context) {
	pid, err := strconv.ParseInt(c.Param("pid"), 10, 32)
	if err != nil || pid < 0 {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid process ID", err)
		return
	}

	infos, err := h.inspectorService.ListHandles(c.Request.Context(), int32(pid))
	if err != nil {
		h.logger.Warn("Failed to list handles", zap.Int64("pid", pid), zap.Error(err))
		utils.ErrorResponse(c, errorStatus(err), "Failed to list handles", err)
		return
	}

	utils.ListResponse(c, "Handles retrieved successfully", infos, len(infos))
}
