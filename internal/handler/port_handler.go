// internal/handler/port_handler.go
package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"comport-service/internal/model"
	"comport-service/internal/repository"
	"comport-service/internal/service"
	"comport-service/internal/utils"
)

const maxHistoryLimit = 1000

// PortHandler handles port-related HTTP requests
type PortHandler struct {
	portService *service.PortService
	logger      *utils.ServiceLogger
}

// NewPortHandler creates a new port handler
func NewPortHandler(portService *service.PortService, logger *zap.Logger) *PortHandler {
	return &PortHandler{
		portService: portService,
		logger:      utils.NewServiceLogger(logger, "port-handler"),
	}
}

// RegisterRoutes registers port routes
func (h *PortHandler) RegisterRoutes(router *gin.RouterGroup) {
	ports := router.Group("/ports")
	{
		ports.GET("", h.ListPorts)
		ports.GET("/:number", h.GetPort)
		ports.GET("/:number/history", h.GetPortHistory)
	}
}

// ListPorts lists tracked serial ports
// @Summary List serial ports
// @Description List tracked serial ports with presence state, description and owning process
// @Tags Ports
// @Produce json
// @Param state query string false "Presence state" Enums(NEWEST, NORMAL, REMOVED)
// @Param owned query bool false "Only ports with (true) or without (false) an owner"
// @Success 200 {object} utils.APIResponse{data=utils.ListData{items=[]model.Port}} "Ports retrieved"
// @Failure 400 {object} utils.APIResponse "Invalid filter"
// @Failure 503 {object} utils.APIResponse "Registry unavailable"
// @Router /ports [get]
func (h *PortHandler) ListPorts(c *gin.Context) {
	filter := &service.PortFilter{}
	invalid := make(map[string]string)

	if state := c.Query("state"); state != "" {
		var s model.PresentState
		if err := s.UnmarshalText([]byte(state)); err != nil {
			invalid["state"] = err.Error()
		} else {
			filter.State = &s
		}
	}
	if owned := c.Query("owned"); owned != "" {
		if o, err := strconv.ParseBool(owned); err != nil {
			invalid["owned"] = "must be a boolean"
		} else {
			filter.Owned = &o
		}
	}
	if len(invalid) > 0 {
		utils.ValidationErrorResponse(c, invalid)
		return
	}

	ports, err := h.portService.ListPorts(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list ports", zap.Error(err))
		utils.ErrorResponse(c, errorStatus(err), "Failed to list ports", err)
		return
	}

	utils.ListResponse(c, "Ports retrieved successfully", ports, len(ports))
}

// GetPort returns one tracked port
// @Summary Get serial port
// @Description Get a tracked serial port by number
// @Tags Ports
// @Produce json
// @Param number path int true "Port number"
// @Success 200 {object} utils.APIResponse{data=model.Port} "Port retrieved"
// @Failure 400 {object} utils.APIResponse "Invalid port number"
// @Failure 404 {object} utils.APIResponse "Port not tracked"
// @Router /ports/{number} [get]
func (h *PortHandler) GetPort(c *gin.Context) {
	number, err := parsePortNumber(c)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid port number", err)
		return
	}

	port, err := h.portService.GetPort(c.Request.Context(), number)
	if err != nil {
		utils.ErrorResponse(c, errorStatus(err), "Failed to get port", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Port retrieved successfully", port)
}

// GetPortHistory returns recorded events of a port
// @Summary Get port history
// @Description Get recorded presence, description and owner changes of a port, newest first
// @Tags Ports
// @Produce json
// @Param number path int true "Port number"
// @Param limit query int false "Maximum number of events" default(100)
// @Param since query string false "Only events at or after this RFC3339 time"
// @Success 200 {object} utils.APIResponse{data=utils.ListData{items=[]model.PortEvent}} "History retrieved"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 500 {object} utils.APIResponse "Internal server error"
// @Router /ports/{number}/history [get]
func (h *PortHandler) GetPortHistory(c *gin.Context) {
	number, err := parsePortNumber(c)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid port number", err)
		return
	}

	filter := &repository.HistoryFilter{Limit: repository.DefaultHistoryLimit}
	invalid := make(map[string]string)

	if limit := c.Query("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err != nil || l <= 0 || l > maxHistoryLimit {
			invalid["limit"] = fmt.Sprintf("must be between 1 and %d", maxHistoryLimit)
		} else {
			filter.Limit = l
		}
	}
	if since := c.Query("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err != nil {
			invalid["since"] = "must be an RFC3339 timestamp"
		} else {
			filter.Since = t
		}
	}
	if len(invalid) > 0 {
		utils.ValidationErrorResponse(c, invalid)
		return
	}

	events, err := h.portService.GetHistory(c.Request.Context(), number, filter)
	if err != nil {
		utils.ErrorResponse(c, errorStatus(err), "Failed to get port history", err)
		return
	}

	utils.ListResponse(c, "Port history retrieved successfully", events, len(events))
}

func parsePortNumber(c *gin.Context) (int, error) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number <= 0 {
		return 0, fmt.Errorf("port number must be a positive integer, got %q", c.Param("number"))
	}
	return number, nil
}
