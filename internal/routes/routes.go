// internal/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"comport-service/internal/config"
	"comport-service/internal/handler"
	"comport-service/internal/middleware"
	"comport-service/internal/utils"
)

// Handlers groups the HTTP handlers served by the router. Metrics may be nil.
type Handlers struct {
	Health    *handler.HealthHandler
	Ports     *handler.PortHandler
	Processes *handler.ProcessHandler
	WebSocket *handler.WebSocketHandler
	Metrics   http.Handler
}

// Router holds all dependencies for routing
type Router struct {
	config   *config.Config
	logger   *zap.Logger
	handlers Handlers
}

// NewRouter creates a new router instance
func NewRouter(config *config.Config, logger *zap.Logger, handlers Handlers) *Router {
	return &Router{
		config:   config,
		logger:   logger,
		handlers: handlers,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(utils.NewServiceLogger(r.logger, "http-server")))
	router.Use(middleware.CORSMiddleware(&r.config.Security))

	r.logger.Debug("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	r.handlers.Health.RegisterRoutes(router.Group(""))

	apiV1 := router.Group("/api/v1")
	r.handlers.Ports.RegisterRoutes(apiV1)
	r.handlers.Processes.RegisterRoutes(apiV1)

	if r.handlers.WebSocket != nil {
		r.handlers.WebSocket.RegisterRoutes(router.Group("/ws"))
	}

	if r.handlers.Metrics != nil && r.config.Metrics.Enabled {
		router.GET(r.config.Metrics.Path, gin.WrapH(r.handlers.Metrics))
	}

	r.addDocumentationRoutes(router)

	r.logger.Info("All routes configured successfully")
}

// addDocumentationRoutes sets up documentation routes
func (r *Router) addDocumentationRoutes(router *gin.Engine) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
}
