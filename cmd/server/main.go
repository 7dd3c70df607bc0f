// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	_ "comport-service/docs"
	"comport-service/internal/config"
	"comport-service/internal/database"
	"comport-service/internal/discovery/demo"
	"comport-service/internal/discovery/presence"
	"comport-service/internal/events"
	"comport-service/internal/handler"
	"comport-service/internal/handles"
	"comport-service/internal/lifecycle"
	"comport-service/internal/metrics"
	"comport-service/internal/model"
	"comport-service/internal/registry"
	"comport-service/internal/repository"
	"comport-service/internal/routes"
	"comport-service/internal/service"
	"comport-service/internal/utils"
)

const (
	shutdownTimeout    = 30 * time.Second
	memoryHistorySize  = 500
	watchdogMultiplier = 2
)

// Application represents the main application
type Application struct {
	config        *config.Config
	loggerManager *utils.LoggerManager
	logger        *zap.Logger
	server        *http.Server
	database      *database.DB

	bus      *events.Bus
	busLoop  *lifecycle.Loop
	registry *registry.Registry
	metrics  *metrics.Metrics

	history  repository.PortEventRepository
	recorder *service.HistoryRecorder
	nats     *events.NATSPublisher
	natsLoop *lifecycle.Loop

	presencePoller *presence.Poller
	handlePoller   *handles.Poller
	demoPoller     *demo.Poller
	watchdog       *handles.Watchdog
	namer          handles.ProcessNamer

	websocket *handler.WebSocketHandler
}

// @title COM Port Service API
// @version 1.0.0
// @description Tracks serial ports present on the machine, their device descriptions and the processes holding them open

// @contact.name COM Port Service Maintainers

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8085
// @BasePath /api/v1
func main() {
	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	loggerManager, err := utils.NewLoggerManager(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger := loggerManager.Logger()

	serviceLogger := utils.NewServiceLogger(logger, "comport-service")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	app := &Application{
		config:        cfg,
		loggerManager: loggerManager,
		logger:        logger,
	}

	app.initializeLogWatch()
	app.initializeRegistry()

	if err := app.initializeDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initializePublishers(); err != nil {
		return nil, fmt.Errorf("failed to initialize event publishers: %w", err)
	}

	if err := app.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if err := app.initializePollers(); err != nil {
		return nil, fmt.Errorf("failed to initialize pollers: %w", err)
	}

	if err := app.initializeServer(); err != nil {
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}

	return app, nil
}

// initializeLogWatch applies logging.level changes from the config file at runtime
func (app *Application) initializeLogWatch() {
	watching := config.WatchLogLevel(viper.GetViper(), func(level string) {
		if err := app.loggerManager.SetLevel(level); err != nil {
			app.logger.Warn("Ignoring invalid log level from config file", zap.Error(err))
		}
	})
	if watching {
		app.logger.Info("Watching config file for log level changes",
			zap.String("file", viper.GetViper().ConfigFileUsed()),
		)
	}
}

// initializeRegistry creates the event bus and the port registry publishing to it
func (app *Application) initializeRegistry() {
	app.bus = events.NewBus(app.config.Events.BufferSize, app.logger)
	app.busLoop = lifecycle.Go("event-bus", app.bus.Run)

	naming := model.Naming{
		Prefix: app.config.Presence.NamePrefix,
		Limit:  model.Limit{Min: app.config.Presence.NumberMin, Max: app.config.Presence.NumberMax},
	}
	app.registry = registry.New(naming, app.bus, app.logger)

	app.logger.Info("Port registry initialized",
		zap.String("prefix", naming.Prefix),
		zap.Int("number_min", naming.Limit.Min),
		zap.Int("number_max", naming.Limit.Max),
	)
}

// initializeDatabase sets up the history store. Without a database, history
// is kept in memory.
func (app *Application) initializeDatabase() error {
	if !app.config.Database.Enabled {
		app.history = repository.NewMemoryPortEventRepository(memoryHistorySize)
		app.startRecorder()
		app.logger.Info("Database disabled, keeping port history in memory",
			zap.Int("events_per_port", memoryHistorySize),
		)
		return nil
	}

	db, err := database.NewConnection(app.config, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	app.database = db

	migrator := database.NewMigrator(db, app.logger, &app.config.Database)
	if err := migrator.Up(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	app.history = repository.NewPortEventRepository(db, app.logger)
	app.startRecorder()

	app.logger.Info("Database initialized successfully")
	return nil
}

func (app *Application) startRecorder() {
	sub := app.bus.Subscribe()
	app.recorder = service.NewHistoryRecorder(app.history, sub.C, app.config.Database.Retention, app.logger)
}

// initializePublishers connects the optional NATS publisher
func (app *Application) initializePublishers() error {
	if !app.config.Events.NATS.Enabled {
		return nil
	}

	publisher, err := events.NewNATSPublisher(app.config.Events.NATS, app.config.App.Name, app.logger)
	if err != nil {
		return err
	}
	app.nats = publisher

	sub := app.bus.Subscribe()
	app.natsLoop = lifecycle.Go("nats", func(ctx context.Context) {
		publisher.Run(ctx, sub)
	})

	app.logger.Info("NATS publisher started",
		zap.String("url", app.config.Events.NATS.URL),
		zap.String("subject", app.config.Events.NATS.Subject),
	)
	return nil
}

// initializeMetrics registers the collectors that read service state at scrape time
func (app *Application) initializeMetrics() error {
	app.metrics = metrics.New()

	return app.metrics.Register(
		metrics.NewPortCollector(app.registry),
		metrics.CounterFunc("events_published_total", "Port events accepted by the event bus.", func() float64 {
			return float64(app.bus.Published())
		}),
		metrics.CounterFunc("events_dropped_total", "Port events dropped because the event bus was full.", func() float64 {
			return float64(app.bus.Dropped())
		}),
	)
}

// initializePollers starts either the demo poller or the presence and handle pollers
func (app *Application) initializePollers() error {
	naming := app.registry.Naming()

	if app.config.Demo.Enabled {
		poller, err := demo.NewPoller(demo.Config{
			Naming:    naming,
			Period:    app.config.Demo.Period,
			Threshold: app.config.Demo.Threshold,
			MaxPorts:  app.config.Demo.MaxPorts,
		}, app.registry, app.logger)
		if err != nil {
			return err
		}
		app.demoPoller = poller
		app.logger.Info("Demo mode enabled, simulating serial ports")
		return nil
	}

	if app.config.Presence.Enabled {
		captions, err := presence.NewCaptionSource()
		if err != nil {
			app.logger.Warn("Device captions unavailable, ports stay undescribed", zap.Error(err))
			captions = nil
		}

		poller, err := presence.NewPoller(presence.Config{
			Naming:           naming,
			Period:           app.config.Presence.Period,
			NewestThreshold:  app.config.Presence.NewestThreshold,
			RemovedThreshold: app.config.Presence.RemovedThreshold,
		}, app.registry, presence.NewPortSource(), captions, app.metrics, app.logger)
		if err != nil {
			return err
		}
		app.presencePoller = poller
	}

	if app.config.Handles.Enabled {
		if runtime.GOOS != "windows" {
			app.logger.Warn("Handle correlation requires Windows, port owners will not be reported")
			return nil
		}
		return app.initializeHandles()
	}

	return nil
}

func (app *Application) initializeHandles() error {
	if app.config.Handles.Watchdog && app.config.Handles.WorkerPath != "" {
		watchdog, err := handles.NewWatchdog(handles.WatchdogConfig{
			Period: watchdogMultiplier * app.config.Handles.Period,
			Path:   app.config.Handles.WorkerPath,
		}, app.logger)
		if err != nil {
			return err
		}
		app.watchdog = watchdog

		if err := app.metrics.Register(
			metrics.CounterFunc("worker_restarts_total", "Times the handle worker was started again after exiting.", func() float64 {
				return float64(watchdog.Restarts())
			}),
			metrics.CounterFunc("worker_start_failures_total", "Failed attempts to start the handle worker.", func() float64 {
				return float64(watchdog.Failures())
			}),
		); err != nil {
			return err
		}
	}

	app.namer = handles.NewProcessNamer()
	poller, err := handles.NewPoller(handles.Config{
		Period:  app.config.Handles.Period,
		SelfPID: int32(os.Getpid()),
	}, app.registry, handles.NewHandleTable(), handles.NewListener(app.config.Handles.PipeName), app.namer, app.metrics, app.logger)
	if err != nil {
		return err
	}
	app.handlePoller = poller

	app.logger.Info("Handle correlation started",
		zap.String("pipe", app.config.Handles.PipeName),
		zap.Bool("watchdog", app.watchdog != nil),
	)
	return nil
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() error {
	var inspector service.HandleInspector
	if app.handlePoller != nil {
		inspector = app.handlePoller
	}

	var worker handler.WorkerStatus
	if app.watchdog != nil {
		worker = app.watchdog
	}

	app.websocket = handler.NewWebSocketHandler(app.bus, app.registry, app.config.Security.AllowedOrigins, app.logger)

	routerManager := routes.NewRouter(app.config, app.logger, routes.Handlers{
		Health:    handler.NewHealthHandler(app.database, app.registry, worker, app.config, app.logger),
		Ports:     handler.NewPortHandler(service.NewPortService(app.registry, app.history, app.logger), app.logger),
		Processes: handler.NewProcessHandler(service.NewInspectorService(inspector, app.namer, app.logger), app.logger),
		WebSocket: app.websocket,
		Metrics:   app.metrics.Handler(),
	})

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      routerManager.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
		zap.Bool("tls_enabled", app.config.Server.TLS.Enabled),
	)
	return nil
}

// Start serves HTTP when enabled and blocks until a shutdown signal arrives
func (app *Application) Start() error {
	if app.config.Server.Enabled {
		go func() {
			app.logger.Info("Starting HTTP server", zap.String("address", app.server.Addr))

			var err error
			if app.config.Server.TLS.Enabled {
				err = app.server.ListenAndServeTLS(app.config.Server.TLS.CertFile, app.config.Server.TLS.KeyFile)
			} else {
				err = app.server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				app.logger.Fatal("HTTP server failed", zap.Error(err))
			}
		}()
	}

	app.waitForShutdown()
	return nil
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown stops the HTTP server, then the pollers, then everything
// consuming port events
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "comport-service")
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if app.config.Server.Enabled {
		if err := app.server.Shutdown(ctx); err != nil {
			app.logger.Error("HTTP server shutdown error", zap.Error(err))
		} else {
			app.logger.Info("HTTP server stopped")
		}
	}

	// nil pointers must not reach StopAll as non-nil interfaces
	var pollers []lifecycle.Poller
	if app.presencePoller != nil {
		pollers = append(pollers, app.presencePoller)
	}
	if app.handlePoller != nil {
		pollers = append(pollers, app.handlePoller)
	}
	if app.demoPoller != nil {
		pollers = append(pollers, app.demoPoller)
	}
	if app.watchdog != nil {
		pollers = append(pollers, app.watchdog)
	}
	if err := lifecycle.StopAll(ctx, pollers...); err != nil {
		app.logger.Error("Pollers did not stop cleanly", zap.Error(err))
	}

	// Stopping the bus closes every subscription, which ends its consumers.
	consumers := []lifecycle.Poller{app.busLoop, app.websocket}
	if app.recorder != nil {
		consumers = append(consumers, app.recorder)
	}
	if app.natsLoop != nil {
		consumers = append(consumers, app.natsLoop)
	}
	if err := lifecycle.StopAll(ctx, consumers...); err != nil {
		app.logger.Error("Event consumers did not stop cleanly", zap.Error(err))
	}
	if app.nats != nil {
		app.nats.Close()
	}

	app.registry.Close()

	if app.database != nil {
		if err := app.database.Close(); err != nil {
			app.logger.Error("Database close error", zap.Error(err))
		} else {
			app.logger.Info("Database connection closed")
		}
	}

	app.logger.Info("Application shutdown completed")

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}
