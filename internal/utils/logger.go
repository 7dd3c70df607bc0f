// internal/utils/logger.go
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"comport-service/internal/config"
)

// LoggerManager manages application logging
type LoggerManager struct {
	logger *zap.Logger
	level  zap.AtomicLevel
	config *config.LoggingConfig
}

// NewLogger creates a new logger instance based on configuration
func NewLogger(cfg *config.LoggingConfig) (*zap.Logger, error) {
	manager, err := NewLoggerManager(cfg)
	if err != nil {
		return nil, err
	}
	return manager.Logger(), nil
}

// NewLoggerManager builds the logger and keeps its level adjustable at runtime
func NewLoggerManager(cfg *config.LoggingConfig) (*LoggerManager, error) {
	manager := &LoggerManager{
		config: cfg,
	}

	logger, err := manager.createLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	manager.logger = logger
	return manager, nil
}

// Logger returns the managed logger
func (lm *LoggerManager) Logger() *zap.Logger {
	return lm.logger
}

// SetLevel changes the log level of the managed logger
func (lm *LoggerManager) SetLevel(level string) error {
	parsed, err := parseLevel(level)
	if err != nil {
		return err
	}

	if parsed != lm.level.Level() {
		lm.level.SetLevel(parsed)
		lm.logger.Info("Log level changed", zap.String("level", parsed.String()))
	}
	return nil
}

// createLogger creates the zap logger with proper configuration
func (lm *LoggerManager) createLogger() (*zap.Logger, error) {
	encoderConfig := lm.getEncoderConfig()

	var encoder zapcore.Encoder
	switch lm.format() {
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	writeSyncer, err := lm.getWriteSyncer()
	if err != nil {
		return nil, fmt.Errorf("failed to create write syncer: %w", err)
	}

	level, err := parseLevel(lm.config.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}
	lm.level = zap.NewAtomicLevelAt(level)

	core := zapcore.NewCore(encoder, writeSyncer, lm.level)

	return zap.New(core, lm.getLoggerOptions()...), nil
}

// getEncoderConfig returns encoder configuration based on format
func (lm *LoggerManager) getEncoderConfig() zapcore.EncoderConfig {
	config := zap.NewProductionEncoderConfig()

	config.TimeKey = "timestamp"
	config.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	config.LevelKey = "level"
	config.EncodeLevel = zapcore.LowercaseLevelEncoder
	config.CallerKey = "caller"
	config.EncodeCaller = zapcore.ShortCallerEncoder
	config.MessageKey = "message"
	config.StacktraceKey = "stacktrace"

	// Console format customizations
	if lm.format() == "console" {
		config.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	}

	return config
}

// format resolves "auto" to console output on a terminal and json otherwise
func (lm *LoggerManager) format() string {
	if lm.config.Format != "auto" {
		return lm.config.Format
	}

	var fd uintptr
	switch lm.config.Output {
	case "stdout":
		fd = os.Stdout.Fd()
	case "stderr":
		fd = os.Stderr.Fd()
	default:
		return "json"
	}
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return "console"
	}
	return "json"
}

// getWriteSyncer returns write syncer based on output configuration
func (lm *LoggerManager) getWriteSyncer() (zapcore.WriteSyncer, error) {
	switch lm.config.Output {
	case "stdout":
		return zapcore.AddSync(os.Stdout), nil
	case "stderr":
		return zapcore.AddSync(os.Stderr), nil
	default:
		if lm.config.Output == "" {
			lm.config.Output = "./logs/comport-service.log"
		}

		logDir := filepath.Dir(lm.config.Output)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		lumber := &lumberjack.Logger{
			Filename:   lm.config.Output,
			MaxSize:    lm.config.MaxSize, // MB
			MaxBackups: lm.config.MaxBackups,
			MaxAge:     lm.config.MaxAge, // days
			Compress:   lm.config.Compress,
		}

		return zapcore.AddSync(lumber), nil
	}
}

// parseLevel maps a configured level name to a zap level
func parseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "fatal":
		return zapcore.FatalLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

// getLoggerOptions returns logger options
func (lm *LoggerManager) getLoggerOptions() []zap.Option {
	return []zap.Option{
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	}
}

// PortLogger wraps zap.Logger with port-specific fields
type PortLogger struct {
	*zap.Logger
}

// NewPortLogger creates a port-specific logger
func NewPortLogger(baseLogger *zap.Logger, portName, deviceName string) *PortLogger {
	return &PortLogger{
		Logger: baseLogger.With(
			zap.String("port", portName),
			zap.String("device_name", deviceName),
			zap.String("component", "port"),
		),
	}
}

// LogStateChange logs a presence state transition
func (pl *PortLogger) LogStateChange(from, to string) {
	pl.Info("Port state changed",
		zap.String("from", from),
		zap.String("to", to),
	)
}

// LogOwnerChange logs a change of the owning process
func (pl *PortLogger) LogOwnerChange(from, to string) {
	pl.Info("Port owner changed",
		zap.String("from", from),
		zap.String("to", to),
	)
}

// ServiceLogger provides service-level logging functionality
type ServiceLogger struct {
	*zap.Logger
	serviceName string
}

// NewServiceLogger creates a service-specific logger
func NewServiceLogger(baseLogger *zap.Logger, serviceName string) *ServiceLogger {
	logger := baseLogger.With(
		zap.String("service", serviceName),
		zap.String("component", "service"),
	)

	return &ServiceLogger{
		Logger:      logger,
		serviceName: serviceName,
	}
}

// LogServiceStart logs service startup
func (sl *ServiceLogger) LogServiceStart(version string, config interface{}) {
	sl.Info("Service starting",
		zap.String("version", version),
		zap.Any("config", config),
	)
}

// LogServiceStop logs service shutdown
func (sl *ServiceLogger) LogServiceStop(reason string) {
	sl.Info("Service stopping",
		zap.String("reason", reason),
	)
}

// LogCycle logs a single poller cycle at debug level
func (sl *ServiceLogger) LogCycle(cycle uint64, duration time.Duration, fields ...zap.Field) {
	if ce := sl.Check(zapcore.DebugLevel, "Poll cycle completed"); ce != nil {
		ce.Write(append([]zap.Field{
			zap.Uint64("cycle", cycle),
			zap.Duration("duration", duration),
		}, fields...)...)
	}
}

// LogAPIRequest logs HTTP API requests
func (sl *ServiceLogger) LogAPIRequest(requestID, method, path, userAgent, clientIP string, statusCode int, duration time.Duration) {
	level := zapcore.InfoLevel
	if statusCode >= 400 {
		level = zapcore.WarnLevel
	}
	if statusCode >= 500 {
		level = zapcore.ErrorLevel
	}

	if ce := sl.Check(level, "API request"); ce != nil {
		ce.Write(
			zap.String("request_id", requestID),
			zap.String("method", method),
			zap.String("path", path),
			zap.String("user_agent", userAgent),
			zap.String("client_ip", clientIP),
			zap.Int("status_code", statusCode),
			zap.Duration("duration", duration),
		)
	}
}

// LogDatabaseQuery logs database queries (for debugging)
func (sl *ServiceLogger) LogDatabaseQuery(query string, args []interface{}, duration time.Duration, err error) {
	fields := []zap.Field{
		zap.String("query", query),
		zap.Any("args", args),
		zap.Duration("duration", duration),
	}

	if err != nil {
		fields = append(fields, zap.Error(err))
		sl.Error("Database query failed", fields...)
	} else {
		sl.Debug("Database query executed", fields...)
	}
}

// LoggerWithRequestID adds request ID to logger
func LoggerWithRequestID(logger *zap.Logger, requestID string) *zap.Logger {
	return logger.With(zap.String("request_id", requestID))
}

// LogPanic logs and recovers from panics
func LogPanic(logger *zap.Logger) {
	if r := recover(); r != nil {
		logger.Error("Recovered panic",
			zap.Any("panic", r),
			zap.Stack("stacktrace"),
		)
	}
}

// CloseLogger flushes buffered log entries
func CloseLogger(logger *zap.Logger) error {
	return logger.Sync()
}
