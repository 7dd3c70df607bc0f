// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Presence PresenceConfig `mapstructure:"presence"`
	Handles  HandlesConfig  `mapstructure:"handles"`
	Demo     DemoConfig     `mapstructure:"demo"`
	Events   EventsConfig   `mapstructure:"events"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	App      AppConfig      `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	TLS          TLSConfig     `mapstructure:"tls"`
}

// TLSConfig represents TLS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// DatabaseConfig represents the optional port history database
type DatabaseConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	DBName         string        `mapstructure:"dbname"`
	SSLMode        string        `mapstructure:"sslmode"`
	MaxOpenConns   int           `mapstructure:"max_open_conns"`
	MaxIdleConns   int           `mapstructure:"max_idle_conns"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	MigrationsPath string        `mapstructure:"migrations_path"`
	Retention      time.Duration `mapstructure:"retention"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// PresenceConfig controls the port presence poller
type PresenceConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Period           time.Duration `mapstructure:"period"`
	NamePrefix       string        `mapstructure:"name_prefix"`
	NumberMin        int           `mapstructure:"number_min"`
	NumberMax        int           `mapstructure:"number_max"`
	NewestThreshold  int           `mapstructure:"newest_threshold"`
	RemovedThreshold int           `mapstructure:"removed_threshold"`
}

// HandlesConfig controls the handle correlation poller and its worker
type HandlesConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Period     time.Duration `mapstructure:"period"`
	PipeName   string        `mapstructure:"pipe_name"`
	WorkerPath string        `mapstructure:"worker_path"`
	Watchdog   bool          `mapstructure:"watchdog"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// DemoConfig controls the simulated port poller
type DemoConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Period    time.Duration `mapstructure:"period"`
	Threshold int           `mapstructure:"threshold"`
	MaxPorts  int           `mapstructure:"max_ports"`
}

// EventsConfig configures external port event publishing
type EventsConfig struct {
	BufferSize int        `mapstructure:"buffer_size"`
	NATS       NATSConfig `mapstructure:"nats"`
}

// NATSConfig represents NATS publisher configuration
type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

// MetricsConfig controls the prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// Load loads configuration from an optional file and environment variables
func Load() (*Config, error) {
	return LoadWith(viper.GetViper(), "")
}

// LoadWith loads configuration into the given viper instance. An empty
// configFile searches the default locations; a missing file is not an error.
func LoadWith(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variable support
	v.SetEnvPrefix("COMPORT_SERVICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "8085")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.tls.enabled", false)

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "comport_service")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_lifetime", "5m")
	v.SetDefault("database.migrations_path", "migrations")
	v.SetDefault("database.retention", "720h")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "auto")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Presence poller defaults
	v.SetDefault("presence.enabled", true)
	v.SetDefault("presence.period", "100ms")
	v.SetDefault("presence.name_prefix", "COM")
	v.SetDefault("presence.number_min", 1)
	v.SetDefault("presence.number_max", 255)
	v.SetDefault("presence.newest_threshold", 50)
	v.SetDefault("presence.removed_threshold", 50)

	// Handle poller defaults
	v.SetDefault("handles.enabled", true)
	v.SetDefault("handles.period", "500ms")
	v.SetDefault("handles.pipe_name", `\\.\pipe\ComViewHandle`)
	v.SetDefault("handles.worker_path", "")
	v.SetDefault("handles.watchdog", true)
	v.SetDefault("handles.retry_delay", "100ms")

	// Demo defaults
	v.SetDefault("demo.enabled", false)
	v.SetDefault("demo.period", "500ms")
	v.SetDefault("demo.threshold", 10)
	v.SetDefault("demo.max_ports", 25)

	// Events defaults
	v.SetDefault("events.buffer_size", 1000)
	v.SetDefault("events.nats.enabled", false)
	v.SetDefault("events.nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("events.nats.subject", "comport.events")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// App defaults
	v.SetDefault("app.name", "comport-service")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Enabled {
		if config.Server.Host == "" {
			return fmt.Errorf("server.host is required")
		}
		if config.Server.Port == "" {
			return fmt.Errorf("server.port is required")
		}
	}
	if config.Database.Enabled && config.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}

	if config.Presence.NamePrefix == "" {
		return fmt.Errorf("presence.name_prefix is required")
	}
	if config.Presence.NumberMin > config.Presence.NumberMax {
		return fmt.Errorf("presence.number_min must not exceed presence.number_max")
	}
	if config.Presence.Period <= 0 || config.Handles.Period <= 0 || config.Demo.Period <= 0 {
		return fmt.Errorf("poller periods must be positive")
	}
	if config.Presence.NewestThreshold < 0 || config.Presence.RemovedThreshold < 0 || config.Demo.Threshold < 0 {
		return fmt.Errorf("debounce thresholds must not be negative")
	}

	if config.Events.NATS.Enabled && config.Events.NATS.URL == "" {
		return fmt.Errorf("events.nats.url is required")
	}

	if _, err := semver.NewVersion(config.App.Version); err != nil {
		return fmt.Errorf("app.version %q is not a semantic version: %w", config.App.Version, err)
	}

	// Validate environment
	validEnvs := []string{"development", "staging", "production", "test"}
	isValidEnv := false
	for _, env := range validEnvs {
		if config.App.Environment == env {
			isValidEnv = true
			break
		}
	}
	if !isValidEnv {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	// Validate logging level
	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	isValidLevel := false
	for _, level := range validLevels {
		if config.Logging.Level == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User,
		c.Database.Password, c.Database.DBName, c.Database.SSLMode)
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.App.Environment == "development"
}
