package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWith_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadWith(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "COM", cfg.Presence.NamePrefix)
	assert.Equal(t, 1, cfg.Presence.NumberMin)
	assert.Equal(t, 255, cfg.Presence.NumberMax)
	assert.Equal(t, 50, cfg.Presence.NewestThreshold)
	assert.Equal(t, 50, cfg.Presence.RemovedThreshold)
	assert.Equal(t, 100*time.Millisecond, cfg.Presence.Period)
	assert.Equal(t, 500*time.Millisecond, cfg.Handles.Period)
	assert.Equal(t, 10, cfg.Demo.Threshold)
	assert.Equal(t, `\\.\pipe\ComViewHandle`, cfg.Handles.PipeName)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, "127.0.0.1:8085", cfg.GetServerAddr())
}

func TestLoadWith_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
presence:
  newest_threshold: 5
  removed_threshold: 7
logging:
  level: debug
demo:
  enabled: true
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := LoadWith(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Presence.NewestThreshold)
	assert.Equal(t, 7, cfg.Presence.RemovedThreshold)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Demo.Enabled)
}

func TestLoadWith_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("COMPORT_SERVICE_PRESENCE_NAME_PREFIX", "/dev/ttyUSB")

	cfg, err := LoadWith(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB", cfg.Presence.NamePrefix)
}

func TestLoadWith_MissingExplicitFile(t *testing.T) {
	_, err := LoadWith(viper.New(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Presence: PresenceConfig{NamePrefix: "COM", NumberMin: 1, NumberMax: 255, Period: time.Second},
			Handles:  HandlesConfig{Period: time.Second},
			Demo:     DemoConfig{Period: time.Second},
			Logging:  LoggingConfig{Level: "info"},
			App:      AppConfig{Environment: "test", Version: "1.2.0"},
		}
	}

	require.NoError(t, validate(base()))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"inverted range", func(c *Config) { c.Presence.NumberMin = 300 }},
		{"empty prefix", func(c *Config) { c.Presence.NamePrefix = "" }},
		{"zero period", func(c *Config) { c.Handles.Period = 0 }},
		{"negative threshold", func(c *Config) { c.Presence.RemovedThreshold = -1 }},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad env", func(c *Config) { c.App.Environment = "qa" }},
		{"nats without url", func(c *Config) { c.Events.NATS.Enabled = true }},
		{"bad version", func(c *Config) { c.App.Version = "one" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, validate(cfg))
		})
	}
}
