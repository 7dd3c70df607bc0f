package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"comport-service/internal/config"
)

func TestNewLoggerManager_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "service.log")

	manager, err := NewLoggerManager(&config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: path,
	})
	require.NoError(t, err)

	manager.Logger().Info("hello")
	require.NoError(t, CloseLogger(manager.Logger()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello"`)
}

func TestLoggerManager_SetLevel(t *testing.T) {
	manager, err := NewLoggerManager(&config.LoggingConfig{Level: "info", Output: "stderr"})
	require.NoError(t, err)

	assert.False(t, manager.Logger().Core().Enabled(zapcore.DebugLevel))
	require.NoError(t, manager.SetLevel("debug"))
	assert.True(t, manager.Logger().Core().Enabled(zapcore.DebugLevel))

	assert.Error(t, manager.SetLevel("loud"))
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(&config.LoggingConfig{Level: "chatty", Output: "stdout"})
	assert.Error(t, err)
}

func TestLoggerManager_AutoFormat(t *testing.T) {
	manager := &LoggerManager{config: &config.LoggingConfig{Format: "auto", Output: filepath.Join(t.TempDir(), "x.log")}}
	assert.Equal(t, "json", manager.format())

	manager.config.Format = "console"
	assert.Equal(t, "console", manager.format())
}
