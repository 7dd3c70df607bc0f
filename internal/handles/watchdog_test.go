package handles

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func lookPath(t *testing.T, name string) string {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
	return path
}

func stopWatchdog(t *testing.T, w *Watchdog) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.Stop(ctx))
}

func TestWatchdog_KeepsWorkerRunningAndKillsOnStop(t *testing.T) {
	path := lookPath(t, "sleep")

	w, err := NewWatchdog(WatchdogConfig{Period: 10 * time.Millisecond, Path: path, Args: []string{"30"}}, zap.NewNop())
	require.NoError(t, err)

	require.Eventually(t, w.Running, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, w.Restarts())

	stopWatchdog(t, w)
	assert.False(t, w.Running())
}

func TestWatchdog_RestartsExitedWorker(t *testing.T) {
	path := lookPath(t, "true")

	w, err := NewWatchdog(WatchdogConfig{Period: 10 * time.Millisecond, Path: path}, zap.NewNop())
	require.NoError(t, err)
	defer stopWatchdog(t, w)

	require.Eventually(t, func() bool { return w.Restarts() >= 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, w.Failures())
}

func TestWatchdog_StartFailureRetried(t *testing.T) {
	w, err := NewWatchdog(WatchdogConfig{Period: 10 * time.Millisecond, Path: "/nonexistent/handle-worker"}, zap.NewNop())
	require.NoError(t, err)
	defer stopWatchdog(t, w)

	require.Eventually(t, func() bool { return w.Failures() >= 2 }, time.Second, 5*time.Millisecond)
	assert.False(t, w.Running())
}

func TestNewWatchdog_RequiresPath(t *testing.T) {
	_, err := NewWatchdog(WatchdogConfig{Period: time.Second}, zap.NewNop())
	assert.Error(t, err)
}
