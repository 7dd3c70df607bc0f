// internal/handles/watchdog.go
package handles

import (
	"context"
	"errors"
	"os/exec"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"comport-service/internal/lifecycle"
	"comport-service/internal/schedule"
	"comport-service/internal/utils"
)

// WatchdogConfig describes the worker process to keep alive
type WatchdogConfig struct {
	Period time.Duration
	Path   string
	Args   []string
}

// Watchdog restarts the worker process whenever it is not running. The worker
// is killed when the watchdog stops.
type Watchdog struct {
	*lifecycle.Loop

	config WatchdogConfig
	logger *utils.ServiceLogger

	cmd    *exec.Cmd
	exited chan error

	running  atomic.Bool
	starts   atomic.Uint64
	failures atomic.Uint64
}

// NewWatchdog creates the watchdog and starts it
func NewWatchdog(cfg WatchdogConfig, logger *zap.Logger) (*Watchdog, error) {
	if cfg.Path == "" {
		return nil, errors.New("watchdog requires a worker path")
	}

	w := &Watchdog{
		config: cfg,
		logger: utils.NewServiceLogger(logger, "watchdog"),
	}
	w.Loop = lifecycle.Go("watchdog", w.run)
	return w, nil
}

// Running reports whether the worker process is alive
func (w *Watchdog) Running() bool {
	return w.running.Load()
}

// Restarts returns how many times the worker was started after the first time
func (w *Watchdog) Restarts() uint64 {
	if n := w.starts.Load(); n > 0 {
		return n - 1
	}
	return 0
}

// Failures returns how many start attempts failed
func (w *Watchdog) Failures() uint64 {
	return w.failures.Load()
}

func (w *Watchdog) run(ctx context.Context) {
	defer w.kill()

	delay, err := schedule.NewDelay(w.config.Period)
	if err != nil {
		w.logger.Error("Invalid watchdog period", zap.Error(err))
		return
	}

	for ctx.Err() == nil {
		delay.Start()
		w.ensure()

		if err := delay.Pause(ctx); err != nil {
			break
		}
	}
}

func (w *Watchdog) ensure() {
	if w.exited != nil {
		select {
		case err := <-w.exited:
			w.logger.Warn("Worker exited", zap.Error(err))
			w.cmd, w.exited = nil, nil
			w.running.Store(false)
		default:
			return
		}
	}

	cmd := exec.Command(w.config.Path, w.config.Args...)
	if err := cmd.Start(); err != nil {
		w.failures.Add(1)
		w.logger.Warn("Failed to start worker", zap.String("path", w.config.Path), zap.Error(err))
		return
	}

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
	}()

	w.cmd, w.exited = cmd, exited
	w.running.Store(true)
	w.starts.Add(1)
	w.logger.Info("Worker started", zap.Int("pid", cmd.Process.Pid))
}

func (w *Watchdog) kill() {
	defer w.running.Store(false)

	if w.cmd == nil {
		return
	}
	if err := w.cmd.Process.Kill(); err != nil {
		w.logger.Debug("Failed to kill worker", zap.Error(err))
	}
	<-w.exited
	w.cmd, w.exited = nil, nil
}
