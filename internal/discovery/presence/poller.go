// internal/discovery/presence/poller.go
package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"comport-service/internal/lifecycle"
	"comport-service/internal/model"
	"comport-service/internal/registry"
	"comport-service/internal/schedule"
	"comport-service/internal/utils"
)

const source = "presence"

// Store is the part of the port registry used by the poller
type Store interface {
	Update(ctx context.Context, source string, fn func(tx *registry.Tx)) error
}

// CycleObserver records poller cycle timings
type CycleObserver interface {
	ObserveCycle(poller string, duration time.Duration, err error)
}

// Config holds the poller settings
type Config struct {
	Naming           model.Naming
	Period           time.Duration
	NewestThreshold  int
	RemovedThreshold int
}

// Poller reconciles OS serial port registrations with the port registry
type Poller struct {
	*lifecycle.Loop

	config   Config
	store    Store
	ports    PortSource
	captions CaptionSource
	observer CycleObserver
	logger   *utils.ServiceLogger

	// debounce counters indexed by port number
	timeouts []int
	first    bool
	cycle    uint64
}

// NewPoller creates the poller and starts it
func NewPoller(cfg Config, store Store, ports PortSource, captions CaptionSource, observer CycleObserver, logger *zap.Logger) (*Poller, error) {
	p, err := newPoller(cfg, store, ports, captions, observer, logger)
	if err != nil {
		return nil, err
	}

	p.Loop = lifecycle.Go(source, p.run)
	return p, nil
}

func newPoller(cfg Config, store Store, ports PortSource, captions CaptionSource, observer CycleObserver, logger *zap.Logger) (*Poller, error) {
	if store == nil || ports == nil {
		return nil, errors.New("presence poller requires a store and a port source")
	}
	if cfg.Naming.Limit.Min < 0 || cfg.Naming.Limit.Max < cfg.Naming.Limit.Min {
		return nil, fmt.Errorf("invalid port number limit [%d, %d]", cfg.Naming.Limit.Min, cfg.Naming.Limit.Max)
	}

	return &Poller{
		config:   cfg,
		store:    store,
		ports:    ports,
		captions: captions,
		observer: observer,
		logger:   utils.NewServiceLogger(logger, "presence-poller"),
		timeouts: make([]int, cfg.Naming.Limit.Max+1),
		first:    true,
	}, nil
}

func (p *Poller) run(ctx context.Context) {
	defer p.release()

	delay, err := schedule.NewDelay(p.config.Period)
	if err != nil {
		p.logger.Error("Invalid poll period", zap.Error(err))
		return
	}

	p.logger.Info("Presence poller started",
		zap.Duration("period", p.config.Period),
		zap.String("prefix", p.config.Naming.Prefix),
		zap.Int("newest_threshold", p.config.NewestThreshold),
		zap.Int("removed_threshold", p.config.RemovedThreshold),
	)

	for ctx.Err() == nil {
		delay.Start()

		started := time.Now()
		err := p.Cycle(ctx)
		if p.observer != nil {
			p.observer.ObserveCycle(source, time.Since(started), err)
		}
		if err != nil && ctx.Err() == nil {
			p.logger.Warn("Presence cycle failed", zap.Error(err))
		}

		if err := delay.Pause(ctx); err != nil {
			break
		}
	}

	p.logger.LogServiceStop("stopped")
}

func (p *Poller) release() {
	if p.captions == nil {
		return
	}
	if err := p.captions.Close(); err != nil {
		p.logger.Debug("Failed to release caption source", zap.Error(err))
	}
}

// Cycle runs one reconciliation pass
func (p *Poller) Cycle(ctx context.Context) error {
	started := time.Now()
	p.cycle++

	registrations, err := p.ports.Registrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	system := FilterRegistrations(p.config.Naming, registrations)

	var undescribed []model.Port
	err = p.store.Update(ctx, source, func(tx *registry.Tx) {
		p.reconcile(tx, system)
		for _, port := range tx.Ports() {
			if !port.HasDescription() {
				undescribed = append(undescribed, port)
			}
		}
	})
	if err != nil {
		return fmt.Errorf("failed to update registry: %w", err)
	}
	p.first = false

	if len(undescribed) > 0 && p.captions != nil {
		if err := p.describe(ctx, undescribed); err != nil {
			return err
		}
	}

	p.logger.LogCycle(p.cycle, time.Since(started),
		zap.Int("system_ports", len(system)),
		zap.Int("undescribed", len(undescribed)),
	)
	return nil
}

func (p *Poller) reconcile(tx *registry.Tx, system []SystemPort) {
	found := make(map[int]struct{}, len(system))

	for _, sp := range system {
		found[sp.Number] = struct{}{}

		port, tracked := tx.Get(sp.Number)
		if !tracked {
			state := model.StateNewest
			if p.first {
				state = model.StateNormal
			}
			if err := tx.Insert(sp.Number, sp.DeviceName, state); err != nil {
				p.logger.Warn("Failed to track port", zap.Int("number", sp.Number), zap.Error(err))
				continue
			}
			p.timeouts[sp.Number] = 0
			continue
		}

		if port.State == model.StateRemoved {
			tx.SetState(sp.Number, model.StateNewest)
			p.timeouts[sp.Number] = 0
		}
	}

	for _, port := range tx.Ports() {
		if _, ok := found[port.Number]; ok {
			continue
		}
		if port.State != model.StateRemoved {
			tx.SetState(port.Number, model.StateRemoved)
			p.timeouts[port.Number] = 0
		}
	}

	for _, port := range tx.Ports() {
		threshold := p.threshold(port.State)
		if threshold < 0 {
			continue
		}

		if p.timeouts[port.Number] < threshold {
			p.timeouts[port.Number]++
			continue
		}

		switch port.State {
		case model.StateNewest:
			tx.SetState(port.Number, model.StateNormal)
		case model.StateRemoved:
			tx.Remove(port.Number)
		}
		p.timeouts[port.Number] = 0
	}
}

// threshold returns the debounce threshold for a state or -1 when the state
// does not expire
func (p *Poller) threshold(state model.PresentState) int {
	switch state {
	case model.StateNewest:
		return p.config.NewestThreshold
	case model.StateRemoved:
		return p.config.RemovedThreshold
	default:
		return -1
	}
}

func (p *Poller) describe(ctx context.Context, ports []model.Port) error {
	captions, err := p.captions.Captions(ctx)
	if err != nil {
		return fmt.Errorf("failed to query device captions: %w", err)
	}

	descriptions := make(map[int]string)
	for _, port := range ports {
		if desc, ok := MatchCaption(captions, port.Name); ok {
			descriptions[port.Number] = desc
		}
	}
	if len(descriptions) == 0 {
		return nil
	}

	return p.store.Update(ctx, source, func(tx *registry.Tx) {
		for number, desc := range descriptions {
			port, ok := tx.Get(number)
			if !ok || port.HasDescription() {
				continue
			}
			tx.SetDescription(number, desc)
		}
	})
}
