// internal/discovery/demo/poller.go
package demo

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"comport-service/internal/lifecycle"
	"comport-service/internal/model"
	"comport-service/internal/registry"
	"comport-service/internal/schedule"
	"comport-service/internal/utils"
)

const source = "demo"

// Store is the part of the port registry used by the poller
type Store interface {
	Update(ctx context.Context, source string, fn func(tx *registry.Tx)) error
}

// Config holds the demo poller settings
type Config struct {
	Naming    model.Naming
	Period    time.Duration
	Threshold int
	MaxPorts  int
}

type slot struct {
	timeout   int
	described bool
}

// Poller simulates port churn for demonstrations and UI development. It adds
// and removes ports, assigns descriptions and flips owners at random.
type Poller struct {
	*lifecycle.Loop

	config Config
	store  Store
	rng    *rand.Rand
	logger *utils.ServiceLogger

	slots  []slot
	target int
}

// NewPoller creates the demo poller and starts it
func NewPoller(cfg Config, store Store, logger *zap.Logger) (*Poller, error) {
	p, err := newPoller(cfg, store, rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)), logger)
	if err != nil {
		return nil, err
	}

	p.Loop = lifecycle.Go(source, p.run)
	return p, nil
}

func newPoller(cfg Config, store Store, rng *rand.Rand, logger *zap.Logger) (*Poller, error) {
	if store == nil {
		return nil, errors.New("demo poller requires a store")
	}
	if cfg.MaxPorts < 2 {
		cfg.MaxPorts = 2
	}

	return &Poller{
		config: cfg,
		store:  store,
		rng:    rng,
		logger: utils.NewServiceLogger(logger, "demo-poller"),
		slots:  make([]slot, cfg.Naming.Limit.Max+1),
	}, nil
}

func (p *Poller) run(ctx context.Context) {
	delay, err := schedule.NewDelay(p.config.Period)
	if err != nil {
		p.logger.Error("Invalid poll period", zap.Error(err))
		return
	}

	p.logger.Info("Demo poller started", zap.Duration("period", p.config.Period))

	for ctx.Err() == nil {
		delay.Start()
		if err := p.Cycle(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("Demo cycle failed", zap.Error(err))
		}
		if err := delay.Pause(ctx); err != nil {
			break
		}
	}

	p.logger.LogServiceStop("stopped")
}

// Cycle runs one simulation step
func (p *Poller) Cycle(ctx context.Context) error {
	return p.store.Update(ctx, source, func(tx *registry.Tx) {
		p.expire(tx)

		if p.target == 0 || p.rng.IntN(10) == 0 {
			p.target = 1 + p.rng.IntN(p.config.MaxPorts-1)
		}

		if p.rng.IntN(2) == 0 {
			p.describeOne(tx)
		}
		if p.rng.IntN(2) == 0 {
			p.assignOwner(tx)
		}

		switch {
		case p.target > tx.Len():
			p.addOne(tx)
		case p.target < tx.Len():
			p.removeOne(tx)
		}
	})
}

func (p *Poller) expire(tx *registry.Tx) {
	for _, port := range tx.Ports() {
		s := &p.slots[port.Number]

		switch port.State {
		case model.StateNewest:
			if s.timeout++; s.timeout < p.config.Threshold {
				continue
			}
			s.timeout = 0
			tx.SetState(port.Number, model.StateNormal)
		case model.StateRemoved:
			if s.timeout++; s.timeout < p.config.Threshold {
				continue
			}
			*s = slot{}
			tx.Remove(port.Number)
		}
	}
}

func (p *Poller) describeOne(tx *registry.Tx) {
	var candidates []int
	for _, port := range tx.Ports() {
		if !p.slots[port.Number].described {
			candidates = append(candidates, port.Number)
		}
	}
	if len(candidates) == 0 {
		return
	}

	parts := []string{p.upperWord()}
	for i := 1 + p.rng.IntN(4); i > 0; i-- {
		parts = append(parts, p.word())
	}

	number := candidates[p.rng.IntN(len(candidates))]
	p.slots[number].described = true
	tx.SetDescription(number, strings.Join(parts, " "))
}

func (p *Poller) assignOwner(tx *registry.Tx) {
	var candidates []int
	for _, port := range tx.Ports() {
		if port.State != model.StateRemoved {
			candidates = append(candidates, port.Number)
		}
	}
	if len(candidates) == 0 {
		return
	}

	number := candidates[p.rng.IntN(len(candidates))]
	if p.rng.IntN(2) == 0 {
		tx.SetOwner(number, model.StringPtr(p.upperWord()))
	} else {
		tx.SetOwner(number, nil)
	}
}

func (p *Poller) addOne(tx *registry.Tx) {
	limit := p.config.Naming.Limit

	var free []int
	for n := limit.Min; n <= limit.Max; n++ {
		if _, tracked := tx.Get(n); !tracked {
			free = append(free, n)
		}
	}
	if len(free) == 0 {
		return
	}

	var deviceName strings.Builder
	for i := 0; i < 4; i++ {
		deviceName.WriteString(p.upperWord())
	}

	number := free[p.rng.IntN(len(free))]
	p.slots[number] = slot{}
	if err := tx.Insert(number, deviceName.String(), model.StateNewest); err != nil {
		p.logger.Warn("Failed to add demo port", zap.Int("number", number), zap.Error(err))
	}
}

func (p *Poller) removeOne(tx *registry.Tx) {
	var candidates []int
	for _, port := range tx.Ports() {
		if port.State == model.StateNormal {
			candidates = append(candidates, port.Number)
		}
	}
	if len(candidates) == 0 {
		return
	}

	number := candidates[p.rng.IntN(len(candidates))]
	p.slots[number].timeout = 0
	tx.SetState(number, model.StateRemoved)
}

func (p *Poller) word() string {
	return words[p.rng.IntN(len(words))]
}

func (p *Poller) upperWord() string {
	w := p.word()
	return strings.ToUpper(w[:1]) + w[1:]
}
