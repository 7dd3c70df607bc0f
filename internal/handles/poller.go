// internal/handles/poller.go
package handles

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

const (
	source = "handles"

	queryBacklog = 16
)

// ErrStopped is returned by queries once the poller has stopped
var ErrStopped = errors.New("handle poller stopped")

// Store is the part of the port registry used by the poller
type Store interface {
	DeviceNames(ctx context.Context) (map[string]struct{}, error)
	Update(ctx context.Context, source string, fn func(tx *registry.Tx)) error
}

// ProcessNamer resolves a process id to a display name
type ProcessNamer interface {
	Name(ctx context.Context, pid int32) (string, error)
}

// Observer receives poller measurements
type Observer interface {
	ObserveCycle(poller string, duration time.Duration, err error)
	ObserveStatus(status Status)
	ObserveChannelFault()
	SetCacheSize(entries, processes int)
}

// Config holds the poller settings
type Config struct {
	Period time.Duration
	// SelfPID is excluded from the handle walk
	SelfPID int32
}

type pidQuery struct {
	reply chan []int32
}

type handleQuery struct {
	pid   int32
	reply chan []HandleInfo
}

// Poller correlates open file handles with tracked serial devices and records
// the owning process of every port
type Poller struct {
	*lifecycle.Loop

	config   Config
	store    Store
	table    HandleTable
	listener Listener
	namer    ProcessNamer
	observer Observer
	logger   *utils.ServiceLogger

	cache   *Cache
	channel Channel
	cycle   uint64

	pidQueries    chan pidQuery
	handleQueries chan handleQuery
}

// NewPoller creates the poller and starts it
func NewPoller(cfg Config, store Store, table HandleTable, listener Listener, namer ProcessNamer, observer Observer, logger *zap.Logger) (*Poller, error) {
	p, err := newPoller(cfg, store, table, listener, namer, observer, logger)
	if err != nil {
		return nil, err
	}

	p.Loop = lifecycle.Go(source, p.run)
	return p, nil
}

func newPoller(cfg Config, store Store, table HandleTable, listener Listener, namer ProcessNamer, observer Observer, logger *zap.Logger) (*Poller, error) {
	if store == nil || table == nil || listener == nil {
		return nil, errors.New("handle poller requires a store, a handle table and a listener")
	}

	return &Poller{
		config:        cfg,
		store:         store,
		table:         table,
		listener:      listener,
		namer:         namer,
		observer:      observer,
		logger:        utils.NewServiceLogger(logger, "handle-poller"),
		cache:         NewCache(),
		pidQueries:    make(chan pidQuery, queryBacklog),
		handleQueries: make(chan handleQuery, queryBacklog),
	}, nil
}

func (p *Poller) run(ctx context.Context) {
	defer p.closeChannel()

	delay, err := schedule.NewDelay(p.config.Period)
	if err != nil {
		p.logger.Error("Invalid poll period", zap.Error(err))
		return
	}

	p.logger.Info("Handle poller started",
		zap.Duration("period", p.config.Period),
		zap.Int32("self_pid", p.config.SelfPID),
	)

	for ctx.Err() == nil {
		delay.Start()

		started := time.Now()
		err := p.Cycle(ctx)
		if p.observer != nil {
			p.observer.ObserveCycle(source, time.Since(started), err)
		}
		if err != nil && ctx.Err() == nil {
			p.logger.Warn("Handle cycle failed", zap.Error(err))
		}

		if err := delay.Pause(ctx); err != nil {
			break
		}
	}

	p.logger.LogServiceStop("stopped")
}

func (p *Poller) closeChannel() {
	if p.channel == nil {
		return
	}
	if err := p.channel.Close(); err != nil {
		p.logger.Debug("Failed to close worker channel", zap.Error(err))
	}
	p.channel = nil
}

// Cycle runs one correlation pass. Pending queries are answered when it
// returns, whatever the outcome.
func (p *Poller) Cycle(ctx context.Context) error {
	defer p.serveQueries()

	if err := ctx.Err(); err != nil {
		return err
	}
	started := time.Now()
	p.cycle++

	if p.channel == nil {
		ch, err := p.listener.Accept(ctx)
		if err != nil {
			return fmt.Errorf("failed to connect worker channel: %w", err)
		}
		p.channel = ch
		p.logger.Info("Worker connected")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	devices, err := p.store.DeviceNames(ctx)
	if err != nil {
		return fmt.Errorf("failed to read device names: %w", err)
	}

	entries, err := p.table.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to query handle table: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	groups := GroupByProcess(entries, p.config.SelfPID)

	queries, fault := p.probe(ctx, groups, devices)
	if err := ctx.Err(); err != nil {
		return err
	}

	purged := p.cache.Purge()
	if p.observer != nil {
		p.observer.SetCacheSize(p.cache.Len(), p.cache.Processes())
	}

	if fault != nil {
		return fmt.Errorf("worker channel fault: %w", fault)
	}

	owners := p.owners(ctx, devices)
	err = p.store.Update(ctx, source, func(tx *registry.Tx) {
		tx.SetOwners(owners)
	})
	if err != nil {
		return fmt.Errorf("failed to update registry: %w", err)
	}

	p.logger.LogCycle(p.cycle, time.Since(started),
		zap.Int("processes", len(groups)),
		zap.Int("handles", len(entries)),
		zap.Int("queries", queries),
		zap.Int("purged", purged),
		zap.Int("owners", len(owners)),
	)
	return nil
}

// probe marks every handle present and asks the worker for the names that are
// still needed. After a channel fault the remaining handles are only marked.
func (p *Poller) probe(ctx context.Context, groups []ProcessHandles, devices map[string]struct{}) (int, error) {
	p.cache.MarkAllAbsent()

	var fault error
	queries := 0

	for _, g := range groups {
		probing := fault == nil

		for _, h := range g.Handles {
			e := p.cache.At(p.cache.Ensure(g.PID, h))
			e.Present = true

			if !probing {
				continue
			}
			if e.Name != nil {
				if _, tracked := devices[*e.Name]; !tracked {
					continue
				}
			}

			resp, err := p.channel.Exchange(ctx, Request{PID: g.PID, Handle: h})
			queries++
			if err != nil {
				p.closeChannel()
				if ctx.Err() != nil {
					return queries, ctx.Err()
				}
				if p.observer != nil {
					p.observer.ObserveChannelFault()
				}
				fault = err
				probing = false
				continue
			}

			if p.observer != nil {
				p.observer.ObserveStatus(resp.Status)
			}
			if skip := apply(e, resp); skip {
				probing = false
			}
		}
	}
	return queries, fault
}

// apply records a worker response on the entry. It returns true when the
// rest of the process should not be probed this cycle.
func apply(e *Entry, resp Response) bool {
	e.LastStatus = resp.Status

	switch resp.Status {
	case StatusSuccess:
		e.Name = model.StringPtr(resp.Name())
		e.Retries = 0
	case StatusSameProcess, StatusOpenProcessFailed:
		return true
	case StatusDuplicateFailed, StatusQueryTypeFailed:
		e.Name = model.StringPtr("")
	case StatusInvalidType:
		if e.Retries < 1 {
			e.Retries++
		} else {
			e.Name = model.StringPtr("")
		}
	case StatusQueryNameFailed:
		// a name obtained earlier stays valid
		if e.Name != nil {
			break
		}
		if e.Retries < 1 {
			e.Retries++
		} else {
			e.Name = model.StringPtr("")
		}
	}
	return false
}

// owners maps tracked device identifiers to the display name of the first
// process (lowest pid) holding them
func (p *Poller) owners(ctx context.Context, devices map[string]struct{}) map[string]string {
	owners := make(map[string]string)
	names := make(map[int32]string)

	p.cache.Each(func(e *Entry) {
		if e.Name == nil || *e.Name == "" {
			return
		}
		if _, tracked := devices[*e.Name]; !tracked {
			return
		}
		if _, seen := owners[*e.Name]; seen {
			return
		}
		owners[*e.Name] = p.processName(ctx, e.PID, names)
	})
	return owners
}

func (p *Poller) processName(ctx context.Context, pid int32, names map[int32]string) string {
	if name, ok := names[pid]; ok {
		return name
	}

	name := model.UnknownProcess
	if p.namer != nil {
		resolved, err := p.namer.Name(ctx, pid)
		if err != nil {
			p.logger.Debug("Failed to resolve process name", zap.Int32("pid", pid), zap.Error(err))
		} else if resolved != "" {
			name = resolved
		}
	}

	names[pid] = name
	return name
}

func (p *Poller) serveQueries() {
	for {
		select {
		case q := <-p.pidQueries:
			q.reply <- p.cache.PIDs()
		case q := <-p.handleQueries:
			q.reply <- p.cache.Handles(q.pid)
		default:
			return
		}
	}
}

func (p *Poller) stopped() <-chan struct{} {
	if p.Loop == nil {
		return nil
	}
	return p.Loop.Done()
}

// QueryPIDs returns the ids of processes with cached handles, in ascending
// order. The answer is produced at the end of the next cycle.
func (p *Poller) QueryPIDs(ctx context.Context) ([]int32, error) {
	q := pidQuery{reply: make(chan []int32, 1)}

	select {
	case p.pidQueries <- q:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.stopped():
		return nil, ErrStopped
	}

	select {
	case pids := <-q.reply:
		return pids, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.stopped():
		select {
		case pids := <-q.reply:
			return pids, nil
		default:
			return nil, ErrStopped
		}
	}
}

// QueryHandles returns the cached handles of pid in ascending handle order.
// The answer is produced at the end of the next cycle.
func (p *Poller) QueryHandles(ctx context.Context, pid int32) ([]HandleInfo, error) {
	q := handleQuery{pid: pid, reply: make(chan []HandleInfo, 1)}

	select {
	case p.handleQueries <- q:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.stopped():
		return nil, ErrStopped
	}

	select {
	case infos := <-q.reply:
		return infos, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.stopped():
		select {
		case infos := <-q.reply:
			return infos, nil
		default:
			return nil, ErrStopped
		}
	}
}
