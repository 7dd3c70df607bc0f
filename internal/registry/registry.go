// internal/registry/registry.go
package registry

import (
	"context"
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"

	"comport-service/internal/model"
	"comport-service/internal/utils"
)

// ErrClosed is returned by calls made after Close
var ErrClosed = errors.New("registry closed")

// Publisher receives the events produced by registry updates
type Publisher interface {
	Publish(event model.PortEvent)
}

type request struct {
	source string
	fn     func(tx *Tx)
	done   chan struct{}
}

// Registry is the single owner of the tracked port list. All reads and
// writes are executed sequentially by one goroutine; callers submit work and
// block until it has run.
type Registry struct {
	naming    model.Naming
	ports     []*model.Port
	publisher Publisher
	logger    *zap.Logger

	mailbox chan request
	quit    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// New creates the registry and starts its goroutine
func New(naming model.Naming, publisher Publisher, logger *zap.Logger) *Registry {
	r := &Registry{
		naming:    naming,
		publisher: publisher,
		logger:    logger.With(zap.String("component", "registry")),
		mailbox:   make(chan request),
		quit:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go r.run()
	return r
}

// Naming returns the naming used to render port names
func (r *Registry) Naming() model.Naming {
	return r.naming
}

func (r *Registry) run() {
	defer close(r.stopped)

	for {
		select {
		case <-r.quit:
			return
		case req := <-r.mailbox:
			r.execute(req)
		}
	}
}

func (r *Registry) execute(req request) {
	defer close(req.done)

	tx := &Tx{registry: r, source: req.source}
	func() {
		defer utils.LogPanic(r.logger)
		req.fn(tx)
	}()

	if r.publisher == nil {
		return
	}
	for _, event := range tx.events {
		r.publisher.Publish(event)
	}
}

// Update runs fn inside the registry goroutine. Changes made through the
// transaction are published as port events once fn returns. fn must not call
// back into the registry.
func (r *Registry) Update(ctx context.Context, source string, fn func(tx *Tx)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := request{source: source, fn: fn, done: make(chan struct{})}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.quit:
		return ErrClosed
	case r.mailbox <- req:
	}

	<-req.done
	return nil
}

// Snapshot returns copies of all tracked ports in ascending number order
func (r *Registry) Snapshot(ctx context.Context) ([]model.Port, error) {
	var ports []model.Port
	err := r.Update(ctx, "", func(tx *Tx) {
		ports = tx.Ports()
	})
	return ports, err
}

// Get returns a copy of the port with the given number
func (r *Registry) Get(ctx context.Context, number int) (model.Port, bool, error) {
	var (
		port  model.Port
		found bool
	)
	err := r.Update(ctx, "", func(tx *Tx) {
		port, found = tx.Get(number)
	})
	return port, found, err
}

// DeviceNames returns the set of device identifiers of all tracked ports
func (r *Registry) DeviceNames(ctx context.Context) (map[string]struct{}, error) {
	var names map[string]struct{}
	err := r.Update(ctx, "", func(tx *Tx) {
		names = make(map[string]struct{}, len(r.ports))
		for _, p := range r.ports {
			names[p.DeviceName] = struct{}{}
		}
	})
	return names, err
}

// Close stops the registry goroutine. It is safe to call more than once.
func (r *Registry) Close() {
	r.once.Do(func() {
		close(r.quit)
	})
	<-r.stopped
}

func (r *Registry) index(number int) (int, bool) {
	return slices.BinarySearchFunc(r.ports, number, func(p *model.Port, n int) int {
		return p.Number - n
	})
}

func (r *Registry) portLogger(p *model.Port) *utils.PortLogger {
	return utils.NewPortLogger(r.logger, p.Name, p.DeviceName)
}
