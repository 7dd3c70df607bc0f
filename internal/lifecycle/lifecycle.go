// internal/lifecycle/lifecycle.go
package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
)

// Poller is a background worker that can be stopped
type Poller interface {
	// Stop cancels the worker and waits for its cleanup to finish or for ctx
	// to expire. Calling Stop more than once is allowed.
	Stop(ctx context.Context) error
}

// Loop runs a function on its own goroutine until it returns or is cancelled
type Loop struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

// Go starts fn immediately. The context passed to fn is cancelled by Stop.
func Go(name string, fn func(ctx context.Context)) *Loop {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loop{
		name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(l.done)
		fn(ctx)
	}()

	return l
}

// Name returns the loop name
func (l *Loop) Name() string {
	return l.name
}

// Done is closed once the loop function has returned
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Stop cancels the loop and waits for it to return
func (l *Loop) Stop(ctx context.Context) error {
	l.cancel()

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s did not stop: %w", l.name, ctx.Err())
	}
}

// StopAll stops every poller concurrently and combines their errors
func StopAll(ctx context.Context, pollers ...Poller) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)

	for _, p := range pollers {
		if p == nil {
			continue
		}
		wg.Add(1)
		go func(p Poller) {
			defer wg.Done()
			if err := p.Stop(ctx); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
		}(p)
	}

	wg.Wait()
	return errs
}
