// internal/schedule/delay.go
package schedule

import (
	"context"
	"fmt"
	"time"
)

// Delay paces a polling loop so that consecutive cycles start one period apart.
// The time spent inside a cycle is subtracted from the following pause.
type Delay struct {
	period time.Duration
	start  time.Time
	now    func() time.Time
}

// NewDelay creates a delay with the given period
func NewDelay(period time.Duration) (*Delay, error) {
	if period < 0 {
		return nil, fmt.Errorf("delay period must not be negative: %s", period)
	}

	d := &Delay{
		period: period,
		now:    time.Now,
	}
	d.start = d.now()
	return d, nil
}

// Period returns the configured period
func (d *Delay) Period() time.Duration {
	return d.period
}

// Start marks the beginning of a cycle
func (d *Delay) Start() {
	d.start = d.now()
}

// Remaining restarts the measurement and returns how long the caller should
// wait for the current cycle to fill one period, never less than zero.
func (d *Delay) Remaining() time.Duration {
	last := d.start
	d.Start()

	wait := d.period - d.start.Sub(last)
	if wait < 0 {
		wait = 0
	}
	return wait
}

// Pause waits out the remainder of the period. It returns ctx.Err() if the
// context is cancelled first.
func (d *Delay) Pause(ctx context.Context) error {
	wait := d.Remaining()

	if wait == 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
