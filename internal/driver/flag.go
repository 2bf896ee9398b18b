package driver

import (
	"context"
	"sync/atomic"
	"time"
)

// Flag is the completion flag shared by a completion handler and the driver
// loop. The handler sets it; the driver polls it.
type Flag struct {
	set atomic.Bool
}

// Set marks the flag. Setting twice is harmless.
func (f *Flag) Set() { f.set.Store(true) }

// IsSet reports whether Set has been called.
func (f *Flag) IsSet() bool { return f.set.Load() }

// Poll checks the flag every interval until it is set, calling tick before
// each sleep. It returns ctx.Err() if ctx ends first.
func (f *Flag) Poll(ctx context.Context, interval time.Duration, tick func()) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for !f.IsSet() {
		if tick != nil {
			tick()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			timer.Reset(interval)
		}
	}
	return nil
}
