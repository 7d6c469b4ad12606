package timectrl

import (
	"context"
	"sync"
	"time"
)

// Clock gives read access to the controller's notion of time so tick
// consumers do not depend on the concrete controller.
type Clock interface {
	Now() time.Time
}

// Mode describes how the TimeController advances time.
type Mode int

const (
	// RealTime waits one Tick of wall-clock time between ticks.
	RealTime Mode = iota
	// Accelerated fires ticks back to back while still stepping time by Tick.
	Accelerated
)

// Listener is invoked on every tick with the tick number (starting at 0) and
// the controller time of that tick.
type Listener func(tick int, now time.Time)

// TimeController drives the periodic navigation tick and notifies registered
// listeners. Listeners run sequentially on the controller goroutine, so a
// tick always completes before the next one starts.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time
	listeners   []Listener
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the time of the latest tick. Implements Clock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// SetTime moves the controller clock without firing listeners.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.currentTime = t
}

// AddListener registers a callback invoked on every tick.
func (tc *TimeController) AddListener(fn Listener) {
	if fn == nil {
		return
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Run fires ticks until ctx is cancelled or, when maxTicks > 0, maxTicks
// ticks have run. It returns ctx.Err() on cancellation and nil otherwise.
func (tc *TimeController) Run(ctx context.Context, maxTicks int) error {
	tc.mu.Lock()
	now := tc.StartTime
	tc.currentTime = now
	listeners := append([]Listener(nil), tc.listeners...)
	tc.mu.Unlock()

	var ticks <-chan time.Time
	if tc.Mode == RealTime {
		ticker := time.NewTicker(tc.Tick)
		defer ticker.Stop()
		ticks = ticker.C
	}

	for tick := 0; maxTicks <= 0 || tick < maxTicks; tick++ {
		if ticks != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticks:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		now = now.Add(tc.Tick)
		tc.mu.Lock()
		tc.currentTime = now
		tc.mu.Unlock()

		for _, fn := range listeners {
			fn(tick, now)
		}
	}
	return nil
}

// Start runs the controller in a separate goroutine. It returns a channel
// that receives Run's result and is then closed.
func (tc *TimeController) Start(ctx context.Context, maxTicks int) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- tc.Run(ctx, maxTicks)
	}()
	return done
}
