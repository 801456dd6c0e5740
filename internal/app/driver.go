package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/okian/stillcap/internal/domain/model"
)

// Ticker is the part of the session controller driven once per frame.
type Ticker interface {
	Tick(nowMs int64) (model.Observation, bool)
}

// TickClock reports the time of the tick being handled. Work done inside
// Tick, such as storing a captured frame, reads it so its stamp matches the
// time the gate decided on. Before the first tick it reads the wall clock.
type TickClock struct {
	ms atomic.Int64
}

// Now returns the current tick time.
func (c *TickClock) Now() time.Time {
	if ms := c.ms.Load(); ms != 0 {
		return time.UnixMilli(ms)
	}
	return time.Now()
}

func (c *TickClock) advance(t time.Time) int64 {
	ms := t.UnixMilli()
	c.ms.Store(ms)
	return ms
}

// FrameDriver calls Tick at a fixed frame interval. Tick is only ever called
// from the driver goroutine.
type FrameDriver struct {
	target   Ticker
	interval time.Duration
	clock    *TickClock
}

// DriverOption applies a configuration option to the FrameDriver.
type DriverOption func(*FrameDriver)

// WithTickClock publishes each tick time on c.
func WithTickClock(c *TickClock) DriverOption {
	return func(d *FrameDriver) {
		if c != nil {
			d.clock = c
		}
	}
}

// NewFrameDriver creates a driver ticking target every interval.
func NewFrameDriver(target Ticker, interval time.Duration, opts ...DriverOption) *FrameDriver {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	d := &FrameDriver{target: target, interval: interval, clock: &TickClock{}}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run ticks until ctx is done. Missed frames are skipped, not replayed, and
// each tick is stamped when it is handled rather than when it was scheduled.
func (d *FrameDriver) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.target.Tick(d.clock.advance(time.Now()))
		}
	}
}
