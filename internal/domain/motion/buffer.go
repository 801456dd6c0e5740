// Package motion holds the two most recent motion samples for the scorer.
//
// The buffer is written by sensor feeds and read by the frame loop without
// locks: every Record publishes a new immutable Snapshot through an atomic
// pointer, so a reader always sees a matching current/previous pair.
package motion

import (
	"context"
	"sync/atomic"

	"github.com/okian/stillcap/internal/domain/model"
)

// Snapshot is a consistent view of the buffer.
type Snapshot struct {
	Current     model.MotionSample
	Previous    model.MotionSample
	HasBaseline bool
	// Seq counts samples recorded since the buffer was created. It is not
	// reset by ClearBaseline.
	Seq uint64
}

// Buffer keeps the latest and previous motion samples.
type Buffer struct {
	state   atomic.Pointer[Snapshot]
	changed atomic.Pointer[chan struct{}]
}

// NewBuffer returns an empty buffer: both samples zero, no baseline.
func NewBuffer() *Buffer {
	b := &Buffer{}
	b.state.Store(&Snapshot{})
	ch := make(chan struct{})
	b.changed.Store(&ch)
	return b
}

// Record shifts current into previous and stores s as current. The first
// sample after construction or ClearBaseline becomes the baseline and also
// seeds previous, so the first delta is zero rather than a jump from the
// zero vector.
func (b *Buffer) Record(s model.MotionSample) {
	for {
		old := b.state.Load()
		next := &Snapshot{Current: s, Previous: old.Current, HasBaseline: true, Seq: old.Seq + 1}
		if !old.HasBaseline {
			next.Previous = s
		}
		if b.state.CompareAndSwap(old, next) {
			break
		}
	}

	ch := make(chan struct{})
	close(*b.changed.Swap(&ch))
}

// ClearBaseline drops both samples. Called at session start so a stale
// sample from a previous session never seeds a delta.
func (b *Buffer) ClearBaseline() {
	for {
		old := b.state.Load()
		if b.state.CompareAndSwap(old, &Snapshot{Seq: old.Seq}) {
			return
		}
	}
}

// Snapshot returns current, previous and the baseline flag as one read.
func (b *Buffer) Snapshot() Snapshot { return *b.state.Load() }

// Current returns the latest sample.
func (b *Buffer) Current() model.MotionSample { return b.state.Load().Current }

// Previous returns the sample before the latest one.
func (b *Buffer) Previous() model.MotionSample { return b.state.Load().Previous }

// HasBaseline reports whether at least one sample was recorded since the
// last ClearBaseline.
func (b *Buffer) HasBaseline() bool { return b.state.Load().HasBaseline }

// Seq returns the number of samples recorded so far.
func (b *Buffer) Seq() uint64 { return b.state.Load().Seq }

// Wait blocks until a sample with sequence greater than after is recorded or
// ctx is done.
func (b *Buffer) Wait(ctx context.Context, after uint64) error {
	for {
		ch := *b.changed.Load()
		if b.Seq() > after {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
