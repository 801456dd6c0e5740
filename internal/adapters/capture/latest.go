// Package capture turns the camera feed into stored stills.
package capture

import (
	"context"
	"sync/atomic"
)

// DefaultContentType is assumed until a camera client announces another.
const DefaultContentType = "image/jpeg"

// Latest is the most recent camera frame.
type Latest struct {
	Data        []byte
	ContentType string
	ReceivedMs  int64
	Seq         uint64
}

// LatestFrame holds the newest camera frame. Writers replace it wholesale;
// readers never see a partially written frame.
type LatestFrame struct {
	frame   atomic.Pointer[Latest]
	changed atomic.Pointer[chan struct{}]
}

// NewLatestFrame returns an empty holder.
func NewLatestFrame() *LatestFrame {
	l := &LatestFrame{}
	l.frame.Store(&Latest{})
	ch := make(chan struct{})
	l.changed.Store(&ch)
	return l
}

// Store publishes a new frame. data must not be modified afterwards.
func (l *LatestFrame) Store(data []byte, contentType string, receivedMs int64) {
	if contentType == "" {
		contentType = DefaultContentType
	}
	for {
		old := l.frame.Load()
		next := &Latest{Data: data, ContentType: contentType, ReceivedMs: receivedMs, Seq: old.Seq + 1}
		if l.frame.CompareAndSwap(old, next) {
			break
		}
	}
	ch := make(chan struct{})
	close(*l.changed.Swap(&ch))
}

// Load returns the newest frame and whether any frame was received.
func (l *LatestFrame) Load() (Latest, bool) {
	f := *l.frame.Load()
	return f, f.Seq > 0
}

// Seq returns the number of frames received.
func (l *LatestFrame) Seq() uint64 { return l.frame.Load().Seq }

// Wait blocks until a frame newer than after arrives or ctx is done.
func (l *LatestFrame) Wait(ctx context.Context, after uint64) error {
	for {
		ch := *l.changed.Load()
		if l.Seq() > after {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
