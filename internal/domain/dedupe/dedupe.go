// Package dedupe drops motion samples that a feed delivers more than once.
//
// MQTT at-least-once delivery and websocket client reconnects can replay a
// sample; recording it twice would fake a zero delta and inflate the score.
package dedupe

import (
	"context"
	"sync"
)

// DefaultWindow is how many recent sample IDs are remembered.
const DefaultWindow = 1024

// Deduper remembers recently seen sample IDs.
type Deduper interface {
	// SeenAndRecord reports whether id is in the window and records it if
	// not. Empty IDs are never considered duplicates.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a redelivery is accepted.
	Unrecord(ctx context.Context, id string)

	// Reset forgets every ID.
	Reset()

	Size() int64
}

// window is a fixed-size ring of IDs with a map index. The oldest ID is
// evicted when the ring is full.
type window struct {
	mu    sync.Mutex
	ring  []string
	next  int
	index map[string]int
}

// NewWindow creates a deduper that remembers the last DefaultWindow IDs.
func NewWindow(opts ...Option) Deduper {
	w := &window{ring: make([]string, DefaultWindow)}
	for _, opt := range opts {
		opt(w)
	}
	w.index = make(map[string]int, len(w.ring))
	return w
}

func (w *window) SeenAndRecord(_ context.Context, id string) bool {
	if id == "" {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.index[id]; ok {
		return true
	}
	if old := w.ring[w.next]; old != "" {
		delete(w.index, old)
	}
	w.ring[w.next] = id
	w.index[id] = w.next
	w.next = (w.next + 1) % len(w.ring)
	return false
}

func (w *window) Unrecord(_ context.Context, id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if slot, ok := w.index[id]; ok {
		w.ring[slot] = ""
		delete(w.index, id)
	}
}

func (w *window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	clear(w.ring)
	clear(w.index)
	w.next = 0
}

func (w *window) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return int64(len(w.index))
}
