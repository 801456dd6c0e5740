package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/stillcap/internal/domain/model"
	"github.com/okian/stillcap/pkg/metrics"
)

// MemoryStore keeps frames in memory, ordered by capture.
type MemoryStore struct {
	mu        sync.RWMutex
	frames    []model.Frame
	byID      map[string]int
	bytes     int64
	maxFrames int
}

// NewMemoryStore creates an empty frame store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{byID: make(map[string]int)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, f model.Frame) error {
	if f.ID == "" {
		return ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[f.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, f.ID)
	}
	if s.maxFrames > 0 && len(s.frames) >= s.maxFrames {
		return fmt.Errorf("%w: %d frames", ErrStoreFull, s.maxFrames)
	}
	if f.Size == 0 {
		f.Size = len(f.Data)
	}
	s.byID[f.ID] = len(s.frames)
	s.frames = append(s.frames, f)
	s.bytes += int64(len(f.Data))
	metrics.UpdateStoredFrames(len(s.frames), s.bytes)
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (model.Frame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return model.Frame{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.frames[i], nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context) []model.Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Frame, len(s.frames))
	for i, f := range s.frames {
		f.Data = nil
		out[i] = f
	}
	return out
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.frames)
}

// Reset implements Store.
func (s *MemoryStore) Reset(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = nil
	clear(s.byID)
	s.bytes = 0
	metrics.UpdateStoredFrames(0, 0)
}
