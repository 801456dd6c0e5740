// Package repository stores the still frames captured during a session.
package repository

import (
	"context"

	"github.com/okian/stillcap/internal/domain/model"
)

// Store provides read/write access to the captured frames of the current
// session.
type Store interface {
	// Append stores a frame. Returns ErrDuplicateID when the ID exists and
	// ErrStoreFull when the store is at capacity.
	Append(ctx context.Context, f model.Frame) error

	// Get returns a frame with its bytes. Returns ErrNotFound if unknown.
	Get(ctx context.Context, id string) (model.Frame, error)

	// List returns frame metadata in capture order, without bytes.
	List(ctx context.Context) []model.Frame

	// Count returns the number of stored frames.
	Count(ctx context.Context) int

	// Reset drops every frame.
	Reset(ctx context.Context)
}
