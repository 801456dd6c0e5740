package repository

import "errors"

// Sentinel kinds for frame store errors.
var (
	ErrNotFound    = errors.New("frame not found")
	ErrDuplicateID = errors.New("frame id already stored")
	ErrStoreFull   = errors.New("frame store is full")
	ErrEmptyID     = errors.New("frame id is empty")
)
