package session

import "errors"

// Errors returned by the controller.
var (
	ErrSessionActive = errors.New("session already active")
	ErrNotCapturing  = errors.New("no session is capturing")
)
