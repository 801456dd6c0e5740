package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrNoFeed     = errors.New("feed not configured")
)

// Error codes returned in errorResponse.Code.
const (
	codeBadRequest      = "bad_request"
	codeInvalidSettings = "invalid_settings"
	codeSessionActive   = "session_active"
	codeNotCapturing    = "not_capturing"
	codeNotFound        = "not_found"
	codeInternal        = "internal_error"
)
