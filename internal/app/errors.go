package service

import "errors"

// ErrStopped is returned by Start once the service has been stopped; the
// display queue is closed by Stop and is not reopened.
var ErrStopped = errors.New("service stopped")
