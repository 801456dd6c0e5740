package capture

import "errors"

// ErrNoFrame is recorded when a capture fires before any camera frame arrived.
var ErrNoFrame = errors.New("no camera frame available")
