package sensor

import "errors"

// Sentinel kinds for sensor feed errors.
var (
	ErrInvalidSample   = errors.New("invalid motion sample")
	ErrDuplicateSample = errors.New("duplicate motion sample")
	ErrForeignSource   = errors.New("another sensor source is active")
	ErrNoBroker        = errors.New("mqtt broker not configured")
)
