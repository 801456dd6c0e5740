package startup

import (
	"errors"
	"fmt"
)

// Reason classifies a failed start for the operator.
type Reason string

// Startup failure reasons.
const (
	ReasonPermissionDenied  Reason = "permission_denied"
	ReasonCameraUnavailable Reason = "camera_unavailable"
	ReasonSensorTimeout     Reason = "sensor_timeout"
	ReasonCancelled         Reason = "cancelled"
)

// Sentinel kinds wrapped by Error.
var (
	ErrPermissionDenied  = errors.New("motion sensor permission is required")
	ErrCameraUnavailable = errors.New("no camera frame received")
	ErrSensorTimeout     = errors.New("no motion sensor data received")
	ErrCancelled         = errors.New("start cancelled")
)

// Error is returned by RequestStart. It carries a reason code for the API
// and a human-readable message for the operator.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// AsError extracts an *Error from err, wrapping unknown errors as cancelled
// so callers always get a reason.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return &Error{Reason: ReasonCancelled, Err: err}
}
