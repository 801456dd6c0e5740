// Package startup runs the checks that must pass before a capture session
// may begin: sensor permission, camera readiness and sensor liveness.
package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/stillcap/pkg/logger"
	"github.com/okian/stillcap/pkg/metrics"
)

// Check is one startup step. Run returns nil or an *Error.
type Check interface {
	Name() string
	Run(ctx context.Context) error
}

// Grants reports whether motion sensor access has been granted by a client.
type Grants interface {
	Granted() bool
}

// Waiter is implemented by anything with a monotonically increasing sequence
// that can be waited on (motion buffer, latest camera frame).
type Waiter interface {
	Seq() uint64
	Wait(ctx context.Context, after uint64) error
}

// Sequence runs checks in order and stops at the first failure.
type Sequence struct {
	checks []Check
	logger logger.Logger
}

// Option applies a configuration option to the Sequence.
type Option func(*Sequence)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Sequence) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithChecks appends checks to the sequence.
func WithChecks(checks ...Check) Option {
	return func(s *Sequence) {
		for _, c := range checks {
			if c != nil {
				s.checks = append(s.checks, c)
			}
		}
	}
}

// NewSequence creates a startup sequence.
func NewSequence(opts ...Option) *Sequence {
	s := &Sequence{logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestStart runs every check. It blocks for at most the sum of the check
// timeouts and honours ctx cancellation.
func (s *Sequence) RequestStart(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.RecordStartupDuration(float64(time.Since(start).Milliseconds()))
	}()

	for _, c := range s.checks {
		if err := ctx.Err(); err != nil {
			return s.fail(ctx, c, &Error{Reason: ReasonCancelled, Err: fmt.Errorf("%w: %w", ErrCancelled, err)})
		}
		s.logger.Debug(ctx, "running startup check", logger.String("check", c.Name()))
		if err := c.Run(ctx); err != nil {
			return s.fail(ctx, c, AsError(err))
		}
	}
	s.logger.Info(ctx, "startup checks passed", logger.Duration("took", time.Since(start)))
	return nil
}

func (s *Sequence) fail(ctx context.Context, c Check, err *Error) error {
	metrics.RecordStartupFailure(string(err.Reason))
	s.logger.Warn(ctx, "startup check failed",
		logger.String("check", c.Name()),
		logger.String("reason", string(err.Reason)),
		logger.Error(err.Err),
	)
	return err
}

// PermissionCheck fails unless a sensor client has granted motion access.
type PermissionCheck struct {
	Grants Grants
}

// Name implements Check.
func (PermissionCheck) Name() string { return "permission" }

// Run implements Check.
func (p PermissionCheck) Run(context.Context) error {
	if p.Grants == nil || !p.Grants.Granted() {
		return &Error{Reason: ReasonPermissionDenied, Err: ErrPermissionDenied}
	}
	return nil
}

// CameraCheck waits for a fresh camera frame.
type CameraCheck struct {
	Frames  Waiter
	Timeout time.Duration
}

// Name implements Check.
func (CameraCheck) Name() string { return "camera" }

// Run implements Check.
func (c CameraCheck) Run(ctx context.Context) error {
	return waitFresh(ctx, c.Frames, c.Timeout, ReasonCameraUnavailable, ErrCameraUnavailable)
}

// LivenessCheck waits for a fresh motion sample.
type LivenessCheck struct {
	Samples Waiter
	Timeout time.Duration
}

// Name implements Check.
func (LivenessCheck) Name() string { return "sensor_liveness" }

// Run implements Check.
func (l LivenessCheck) Run(ctx context.Context) error {
	return waitFresh(ctx, l.Samples, l.Timeout, ReasonSensorTimeout, ErrSensorTimeout)
}

func waitFresh(ctx context.Context, w Waiter, timeout time.Duration, reason Reason, kind error) error {
	if w == nil {
		return &Error{Reason: reason, Err: kind}
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := w.Wait(waitCtx, w.Seq()); err != nil {
		if ctx.Err() != nil {
			return &Error{Reason: ReasonCancelled, Err: fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())}
		}
		return &Error{Reason: reason, Err: fmt.Errorf("%w within %s", kind, timeout)}
	}
	return nil
}
