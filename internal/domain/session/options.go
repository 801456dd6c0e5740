package session

import (
	"time"

	"github.com/okian/stillcap/internal/domain/model"
	"github.com/okian/stillcap/pkg/logger"
)

// Option applies a configuration option to the Controller.
type Option func(*Controller)

// WithSettings sets the initial gate settings. Invalid settings are ignored.
func WithSettings(s model.Settings) Option {
	return func(c *Controller) {
		if s.Validate() == nil {
			c.settings = s
		}
	}
}

// WithDisplaySink sets where observations are emitted.
func WithDisplaySink(d DisplaySink) Option {
	return func(c *Controller) {
		if d != nil {
			c.display = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithListener registers a callback for state changes. It runs outside the
// controller lock.
func WithListener(fn Listener) Option {
	return func(c *Controller) {
		if fn != nil {
			c.listeners = append(c.listeners, fn)
		}
	}
}

// WithClock overrides the wall clock used to stamp session starts.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator overrides how session IDs are generated.
func WithIDGenerator(gen func() string) Option {
	return func(c *Controller) {
		if gen != nil {
			c.newID = gen
		}
	}
}
