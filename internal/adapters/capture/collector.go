package capture

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/okian/stillcap/internal/adapters/repository"
	"github.com/okian/stillcap/internal/domain/model"
	"github.com/okian/stillcap/pkg/logger"
	"github.com/okian/stillcap/pkg/metrics"
)

// Collector is the capture sink: each Capture copies the latest camera frame
// into the frame store.
type Collector struct {
	frames *LatestFrame
	store  repository.Store
	logger logger.Logger
	now    func() time.Time
	newID  func() string
}

// CollectorOption applies a configuration option to the Collector.
type CollectorOption func(*Collector)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) CollectorOption {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the clock used to stamp captures.
func WithClock(now func() time.Time) CollectorOption {
	return func(c *Collector) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator overrides how frame IDs are generated.
func WithIDGenerator(gen func() string) CollectorOption {
	return func(c *Collector) {
		if gen != nil {
			c.newID = gen
		}
	}
}

// NewCollector creates a capture sink backed by store.
func NewCollector(frames *LatestFrame, store repository.Store, opts ...CollectorOption) *Collector {
	c := &Collector{
		frames: frames,
		store:  store,
		logger: logger.Nop(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Capture stores the current camera frame. Failures are logged and counted;
// the session keeps going.
func (c *Collector) Capture() {
	ctx := context.Background()
	latest, ok := c.frames.Load()
	if !ok {
		c.fail(ctx, "no_frame", ErrNoFrame)
		return
	}

	f := model.Frame{
		ID:           c.newID(),
		Seq:          latest.Seq,
		CapturedAtMs: c.now().UnixMilli(),
		ContentType:  latest.ContentType,
		Size:         len(latest.Data),
		Data:         latest.Data,
	}
	if err := c.store.Append(ctx, f); err != nil {
		c.fail(ctx, "store", err)
		return
	}
	c.logger.Debug(ctx, "frame stored",
		logger.String("frame_id", f.ID),
		logger.Int("bytes", f.Size),
	)
}

// Reset drops the previous session's frames.
func (c *Collector) Reset() {
	c.store.Reset(context.Background())
}

func (c *Collector) fail(ctx context.Context, kind string, err error) {
	metrics.RecordCaptureFailure()
	metrics.RecordErrorByComponent("capture", kind)
	c.logger.Warn(ctx, "capture failed", logger.Error(err))
}
