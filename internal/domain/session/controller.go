// Package session implements the capture session state machine.
//
// A Controller moves through Idle → Priming → Capturing → Stopped. While
// capturing, every Tick scores the latest motion sample and fires the
// capture sink when the device is still enough and the cooldown has passed.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/stillcap/internal/domain/model"
	"github.com/okian/stillcap/internal/domain/motion"
	"github.com/okian/stillcap/internal/domain/scoring"
	"github.com/okian/stillcap/internal/domain/startup"
	"github.com/okian/stillcap/pkg/logger"
	"github.com/okian/stillcap/pkg/metrics"
)

// Stop causes reported to metrics.
const (
	stopOperator  = "operator"
	stopTarget    = "target"
	stopCancelled = "cancelled"
)

// Buffer is the motion source read on every tick.
type Buffer interface {
	Snapshot() motion.Snapshot
	ClearBaseline()
}

// CaptureSink takes a still. Reset drops the previous session's captures.
type CaptureSink interface {
	Capture()
	Reset()
}

// Startup gates the transition into Capturing.
type Startup interface {
	RequestStart(ctx context.Context) error
}

// DisplaySink receives one observation per tick. Observe must not block.
type DisplaySink interface {
	Observe(obs model.Observation)
}

// Listener is notified of state changes.
type Listener func(from, to model.SessionState)

type nopDisplay struct{}

func (nopDisplay) Observe(model.Observation) {}

type stateChange struct {
	from, to model.SessionState
}

// Controller owns one capture session at a time.
type Controller struct {
	buffer  Buffer
	scorer  scoring.Scorer
	sink    CaptureSink
	startup Startup

	display   DisplaySink
	logger    logger.Logger
	listeners []Listener
	now       func() time.Time
	newID     func() string

	mu          sync.Mutex
	settings    model.Settings
	state       model.SessionState
	stats       model.SessionStats
	sessionID   string
	lastErr     error
	cancelStart context.CancelFunc
	startGen    uint64
	pending     []stateChange
}

// New creates a controller in the Idle state.
func New(buffer Buffer, scorer scoring.Scorer, sink CaptureSink, st Startup, opts ...Option) *Controller {
	c := &Controller{
		buffer:   buffer,
		scorer:   scorer,
		sink:     sink,
		startup:  st,
		display:  nopDisplay{},
		logger:   logger.Nop(),
		now:      time.Now,
		newID:    uuid.NewString,
		settings: model.DefaultSettings(),
		state:    model.Idle,
		stats:    model.NewSessionStats(),
	}
	for _, opt := range opts {
		opt(c)
	}
	metrics.UpdateSessionState(int(c.state))
	return c
}

// Start runs the startup sequence and begins capturing. It blocks while the
// startup checks run; the controller lock is not held during that wait.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state == model.Priming || c.state == model.Capturing {
		c.mu.Unlock()
		return ErrSessionActive
	}
	pctx, cancel := context.WithCancel(ctx)
	c.startGen++
	gen := c.startGen
	c.cancelStart = cancel
	c.transition(model.Priming)
	c.unlock()

	c.logger.Info(ctx, "session priming")
	err := c.startup.RequestStart(pctx)
	cancel()

	c.mu.Lock()
	defer c.unlock()

	if gen != c.startGen || c.state != model.Priming {
		// Stop won the race and already moved us back to Idle.
		return &startup.Error{Reason: startup.ReasonCancelled, Err: startup.ErrCancelled}
	}
	c.cancelStart = nil

	if err != nil {
		serr := startup.AsError(err)
		c.lastErr = serr
		c.transition(model.Idle)
		c.logger.Warn(ctx, "session start failed",
			logger.String("reason", string(serr.Reason)),
			logger.Error(serr.Err),
		)
		return serr
	}

	started := c.now().UnixMilli()
	c.stats = model.NewSessionStats()
	c.stats.StartedAtMs = &started
	c.sessionID = c.newID()
	c.lastErr = nil
	c.buffer.ClearBaseline()
	c.sink.Reset()
	c.transition(model.Capturing)
	metrics.RecordSessionStart()

	c.logger.Info(ctx, "session capturing",
		logger.String("session_id", c.sessionID),
		logger.Float64("threshold", c.settings.Threshold),
		logger.Int64("cooldown_ms", c.settings.CooldownMs),
		logger.Int("target_count", c.settings.TargetCount),
	)
	return nil
}

// Stop ends the session. While priming it cancels the pending startup and
// returns the controller to Idle.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.unlock()

	switch c.state {
	case model.Priming:
		if c.cancelStart != nil {
			c.cancelStart()
			c.cancelStart = nil
		}
		c.startGen++
		c.lastErr = &startup.Error{Reason: startup.ReasonCancelled, Err: startup.ErrCancelled}
		c.transition(model.Idle)
		metrics.RecordSessionStop(stopCancelled)
		c.logger.Info(context.Background(), "session start cancelled")
		return nil
	case model.Capturing:
		c.transition(model.Stopped)
		metrics.RecordSessionStop(stopOperator)
		c.logger.Info(context.Background(), "session stopped",
			logger.String("session_id", c.sessionID),
			logger.Int("captures", c.stats.CaptureCount),
		)
		return nil
	default:
		return ErrNotCapturing
	}
}

// Tick evaluates one frame at nowMs. It returns false and does nothing
// unless the session is capturing.
func (c *Controller) Tick(nowMs int64) (model.Observation, bool) {
	c.mu.Lock()
	defer c.unlock()

	if c.state != model.Capturing {
		return model.Observation{}, false
	}

	snap := c.buffer.Snapshot()
	score := c.scorer.Score(snap.Current, snap.Previous, snap.HasBaseline)
	metrics.RecordTick(score)

	if score < c.stats.ScoreMin {
		c.stats.ScoreMin = score
	}
	if score > c.stats.ScoreMax {
		c.stats.ScoreMax = score
	}

	var elapsed int64
	if c.stats.StartedAtMs != nil {
		elapsed = nowMs - *c.stats.StartedAtMs
	}

	captured := false
	if c.stats.CaptureCount < c.settings.TargetCount && c.gateOpen(nowMs, score) {
		c.sink.Capture()
		c.stats.CaptureCount++
		c.stats.LastCaptureAtMs = nowMs
		captured = true
		metrics.RecordCapture()
		c.logger.Debug(context.Background(), "still captured",
			logger.Int("count", c.stats.CaptureCount),
			logger.Float64("score", score),
		)
	}

	if c.stats.CaptureCount >= c.settings.TargetCount {
		c.transition(model.Stopped)
		metrics.RecordSessionStop(stopTarget)
		c.logger.Info(context.Background(), "target reached, session stopped",
			logger.String("session_id", c.sessionID),
			logger.Int("captures", c.stats.CaptureCount),
		)
	}

	obs := model.Observation{
		Score:        score,
		ScoreMin:     c.stats.ScoreMin,
		ScoreMax:     c.stats.ScoreMax,
		ElapsedMs:    elapsed,
		CaptureCount: c.stats.CaptureCount,
		TargetCount:  c.settings.TargetCount,
		State:        c.state,
		Captured:     captured,
		Sample:       snap.Current,
	}
	c.display.Observe(obs)
	return obs, true
}

// gateOpen applies the cooldown and threshold. The first capture of a
// session is not subject to the cooldown.
func (c *Controller) gateOpen(nowMs int64, score float64) bool {
	cooled := c.stats.CaptureCount == 0 || nowMs-c.stats.LastCaptureAtMs > c.settings.CooldownMs
	return cooled && score > c.settings.Threshold
}

// Settings returns the current gate settings.
func (c *Controller) Settings() model.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// UpdateSettings replaces all settings. They take effect on the next tick.
func (c *Controller) UpdateSettings(s model.Settings) error {
	return c.patch(func(cur *model.Settings) { *cur = s })
}

// SetThreshold changes the capture threshold.
func (c *Controller) SetThreshold(v float64) error {
	return c.patch(func(s *model.Settings) { s.Threshold = v })
}

// SetCooldown changes the minimum spacing between captures.
func (c *Controller) SetCooldown(ms int64) error {
	return c.patch(func(s *model.Settings) { s.CooldownMs = ms })
}

// SetTargetCount changes the number of captures after which the session
// stops. A target at or below the current count stops it on the next tick.
func (c *Controller) SetTargetCount(n int) error {
	return c.patch(func(s *model.Settings) { s.TargetCount = n })
}

// Patch applies fn to a copy of the current settings and stores the result
// if it validates. The read and the write happen under one lock, so
// concurrent patches never overwrite each other's fields. fn runs under the
// controller lock and must not call back into the controller.
func (c *Controller) Patch(fn func(*model.Settings)) error {
	return c.patch(fn)
}

func (c *Controller) patch(fn func(*model.Settings)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.settings
	fn(&next)
	if err := next.Validate(); err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	c.settings = next
	c.logger.Info(context.Background(), "settings updated",
		logger.Float64("threshold", next.Threshold),
		logger.Int64("cooldown_ms", next.CooldownMs),
		logger.Int("target_count", next.TargetCount),
	)
	return nil
}

// Stats returns a copy of the running statistics.
func (c *Controller) Stats() model.SessionStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.stats
	if c.stats.StartedAtMs != nil {
		v := *c.stats.StartedAtMs
		out.StartedAtMs = &v
	}
	return out
}

// State returns the current state.
func (c *Controller) State() model.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the ID of the current or last session, empty before the
// first successful start.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// LastError returns the last startup failure. A successful start clears it.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// transition must be called with mu held.
func (c *Controller) transition(to model.SessionState) {
	if c.state == to {
		return
	}
	c.pending = append(c.pending, stateChange{from: c.state, to: to})
	c.state = to
	metrics.UpdateSessionState(int(to))
}

// unlock releases mu and then notifies listeners of queued transitions.
func (c *Controller) unlock() {
	changes := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, ch := range changes {
		for _, fn := range c.listeners {
			fn(ch.from, ch.to)
		}
	}
}
