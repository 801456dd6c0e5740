package sensor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okian/stillcap/internal/domain/dedupe"
	"github.com/okian/stillcap/internal/domain/model"
	"github.com/okian/stillcap/pkg/logger"
	"github.com/okian/stillcap/pkg/metrics"
)

// DefaultHandover is how long the active source may stay silent before
// another source takes over the buffer.
const DefaultHandover = 2 * time.Second

// Recorder is where accepted samples go.
type Recorder interface {
	Record(s model.MotionSample)
	ClearBaseline()
}

// Ingestor validates, deduplicates and records samples from any feed.
// Only one source records at a time: the first source to deliver a valid
// sample holds the buffer until it goes silent for the handover period.
type Ingestor struct {
	buffer   Recorder
	seen     dedupe.Deduper
	mode     model.GravityMode
	handover time.Duration
	now      func() time.Time
	logger   logger.Logger

	mu       sync.Mutex
	active   string
	lastSeen time.Time
}

// IngestOption applies a configuration option to the Ingestor.
type IngestOption func(*Ingestor)

// WithGravityMode selects which acceleration field is recorded.
func WithGravityMode(mode model.GravityMode) IngestOption {
	return func(i *Ingestor) { i.mode = mode }
}

// WithDeduper sets the duplicate filter.
func WithDeduper(d dedupe.Deduper) IngestOption {
	return func(i *Ingestor) {
		if d != nil {
			i.seen = d
		}
	}
}

// WithHandover sets how long the active source may stay silent before
// another source is accepted.
func WithHandover(d time.Duration) IngestOption {
	return func(i *Ingestor) {
		if d > 0 {
			i.handover = d
		}
	}
}

// WithIngestClock overrides the clock used for handover.
func WithIngestClock(now func() time.Time) IngestOption {
	return func(i *Ingestor) {
		if now != nil {
			i.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) IngestOption {
	return func(i *Ingestor) {
		if l != nil {
			i.logger = l
		}
	}
}

// NewIngestor creates an ingestor recording into buffer.
func NewIngestor(buffer Recorder, opts ...IngestOption) *Ingestor {
	i := &Ingestor{
		buffer:   buffer,
		seen:     dedupe.NewWindow(),
		mode:     model.GravityIncluded,
		handover: DefaultHandover,
		now:      time.Now,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Ingest decodes one wire message from feed and records it.
func (i *Ingestor) Ingest(ctx context.Context, feed string, payload []byte) error {
	id, s, err := Decode(payload, i.mode)
	if err != nil {
		metrics.RecordSampleInvalid(feed)
		return err
	}
	return i.record(ctx, feed, id, s)
}

func (i *Ingestor) record(ctx context.Context, feed, id string, s model.MotionSample) error {
	if !s.Acceleration.IsFinite() || !s.RotationRate.IsFinite() {
		metrics.RecordSampleInvalid(feed)
		return fmt.Errorf("%w: non-finite reading", ErrInvalidSample)
	}
	if i.seen.SeenAndRecord(ctx, id) {
		metrics.RecordSampleDuplicate(feed)
		i.logger.Debug(ctx, "duplicate sample dropped", logger.String("feed", feed), logger.String("id", id))
		return fmt.Errorf("%w: %s", ErrDuplicateSample, id)
	}

	src := SourceOf(feed, id)
	i.mu.Lock()
	defer i.mu.Unlock()
	now := i.now()
	if src != i.active {
		if i.active != "" && now.Sub(i.lastSeen) < i.handover {
			metrics.RecordSampleForeign(feed)
			return fmt.Errorf("%w: %s holds the buffer", ErrForeignSource, i.active)
		}
		if i.active != "" {
			// Deltas across devices are meaningless; restart from this sample.
			i.buffer.ClearBaseline()
		}
		i.logger.Info(ctx, "sensor source active", logger.String("source", src), logger.String("previous", i.active))
		i.active = src
	}
	i.lastSeen = now
	i.buffer.Record(s)
	metrics.RecordSampleRecorded(feed)
	return nil
}

// Active returns the source currently holding the buffer, empty before the
// first sample.
func (i *Ingestor) Active() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.active
}

// SourceOf names the device a sample came from. Sample IDs are
// "<device>:<seq>" and a device may publish on several feeds; samples
// without a device part are attributed to the feed as a whole.
func SourceOf(feed, id string) string {
	if n := strings.LastIndexByte(id, ':'); n > 0 {
		return "device/" + id[:n]
	}
	return "feed/" + feed
}
