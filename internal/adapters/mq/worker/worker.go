// Package worker delivers queued observations to display subscribers.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/stillcap/internal/domain/model"
	"github.com/okian/stillcap/pkg/logger"
	"github.com/okian/stillcap/pkg/metrics"
)

const (
	defaultPublishTimeout = 250 * time.Millisecond
)

// Queue defines how the dispatcher receives observations.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Observation
}

// Publisher fans an observation out to subscribers.
type Publisher interface {
	Publish(ctx context.Context, obs model.Observation) error
}

// Worker consumes observations until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the current observation.
	Shutdown(ctx context.Context) error
}

// Dispatcher is a single worker so observations reach subscribers in tick
// order.
type Dispatcher struct {
	queue     Queue
	publisher Publisher
	name      string
	timeout   time.Duration

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewDispatcher creates a dispatcher with configuration options.
func NewDispatcher(queue Queue, publisher Publisher, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:     queue,
		publisher: publisher,
		name:      "dispatcher",
		timeout:   defaultPublishTimeout,
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run starts the dispatch loop.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	items := d.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.shutdown:
			return
		case obs, ok := <-items:
			if !ok {
				return
			}
			if err := d.dispatch(ctx, obs); err != nil {
				d.logger.Debug(ctx, "observation not delivered", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the dispatcher.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	select {
	case <-d.shutdown:
	default:
		close(d.shutdown)
	}

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		d.logger.Warn(ctx, "shutdown timed out", logger.String("worker", d.name))
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, obs model.Observation) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	pctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.publisher.Publish(pctx, obs); err != nil {
		metrics.RecordErrorByComponent("dispatcher", "publish")
		return fmt.Errorf("publish observation: %w", err)
	}
	metrics.RecordObservationSent()
	return nil
}
