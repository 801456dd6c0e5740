package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/stillcap/internal/adapters/mq/queue"
	"github.com/okian/stillcap/internal/adapters/mq/worker"
	"github.com/okian/stillcap/internal/domain/model"
	"github.com/okian/stillcap/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockPublisher struct {
	mu   sync.Mutex
	got  []model.Observation
	fail error
}

func (m *mockPublisher) Publish(_ context.Context, obs model.Observation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.got = append(m.got, obs)
	return nil
}

func (m *mockPublisher) counts() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.got))
	for i, o := range m.got {
		out[i] = o.CaptureCount
	}
	return out
}

func TestDispatcher(t *testing.T) {
	convey.Convey("Given a dispatcher over an observation queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		pub := &mockPublisher{}
		d := worker.NewDispatcher(q, pub, worker.WithName("display"), worker.WithLogger(logger.Nop()))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		convey.Convey("When observations are queued and the queue closes", func() {
			for i := 1; i <= 3; i++ {
				q.Observe(model.Observation{CaptureCount: i})
			}
			_ = q.Close()
			d.Run(ctx)

			convey.Convey("Then they should be published in order", func() {
				convey.So(pub.counts(), convey.ShouldResemble, []int{1, 2, 3})
			})
		})

		convey.Convey("When the publisher fails", func() {
			pub.fail = errors.New("no subscribers")
			q.Observe(model.Observation{CaptureCount: 1})
			q.Observe(model.Observation{CaptureCount: 2})
			_ = q.Close()
			d.Run(ctx)

			convey.Convey("Then the dispatcher should keep draining", func() {
				convey.So(q.Len(ctx), convey.ShouldEqual, 0)
				convey.So(pub.counts(), convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When shut down while idle", func() {
			go d.Run(ctx)
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()

			convey.Convey("Then it should stop promptly", func() {
				convey.So(d.Shutdown(sctx), convey.ShouldBeNil)
				convey.So(d.Shutdown(sctx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When shutdown times out", func() {
			sctx, scancel := context.WithCancel(context.Background())
			scancel()

			convey.Convey("Then it should report the timeout", func() {
				convey.So(d.Shutdown(sctx), convey.ShouldNotBeNil)
			})
		})
	})
}
