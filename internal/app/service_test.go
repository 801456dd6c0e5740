package service_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	service "github.com/okian/stillcap/internal/app"
	"github.com/okian/stillcap/internal/config"
	"github.com/okian/stillcap/internal/domain/model"
	"github.com/okian/stillcap/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should be idle with the default settings", func() {
			So(svc.Controller().State(), ShouldEqual, model.Idle)
			So(svc.Controller().Settings(), ShouldResemble, model.DefaultSettings())
			feeds := svc.Feeds()
			So(feeds.Sensors, ShouldNotBeNil)
			So(feeds.Camera, ShouldNotBeNil)
			So(feeds.Observations, ShouldNotBeNil)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		cfg := config.New()
		cfg.Threshold = 0.8
		cfg.TargetCount = 10
		svc := service.New(service.WithConfig(cfg), service.WithLogger(logger.Nop()))

		Convey("Then the controller should use the configured gate", func() {
			s := svc.Controller().Settings()
			So(s.Threshold, ShouldEqual, 0.8)
			So(s.TargetCount, ShouldEqual, 10)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New()
		ctx := context.Background()

		Convey("When getting stats before starting", func() {
			stats := svc.GetStats()

			Convey("Then it should report a stopped pipeline", func() {
				So(stats["started"], ShouldEqual, false)
				So(stats["state"], ShouldEqual, "idle")
				So(stats["captures"], ShouldEqual, 0)
			})
		})

		Convey("When starting and stopping the service", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			started := svc.GetStats()["started"]
			svc.Stop()
			svc.Stop()

			Convey("Then both should be idempotent", func() {
				So(started, ShouldEqual, true)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})

			Convey("Then the service should not start again", func() {
				So(errors.Is(svc.Start(ctx), service.ErrStopped), ShouldBeTrue)
			})
		})

		Convey("When an MQTT broker is configured but unreachable", func() {
			cfg := config.New()
			cfg.MQTTBroker = "tcp://127.0.0.1:1"
			svc := service.New(service.WithConfig(cfg))

			Convey("Then Start should fail", func() {
				So(svc.Start(ctx), ShouldNotBeNil)
			})
		})
	})
}

type countingTicker struct {
	n    atomic.Int64
	last atomic.Int64
}

func (c *countingTicker) Tick(nowMs int64) (model.Observation, bool) {
	c.n.Add(1)
	c.last.Store(nowMs)
	return model.Observation{}, true
}

func TestFrameDriver(t *testing.T) {
	Convey("Given a frame driver at 5 ms", t, func() {
		target := &countingTicker{}
		d := service.NewFrameDriver(target, 5*time.Millisecond)
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		Convey("When it runs until the context ends", func() {
			before := time.Now().UnixMilli()
			d.Run(ctx)

			Convey("Then it should have ticked with wall-clock milliseconds", func() {
				So(target.n.Load(), ShouldBeGreaterThan, 5)
				So(target.last.Load(), ShouldBeGreaterThanOrEqualTo, before)
			})
		})
	})
}

type stampingTicker struct {
	clock      *service.TickClock
	mismatched atomic.Int64
	n          atomic.Int64
}

func (s *stampingTicker) Tick(nowMs int64) (model.Observation, bool) {
	s.n.Add(1)
	if s.clock.Now().UnixMilli() != nowMs {
		s.mismatched.Add(1)
	}
	return model.Observation{}, true
}

func TestFrameDriver_TickClock(t *testing.T) {
	Convey("Given a frame driver publishing its tick time", t, func() {
		clock := &service.TickClock{}
		target := &stampingTicker{clock: clock}
		d := service.NewFrameDriver(target, 5*time.Millisecond, service.WithTickClock(clock))
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
		defer cancel()

		Convey("When work inside Tick reads the clock", func() {
			d.Run(ctx)

			Convey("Then it should see the tick's own timestamp", func() {
				So(target.n.Load(), ShouldBeGreaterThan, 0)
				So(target.mismatched.Load(), ShouldEqual, 0)
			})
		})
	})
}
