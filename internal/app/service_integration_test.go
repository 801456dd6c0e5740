package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	service "github.com/okian/stillcap/internal/app"
	"github.com/okian/stillcap/internal/adapters/http/api"
	"github.com/okian/stillcap/internal/config"
	"github.com/okian/stillcap/internal/domain/model"
	"github.com/okian/stillcap/internal/domain/startup"
	"github.com/okian/stillcap/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	_ = logger.SetLevelString("error")
}

func dial(srv *httptest.Server, path string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+path, nil)
	return conn, err
}

// stream sends one still sample and one camera frame every 5 ms until ctx ends.
func stream(ctx context.Context, sensorConn, cameraConn *websocket.Conn) {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		sample := fmt.Sprintf(`{"id":"it:%d","accelerationIncludingGravity":{"x":0,"y":0,"z":9.81},"rotationRate":{"alpha":0,"beta":0,"gamma":0},"timestamp_ms":%d}`, i, i)
		if sensorConn.WriteMessage(websocket.TextMessage, []byte(sample)) != nil {
			return
		}
		if cameraConn != nil && cameraConn.WriteMessage(websocket.BinaryMessage, []byte(fmt.Sprintf("frame-%d", i))) != nil {
			return
		}
	}
}

func newStation(cfg *config.Config) (*service.Service, *httptest.Server) {
	svc := service.New(service.WithConfig(cfg), service.WithLogger(logger.Get()))
	mux := http.NewServeMux()
	api.NewServer(svc.Controller(), svc.Store(), api.WithFeeds(svc.Feeds()), api.WithStatsProvider(svc)).Register(mux)
	return svc, httptest.NewServer(mux)
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a running station with fast frames", t, func() {
		cfg := config.New()
		cfg.FrameIntervalMS = 5
		cfg.CooldownMS = 20
		cfg.TargetCount = 3
		cfg.LivenessTimeoutMS = 1000
		cfg.CameraTimeoutMS = 1000

		svc, srv := newStation(cfg)
		defer srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a still phone and a camera stream and a session starts", func() {
			sensorConn, err := dial(srv, "/ws/sensors")
			So(err, ShouldBeNil)
			defer sensorConn.Close()
			cameraConn, err := dial(srv, "/ws/camera")
			So(err, ShouldBeNil)
			defer cameraConn.Close()
			viewer, err := dial(srv, "/ws/observations")
			So(err, ShouldBeNil)
			defer viewer.Close()

			streamCtx, stopStream := context.WithCancel(ctx)
			defer stopStream()
			go stream(streamCtx, sensorConn, cameraConn)

			// Permission is granted once the first sample lands.
			for svc.Buffer().Seq() == 0 && ctx.Err() == nil {
				time.Sleep(time.Millisecond)
			}
			time.Sleep(20 * time.Millisecond)
			So(svc.Controller().Start(ctx), ShouldBeNil)

			for svc.Controller().State() != model.Stopped && ctx.Err() == nil {
				time.Sleep(5 * time.Millisecond)
			}

			Convey("Then the target should be captured and the session stop", func() {
				So(svc.Controller().State(), ShouldEqual, model.Stopped)
				stats := svc.Controller().Stats()
				So(stats.CaptureCount, ShouldEqual, 3)
				So(stats.ScoreMax, ShouldEqual, 1.0)
				So(svc.Store().Count(ctx), ShouldEqual, 3)

				frames := svc.Store().List(ctx)
				f, err := svc.Store().Get(ctx, frames[0].ID)
				So(err, ShouldBeNil)
				So(string(f.Data), ShouldStartWith, "frame-")
			})

			Convey("Then the viewer should receive observations", func() {
				_ = viewer.SetReadDeadline(time.Now().Add(2 * time.Second))
				_, data, err := viewer.ReadMessage()
				So(err, ShouldBeNil)
				var obs map[string]any
				So(json.Unmarshal(data, &obs), ShouldBeNil)
				So(obs["target_count"], ShouldEqual, 3.0)
				So(obs["score"], ShouldEqual, 1.0)
			})
		})

		Convey("When no sensor is connected and a session starts", func() {
			err := svc.Controller().Start(ctx)

			Convey("Then it should fail with permission denied and stay idle", func() {
				So(startup.AsError(err).Reason, ShouldEqual, startup.ReasonPermissionDenied)
				So(svc.Controller().State(), ShouldEqual, model.Idle)
			})
		})
	})
}
