package capture_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/stillcap/internal/adapters/capture"
	"github.com/okian/stillcap/internal/adapters/repository"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLatestFrame(t *testing.T) {
	Convey("Given an empty latest-frame holder", t, func() {
		l := capture.NewLatestFrame()
		_, ok := l.Load()
		So(ok, ShouldBeFalse)
		So(l.Seq(), ShouldEqual, 0)

		Convey("When frames are stored", func() {
			l.Store([]byte("one"), "", 10)
			l.Store([]byte("two"), "image/png", 20)

			Convey("Then the newest should be returned", func() {
				f, ok := l.Load()
				So(ok, ShouldBeTrue)
				So(string(f.Data), ShouldEqual, "two")
				So(f.ContentType, ShouldEqual, "image/png")
				So(f.Seq, ShouldEqual, 2)
			})
		})

		Convey("When waiting and no frame arrives", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()

			Convey("Then Wait should time out", func() {
				So(l.Wait(ctx, 0), ShouldEqual, context.DeadlineExceeded)
			})
		})

		Convey("When a frame arrives while waiting", func() {
			go func() {
				time.Sleep(10 * time.Millisecond)
				l.Store([]byte("x"), "", 1)
			}()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			Convey("Then Wait should return", func() {
				So(l.Wait(ctx, 0), ShouldBeNil)
			})
		})
	})
}

func TestCollector(t *testing.T) {
	Convey("Given a collector over a frame store", t, func() {
		ctx := context.Background()
		frames := capture.NewLatestFrame()
		store := repository.NewMemoryStore()
		n := 0
		c := capture.NewCollector(frames, store,
			capture.WithClock(func() time.Time { return time.UnixMilli(42) }),
			capture.WithIDGenerator(func() string { n++; return fmt.Sprintf("f-%d", n) }),
		)

		Convey("When capturing before any camera frame", func() {
			c.Capture()

			Convey("Then nothing should be stored", func() {
				So(store.Count(ctx), ShouldEqual, 0)
			})
		})

		Convey("When capturing with a frame available", func() {
			frames.Store([]byte("jpeg"), "", 5)
			c.Capture()
			c.Capture()

			Convey("Then every capture should store a copy", func() {
				So(store.Count(ctx), ShouldEqual, 2)
				f, err := store.Get(ctx, "f-1")
				So(err, ShouldBeNil)
				So(string(f.Data), ShouldEqual, "jpeg")
				So(f.CapturedAtMs, ShouldEqual, 42)
				So(f.ContentType, ShouldEqual, capture.DefaultContentType)
				So(f.Size, ShouldEqual, 4)
			})

			Convey("Then reset should clear the session's frames", func() {
				c.Reset()
				So(store.Count(ctx), ShouldEqual, 0)
			})
		})

		Convey("When using the default ID generator", func() {
			c := capture.NewCollector(frames, store)
			frames.Store([]byte("jpeg"), "", 5)
			c.Capture()

			Convey("Then the frame should get a UUID", func() {
				list := store.List(ctx)
				So(list, ShouldHaveLength, 1)
				So(list[0].ID, ShouldHaveLength, 36)
			})
		})
	})
}

func TestCameraHandler(t *testing.T) {
	Convey("Given a camera endpoint", t, func() {
		frames := capture.NewLatestFrame()
		h := capture.NewCameraHandler(frames)
		srv := httptest.NewServer(h)
		defer srv.Close()

		url := "ws" + strings.TrimPrefix(srv.URL, "http")
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		So(err, ShouldBeNil)
		defer conn.Close()

		Convey("When the client announces PNG and sends a frame", func() {
			So(conn.WriteMessage(websocket.TextMessage, []byte(`{"content_type":"image/png"}`)), ShouldBeNil)
			So(conn.WriteMessage(websocket.BinaryMessage, []byte{0x89, 'P', 'N', 'G'}), ShouldBeNil)

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			So(frames.Wait(ctx, 0), ShouldBeNil)

			Convey("Then the frame should be the latest", func() {
				f, ok := frames.Load()
				So(ok, ShouldBeTrue)
				So(f.ContentType, ShouldEqual, "image/png")
				So(f.Data, ShouldResemble, []byte{0x89, 'P', 'N', 'G'})
				So(h.Connected(), ShouldEqual, 1)
			})
		})
	})
}
