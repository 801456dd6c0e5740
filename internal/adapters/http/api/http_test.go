package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/okian/stillcap/internal/adapters/http/api"
	"github.com/okian/stillcap/internal/adapters/repository"
	"github.com/okian/stillcap/internal/domain/model"
	"github.com/okian/stillcap/internal/domain/motion"
	"github.com/okian/stillcap/internal/domain/scoring"
	"github.com/okian/stillcap/internal/domain/session"
	"github.com/okian/stillcap/internal/domain/startup"
	. "github.com/smartystreets/goconvey/convey"
)

type startupFunc func(ctx context.Context) error

func (f startupFunc) RequestStart(ctx context.Context) error { return f(ctx) }

type storeSink struct {
	store *repository.MemoryStore
	n     int
}

func (s *storeSink) Capture() {
	s.n++
	_ = s.store.Append(context.Background(), model.Frame{
		ID: "frame-" + string(rune('a'+s.n-1)), Seq: uint64(s.n), ContentType: "image/jpeg", Data: []byte("JPEG"),
	})
}

func (s *storeSink) Reset() { s.store.Reset(context.Background()) }

type staticStats map[string]any

func (s staticStats) GetStats() map[string]any { return s }

type fixture struct {
	mux     *http.ServeMux
	ctrl    *session.Controller
	buf     *motion.Buffer
	store   *repository.MemoryStore
	startup error
}

func newFixture() *fixture {
	f := &fixture{buf: motion.NewBuffer(), store: repository.NewMemoryStore()}
	st := startupFunc(func(context.Context) error { return f.startup })
	f.ctrl = session.New(f.buf, scoring.NewDeltaScorer(), &storeSink{store: f.store}, st)
	srv := api.NewServer(f.ctrl, f.store,
		api.WithScorerVersion(scoring.Version),
		api.WithStatsProvider(staticStats{"uptime_seconds": 1}),
	)
	f.mux = http.NewServeMux()
	srv.Register(f.mux)
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decode(rec *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return out
}

func TestSessionEndpoints(t *testing.T) {
	Convey("Given the API over an idle controller", t, func() {
		f := newFixture()

		Convey("When the status is requested", func() {
			rec := f.do(http.MethodGet, "/session", "")

			Convey("Then it should report idle with settings and scorer", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				body := decode(rec)
				So(body["state"], ShouldEqual, "idle")
				So(body["scorer"], ShouldEqual, scoring.Version)
				So(body["settings"].(map[string]any)["target_count"], ShouldEqual, 500.0)
				So(body["last_error"], ShouldBeNil)
			})
		})

		Convey("When a session is started", func() {
			rec := f.do(http.MethodPost, "/session/start", "")

			Convey("Then it should be capturing", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(decode(rec)["state"], ShouldEqual, "capturing")
				So(f.ctrl.State(), ShouldEqual, model.Capturing)
			})

			Convey("Then a second start should conflict", func() {
				rec := f.do(http.MethodPost, "/session/start", "")
				So(rec.Code, ShouldEqual, http.StatusConflict)
				So(decode(rec)["code"], ShouldEqual, "session_active")
			})

			Convey("Then stop should end it", func() {
				rec := f.do(http.MethodPost, "/session/stop", "")
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(decode(rec)["state"], ShouldEqual, "stopped")
			})
		})

		Convey("When stopping with nothing running", func() {
			rec := f.do(http.MethodPost, "/session/stop", "")

			Convey("Then it should conflict", func() {
				So(rec.Code, ShouldEqual, http.StatusConflict)
				So(decode(rec)["code"], ShouldEqual, "not_capturing")
			})
		})

		Convey("When the startup checks fail", func() {
			f.startup = &startup.Error{Reason: startup.ReasonPermissionDenied, Err: startup.ErrPermissionDenied}
			rec := f.do(http.MethodPost, "/session/start", "")

			Convey("Then it should answer 503 with the reason", func() {
				So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
				body := decode(rec)
				So(body["code"], ShouldEqual, "permission_denied")
				So(body["message"], ShouldEqual, startup.ErrPermissionDenied.Error())
			})

			Convey("Then the status should carry the last error", func() {
				body := decode(f.do(http.MethodGet, "/session", ""))
				So(body["state"], ShouldEqual, "idle")
				So(body["last_error"].(map[string]any)["reason"], ShouldEqual, "permission_denied")
			})
		})

		Convey("When using the wrong method", func() {
			rec := f.do(http.MethodGet, "/session/start", "")

			Convey("Then the mux should reject it", func() {
				So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})
}

func TestSettingsEndpoints(t *testing.T) {
	Convey("Given the API", t, func() {
		f := newFixture()

		Convey("When a partial update is sent", func() {
			rec := f.do(http.MethodPut, "/settings", `{"threshold":0.8}`)

			Convey("Then only that field should change", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				s := f.ctrl.Settings()
				So(s.Threshold, ShouldEqual, 0.8)
				So(s.CooldownMs, ShouldEqual, model.DefaultCooldownMs)
				So(s.TargetCount, ShouldEqual, model.DefaultTargetCount)

				got := decode(f.do(http.MethodGet, "/settings", ""))
				So(got["threshold"], ShouldEqual, 0.8)
			})
		})

		Convey("When partial updates of different fields arrive concurrently", func() {
			bodies := []string{`{"threshold":0.7}`, `{"cooldown_ms":1200}`, `{"target_count":40}`}
			codes := make([]int, 30)
			var wg sync.WaitGroup
			for n := range codes {
				wg.Add(1)
				go func() {
					defer wg.Done()
					codes[n] = f.do(http.MethodPut, "/settings", bodies[n%len(bodies)]).Code
				}()
			}
			wg.Wait()

			Convey("Then every field should hold its update", func() {
				for _, code := range codes {
					So(code, ShouldEqual, http.StatusOK)
				}
				So(f.ctrl.Settings(), ShouldResemble, model.Settings{Threshold: 0.7, CooldownMs: 1200, TargetCount: 40})
			})
		})

		Convey("When out-of-range values are sent", func() {
			rec := f.do(http.MethodPut, "/settings", `{"target_count":0}`)

			Convey("Then it should answer 400 and keep the settings", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(rec)["code"], ShouldEqual, "invalid_settings")
				So(f.ctrl.Settings(), ShouldResemble, model.DefaultSettings())
			})
		})

		Convey("When malformed or unknown fields are sent", func() {
			Convey("Then it should answer 400", func() {
				So(f.do(http.MethodPut, "/settings", `{`).Code, ShouldEqual, http.StatusBadRequest)
				So(f.do(http.MethodPut, "/settings", `{"gain":2}`).Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestCaptureEndpoints(t *testing.T) {
	Convey("Given a session that captured a frame", t, func() {
		f := newFixture()
		So(f.ctrl.Start(context.Background()), ShouldBeNil)
		f.buf.Record(model.MotionSample{Acceleration: model.Vector3{Z: 9.81}})
		obs, ok := f.ctrl.Tick(0)
		So(ok, ShouldBeTrue)
		So(obs.Captured, ShouldBeTrue)

		Convey("When listing captures", func() {
			rec := f.do(http.MethodGet, "/captures", "")

			Convey("Then the frame metadata should be returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				body := decode(rec)
				So(body["count"], ShouldEqual, 1.0)
				frames := body["frames"].([]any)
				So(frames[0].(map[string]any)["id"], ShouldEqual, "frame-a")
			})
		})

		Convey("When fetching the frame", func() {
			rec := f.do(http.MethodGet, "/captures/frame-a", "")

			Convey("Then the raw bytes should be returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Header().Get("Content-Type"), ShouldEqual, "image/jpeg")
				So(rec.Body.String(), ShouldEqual, "JPEG")
			})
		})

		Convey("When fetching an unknown frame", func() {
			rec := f.do(http.MethodGet, "/captures/nope", "")

			Convey("Then it should answer 404", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
				So(decode(rec)["code"], ShouldEqual, "not_found")
			})
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	Convey("Given the API", t, func() {
		f := newFixture()

		Convey("When scraping /healthz", func() {
			rec := f.do(http.MethodGet, "/healthz", "")

			Convey("Then the Prometheus exposition should be returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "stillcap_session_state")
			})
		})

		Convey("When requesting /stats", func() {
			rec := f.do(http.MethodGet, "/stats", "")

			Convey("Then the provider output should be returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(decode(rec)["uptime_seconds"], ShouldEqual, 1.0)
			})
		})

		Convey("When a feed is not configured", func() {
			rec := f.do(http.MethodGet, "/ws/camera", "")

			Convey("Then it should answer 503", func() {
				So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})
	})
}
