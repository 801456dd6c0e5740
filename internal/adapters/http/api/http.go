// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/stillcap/internal/domain/model"
	"github.com/okian/stillcap/pkg/logger"
)

// SessionController is the slice of the session controller the API drives.
type SessionController interface {
	Start(ctx context.Context) error
	Stop() error
	State() model.SessionState
	Stats() model.SessionStats
	Settings() model.Settings
	Patch(fn func(*model.Settings)) error
	LastError() error
	SessionID() string
}

// FrameStore exposes captured frames.
type FrameStore interface {
	List(ctx context.Context) []model.Frame
	Get(ctx context.Context, id string) (model.Frame, error)
}

// Feeds are the websocket endpoints mounted next to the API. Nil handlers
// answer 503.
type Feeds struct {
	Sensors      http.Handler
	Camera       http.Handler
	Observations http.Handler
}

// Server wires HTTP routes for the capture API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	sessionHandler  *SessionHandler
	settingsHandler *SettingsHandler
	capturesHandler *CapturesHandler
	feeds           Feeds
}

// Option applies a configuration option to the Server.
type Option func(*options)

type options struct {
	stats         StatsProvider
	feeds         Feeds
	scorerVersion string
	logger        logger.Logger
}

// WithStatsProvider serves GET /stats from p.
func WithStatsProvider(p StatsProvider) Option {
	return func(o *options) { o.stats = p }
}

// WithFeeds mounts the websocket feeds.
func WithFeeds(f Feeds) Option {
	return func(o *options) { o.feeds = f }
}

// WithScorerVersion reports the scoring formula in the session status.
func WithScorerVersion(v string) Option {
	return func(o *options) { o.scorerVersion = v }
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(session SessionController, frames FrameStore, opts ...Option) *Server {
	o := options{logger: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	s := &Server{
		healthHandler:   NewHealthHandler(),
		sessionHandler:  NewSessionHandler(session, o.scorerVersion, o.logger),
		settingsHandler: NewSettingsHandler(session),
		capturesHandler: NewCapturesHandler(frames),
		feeds:           o.feeds,
	}
	if o.stats != nil {
		s.statsHandler = NewStatsHandler(o.stats)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	if s.statsHandler != nil {
		mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	}

	mux.HandleFunc("GET /session", MetricsMiddleware(s.sessionHandler.HandleStatus, "session"))
	mux.HandleFunc("POST /session/start", MetricsMiddleware(s.sessionHandler.HandleStart, "session_start"))
	mux.HandleFunc("POST /session/stop", MetricsMiddleware(s.sessionHandler.HandleStop, "session_stop"))

	mux.HandleFunc("GET /settings", MetricsMiddleware(s.settingsHandler.HandleGet, "settings"))
	mux.HandleFunc("PUT /settings", MetricsMiddleware(s.settingsHandler.HandlePut, "settings"))

	mux.HandleFunc("GET /captures", MetricsMiddleware(s.capturesHandler.HandleList, "captures"))
	mux.HandleFunc("GET /captures/{id}", MetricsMiddleware(s.capturesHandler.HandleGet, "capture"))

	// Websocket feeds are long-lived; request metrics would only measure
	// connection lifetime.
	mux.Handle("GET /ws/sensors", feed(s.feeds.Sensors))
	mux.Handle("GET /ws/camera", feed(s.feeds.Camera))
	mux.Handle("GET /ws/observations", feed(s.feeds.Observations))
}

func feed(h http.Handler) http.Handler {
	if h != nil {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusServiceUnavailable, "feed_unavailable", ErrNoFeed)
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
