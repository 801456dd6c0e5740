package sensor

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/stillcap/pkg/logger"
	"github.com/okian/stillcap/pkg/metrics"
)

const (
	websocketFeed = "websocket"

	maxSampleBytes = 4 << 10
)

// Handler accepts sensor clients over websocket. Each text message is one
// wire sample.
type Handler struct {
	ingest   *Ingestor
	upgrader websocket.Upgrader
	logger   logger.Logger
	idle     time.Duration

	conns   atomic.Int64
	granted atomic.Int64
}

// HandlerOption applies a configuration option to the Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets a custom logger.
func WithHandlerLogger(l logger.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithIdleTimeout closes clients that stay silent longer than d.
func WithIdleTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.idle = d
		}
	}
}

// NewHandler creates the sensor feed endpoint.
func NewHandler(ingest *Ingestor, opts ...HandlerOption) *Handler {
	h := &Handler{
		ingest: ingest,
		logger: logger.Nop(),
		idle:   30 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  maxSampleBytes,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Connected returns the number of sensor clients.
func (h *Handler) Connected() int { return int(h.conns.Load()) }

// Granted reports whether a connected client has delivered a valid sample,
// which a browser only does after motion permission was granted.
func (h *Handler) Granted() bool { return h.granted.Load() > 0 }

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "sensor upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxSampleBytes)

	metrics.UpdateFeedConnections(websocketFeed, int(h.conns.Add(1)))
	defer func() { metrics.UpdateFeedConnections(websocketFeed, int(h.conns.Add(-1))) }()

	h.logger.Info(r.Context(), "sensor connected", logger.String("remote", r.RemoteAddr))
	if h.read(r.Context(), conn) {
		h.granted.Add(-1)
	}
	h.logger.Info(r.Context(), "sensor disconnected", logger.String("remote", r.RemoteAddr))
}

// read consumes messages until the client goes away. It returns whether the
// client was counted as granted.
func (h *Handler) read(ctx context.Context, conn *websocket.Conn) bool {
	granted := false
	for {
		_ = conn.SetReadDeadline(time.Now().Add(h.idle))
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug(ctx, "sensor read ended", logger.Error(err))
			}
			return granted
		}
		if kind != websocket.TextMessage {
			continue
		}
		err = h.ingest.Ingest(ctx, websocketFeed, data)
		switch {
		case err == nil:
			if !granted {
				granted = true
				h.granted.Add(1)
			}
		case errors.Is(err, ErrDuplicateSample):
		default:
			h.logger.Debug(ctx, "sensor sample rejected", logger.Error(err))
		}
	}
}
