package capture

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/stillcap/pkg/logger"
	"github.com/okian/stillcap/pkg/metrics"
)

const (
	cameraFeed = "camera"

	// DefaultMaxFrameBytes bounds a single camera message.
	DefaultMaxFrameBytes = 8 << 20
)

// cameraHello is the optional text message a camera client sends to
// announce its encoding.
type cameraHello struct {
	ContentType string `json:"content_type"`
}

// CameraHandler accepts camera clients over websocket. Every binary message
// replaces the latest frame.
type CameraHandler struct {
	frames   *LatestFrame
	upgrader websocket.Upgrader
	maxBytes int64
	logger   logger.Logger
	conns    atomic.Int64
}

// CameraOption applies a configuration option to the CameraHandler.
type CameraOption func(*CameraHandler)

// WithCameraLogger sets a custom logger.
func WithCameraLogger(l logger.Logger) CameraOption {
	return func(h *CameraHandler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMaxFrameBytes bounds the size of one frame.
func WithMaxFrameBytes(n int64) CameraOption {
	return func(h *CameraHandler) {
		if n > 0 {
			h.maxBytes = n
		}
	}
}

// NewCameraHandler creates the camera feed endpoint.
func NewCameraHandler(frames *LatestFrame, opts ...CameraOption) *CameraHandler {
	h := &CameraHandler{
		frames:   frames,
		maxBytes: DefaultMaxFrameBytes,
		logger:   logger.Nop(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 << 10,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Connected returns the number of camera clients.
func (h *CameraHandler) Connected() int { return int(h.conns.Load()) }

// ServeHTTP implements http.Handler.
func (h *CameraHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "camera upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(h.maxBytes)

	metrics.UpdateFeedConnections(cameraFeed, int(h.conns.Add(1)))
	defer func() { metrics.UpdateFeedConnections(cameraFeed, int(h.conns.Add(-1))) }()

	h.logger.Info(r.Context(), "camera connected", logger.String("remote", r.RemoteAddr))
	h.read(r.Context(), conn)
	h.logger.Info(r.Context(), "camera disconnected", logger.String("remote", r.RemoteAddr))
}

func (h *CameraHandler) read(ctx context.Context, conn *websocket.Conn) {
	contentType := DefaultContentType
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug(ctx, "camera read ended", logger.Error(err))
			}
			return
		}
		switch kind {
		case websocket.BinaryMessage:
			h.frames.Store(data, contentType, time.Now().UnixMilli())
			metrics.RecordFrameReceived()
		case websocket.TextMessage:
			var hello cameraHello
			if err := json.Unmarshal(data, &hello); err != nil || hello.ContentType == "" {
				h.logger.Debug(ctx, "ignoring camera text message")
				continue
			}
			contentType = hello.ContentType
		}
	}
}
