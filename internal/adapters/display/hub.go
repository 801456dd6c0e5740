// Package display streams session observations to live viewers over
// websocket.
package display

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/okian/stillcap/internal/domain/model"
	"github.com/okian/stillcap/pkg/logger"
	"github.com/okian/stillcap/pkg/metrics"
)

const (
	defaultSendBuffer = 32
	writeTimeout      = 2 * time.Second
)

// subscriber is one connected viewer.
type subscriber struct {
	id   string
	send chan []byte
	once sync.Once
}

func (s *subscriber) close() { s.once.Do(func() { close(s.send) }) }

// Stats summarises hub traffic.
type Stats struct {
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
	Dropped     uint64 `json:"dropped"`
}

// Hub fans observations out to websocket subscribers. A subscriber that
// falls behind by more than its send buffer is disconnected.
type Hub struct {
	mu         sync.RWMutex
	subs       map[string]*subscriber
	sendBuffer int
	upgrader   websocket.Upgrader
	logger     logger.Logger

	last      atomic.Pointer[model.Observation]
	published atomic.Uint64
	dropped   atomic.Uint64
}

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithSendBuffer sets how many messages may be pending per subscriber.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:       make(map[string]*subscriber),
		sendBuffer: defaultSendBuffer,
		logger:     logger.Nop(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish implements worker.Publisher. It never waits on a subscriber.
func (h *Hub) Publish(_ context.Context, obs model.Observation) error {
	h.last.Store(&obs)
	data, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("encode observation: %w", err)
	}

	h.mu.RLock()
	var slow []*subscriber
	for _, s := range h.subs {
		select {
		case s.send <- data:
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	h.published.Add(1)
	for _, s := range slow {
		h.dropped.Add(1)
		h.remove(s)
		h.logger.Debug(context.Background(), "slow subscriber dropped", logger.String("subscriber", s.id))
	}
	return nil
}

// Last returns the most recently published observation.
func (h *Hub) Last() (model.Observation, bool) {
	if o := h.last.Load(); o != nil {
		return *o, true
	}
	return model.Observation{}, false
}

// Count returns the number of subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// GetStats returns traffic counters.
func (h *Hub) GetStats() Stats {
	return Stats{
		Subscribers: h.Count(),
		Published:   h.published.Load(),
		Dropped:     h.dropped.Load(),
	}
}

// ServeHTTP upgrades a viewer and streams observations until it leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "display upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()

	s := h.add()
	defer h.remove(s)
	h.logger.Info(r.Context(), "viewer connected", logger.String("subscriber", s.id))

	// Reads only detect the viewer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case data, ok := <-s.send:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too slow"),
					time.Now().Add(writeTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-gone:
			h.logger.Info(r.Context(), "viewer disconnected", logger.String("subscriber", s.id))
			return
		}
	}
}

func (h *Hub) add() *subscriber {
	s := &subscriber{id: uuid.NewString(), send: make(chan []byte, h.sendBuffer)}
	h.mu.Lock()
	h.subs[s.id] = s
	n := len(h.subs)
	h.mu.Unlock()
	metrics.UpdateSubscribers(n)
	return s
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[s.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.subs, s.id)
	n := len(h.subs)
	h.mu.Unlock()
	s.close()
	metrics.UpdateSubscribers(n)
}
