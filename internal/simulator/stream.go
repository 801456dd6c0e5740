package simulator

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/stillcap/pkg/logger"
)

// counters are updated by the streaming goroutines.
type counters struct {
	samples atomic.Int64
	still   atomic.Int64
	shake   atomic.Int64
	frames  atomic.Int64
}

// streamSamples writes one sample per tick until ctx ends.
func streamSamples(ctx context.Context, conn *websocket.Conn, gen *Generator, rate int, n *counters) error {
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			data, phase, err := gen.Payload(now.Sub(start), now.UnixMilli())
			if err != nil {
				return err
			}
			_ = conn.SetWriteDeadline(now.Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return fmt.Errorf("send sample: %w", err)
			}
			n.samples.Add(1)
			if phase == Shake {
				n.shake.Add(1)
			} else {
				n.still.Add(1)
			}
		}
	}
}

// streamFrames announces the content type and then writes a small JPEG-framed
// payload per tick until ctx ends.
func streamFrames(ctx context.Context, conn *websocket.Conn, rate int, n *counters) error {
	if rate <= 0 {
		rate = DefaultFrameRate
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"content_type":"image/jpeg"}`)); err != nil {
		return fmt.Errorf("announce frames: %w", err)
	}

	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()
	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			seq++
			_ = conn.SetWriteDeadline(now.Add(writeTimeout))
			if err := conn.WriteMessage(websocket.BinaryMessage, fakeJPEG(seq)); err != nil {
				return fmt.Errorf("send frame %d: %w", seq, err)
			}
			n.frames.Add(1)
		}
	}
}

// fakeJPEG returns SOI, an 8-byte sequence number and EOI.
func fakeJPEG(seq uint64) []byte {
	b := make([]byte, 0, 12)
	b = append(b, 0xFF, 0xD8)
	b = binary.BigEndian.AppendUint64(b, seq)
	return append(b, 0xFF, 0xD9)
}

// closeConn sends a close frame and closes the connection.
func closeConn(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	if err := conn.Close(); err != nil {
		logger.Get().Debug(context.Background(), "websocket close", logger.Error(err))
	}
}
