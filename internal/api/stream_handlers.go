package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/technosupport/control-center/internal/stream"
	"go.uber.org/zap"
)

const (
	wsMaxMessageSize = 512
	wsCloseWait      = time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Stream subscribers are not authenticated; origin checks are left to CORS.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamHandler exposes the event hub over SSE and WebSocket. Each
// connection's handler goroutine is the only writer for that connection.
type StreamHandler struct {
	hub          *stream.Hub
	writeTimeout time.Duration
	logger       *zap.Logger
}

func NewStreamHandler(hub *stream.Hub, writeTimeout time.Duration, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{hub: hub, writeTimeout: writeTimeout, logger: logger.Named("stream_http")}
}

// ssePayload renders strings raw and everything else as JSON.
func ssePayload(data any) (string, error) {
	if s, ok := data.(string); ok {
		return s, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func writeSSE(w io.Writer, m stream.Message) error {
	payload, err := ssePayload(m.Data)
	if err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(m.Name)
	b.WriteByte('\n')
	for _, line := range strings.Split(payload, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	_, err = io.WriteString(w, b.String())
	return err
}

// GET /api/events/stream
func (h *StreamHandler) SSE(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	sub := h.hub.Subscribe()
	if sub.Closed() {
		respondError(w, http.StatusServiceUnavailable, "stream unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	h.logger.Debug("sse subscriber connected", zap.String("subscriber", sub.ID()), zap.String("remote", r.RemoteAddr))

	sub.Pump(r.Context(), func(m stream.Message) error {
		if h.writeTimeout > 0 {
			if err := rc.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
				return err
			}
		}
		if err := writeSSE(w, m); err != nil {
			return err
		}
		return rc.Flush()
	})
	_ = rc.SetWriteDeadline(time.Time{})

	h.logger.Debug("sse subscriber finished",
		zap.String("subscriber", sub.ID()),
		zap.String("reason", string(sub.Reason())),
	)
}

// GET /api/events/ws
func (h *StreamHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := h.hub.Subscribe()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Inbound frames are discarded; a read error means the client is gone.
	go func() {
		defer cancel()
		conn.SetReadLimit(wsMaxMessageSize)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	sub.Pump(ctx, func(m stream.Message) error {
		if h.writeTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		}
		return conn.WriteJSON(m)
	})

	if sub.Reason() == stream.ReasonShutdown {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsCloseWait))
	}

	h.logger.Debug("websocket subscriber finished",
		zap.String("subscriber", sub.ID()),
		zap.String("reason", string(sub.Reason())),
	)
}
