package stream

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/technosupport/control-center/internal/data"
	"github.com/technosupport/control-center/internal/metrics"
	"go.uber.org/zap"
)

type Config struct {
	BufferSize int
	Location   *time.Location
}

// Hub fans events and heartbeats out to every registered subscriber.
type Hub struct {
	registry *Registry
	buffer   int
	loc      *time.Location
	logger   *zap.Logger
	closed   atomic.Bool

	now func() time.Time
}

func NewHub(cfg Config, logger *zap.Logger) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		registry: NewRegistry(),
		buffer:   cfg.BufferSize,
		loc:      cfg.Location,
		logger:   logger.Named("stream"),
		now:      time.Now,
	}
}

// Subscribe registers an open-ended subscriber and queues the connected
// greeting. If the greeting cannot be queued the subscriber is removed at
// once; the handle is returned either way.
func (h *Hub) Subscribe() *Subscriber {
	sub := newSubscriber(uuid.NewString(), h.buffer, h.onClose)
	h.registry.Add(sub)
	metrics.SetSubscribers(h.registry.Len())

	if h.closed.Load() {
		sub.terminate(ReasonShutdown, nil)
		return sub
	}

	if err := sub.Send(Message{Name: KindConnected, Data: ConnectedGreeting}); err != nil {
		h.logger.Warn("connected greeting failed", zap.String("subscriber", sub.ID()), zap.Error(err))
		sub.terminate(ReasonWriteFailed, err)
		return sub
	}
	metrics.RecordMessage(KindConnected)
	h.logger.Debug("subscriber added", zap.String("subscriber", sub.ID()), zap.Int("subscribers", h.registry.Len()))
	return sub
}

// Broadcast delivers e to every current subscriber. Subscribers that cannot
// take the message are torn down; nothing is retried.
func (h *Hub) Broadcast(e *data.Event) int {
	return h.deliver(Message{Name: KindEvent, Data: e})
}

// Heartbeat sends the current server time to every subscriber. It does
// nothing when the registry is empty.
func (h *Hub) Heartbeat() int {
	if h.registry.Len() == 0 {
		return 0
	}
	stamp := h.now().In(h.loc).Format(HeartbeatLayout)
	return h.deliver(Message{Name: KindHeartbeat, Data: stamp})
}

func (h *Hub) deliver(msg Message) int {
	delivered := 0
	for _, sub := range h.registry.Snapshot() {
		if err := sub.Send(msg); err != nil {
			h.logger.Debug("dropping subscriber",
				zap.String("subscriber", sub.ID()),
				zap.String("kind", msg.Name),
				zap.Error(err),
			)
			sub.terminate(ReasonWriteFailed, err)
			continue
		}
		delivered++
	}
	if delivered > 0 {
		metrics.StreamMessagesTotal.WithLabelValues(msg.Name).Add(float64(delivered))
	}
	return delivered
}

// Count is the number of registered subscribers.
func (h *Hub) Count() int {
	return h.registry.Len()
}

// Close tears down every subscriber. Later subscribers are shut down on arrival.
func (h *Hub) Close() {
	if h.closed.Swap(true) {
		return
	}
	subs := h.registry.Snapshot()
	for _, sub := range subs {
		sub.terminate(ReasonShutdown, nil)
	}
	h.logger.Info("stream hub closed", zap.Int("subscribers", len(subs)))
}

func (h *Hub) onClose(sub *Subscriber, reason Reason, err error) {
	if !h.registry.Remove(sub) {
		return
	}
	metrics.RecordTeardown(string(reason))
	metrics.SetSubscribers(h.registry.Len())

	fields := []zap.Field{zap.String("subscriber", sub.ID()), zap.String("reason", string(reason))}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	h.logger.Debug("subscriber removed", fields...)
}
