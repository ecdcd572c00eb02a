package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/technosupport/control-center/internal/data"
	"github.com/technosupport/control-center/internal/events"
	"github.com/technosupport/control-center/internal/metrics"
	"go.uber.org/zap"
)

const (
	KindDetection = "detection"
	KindTraffic   = "traffic"
)

const (
	resultCreated   = "created"
	resultDuplicate = "duplicate"
	resultMalformed = "malformed"
	resultFailed    = "failed"
	resultIgnored   = "ignored"
)

// EventCreator is satisfied by *events.Service.
type EventCreator interface {
	CreateEvent(ctx context.Context, req events.CreateEventRequest) (*data.Event, error)
	CreateTrafficEvent(ctx context.Context, req events.TrafficEventRequest) (*data.Event, error)
}

type Config struct {
	SubjectPrefix string
	QueueGroup    string
	Location      *time.Location
	// Timeout bounds the store write for a single message.
	Timeout time.Duration
}

// Consumer turns detector messages published on NATS into stored and
// broadcast events.
type Consumer struct {
	creator EventCreator
	dedup   *Dedup
	cfg     Config
	logger  *zap.Logger

	mu  sync.Mutex
	sub *nats.Subscription
}

func NewConsumer(creator EventCreator, dedup *Dedup, cfg Config, logger *zap.Logger) *Consumer {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "detections"
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{creator: creator, dedup: dedup, cfg: cfg, logger: logger.Named("ingest")}
}

// Subject is the wildcard subscription covering every detection kind.
func (c *Consumer) Subject() string {
	return c.cfg.SubjectPrefix + ".>"
}

// Start subscribes on nc. A queue group spreads messages across replicas.
func (c *Consumer) Start(nc *nats.Conn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub != nil {
		return errors.New("ingest consumer already started")
	}

	var (
		sub *nats.Subscription
		err error
	)
	if c.cfg.QueueGroup != "" {
		sub, err = nc.QueueSubscribe(c.Subject(), c.cfg.QueueGroup, c.Handle)
	} else {
		sub, err = nc.Subscribe(c.Subject(), c.Handle)
	}
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.Subject(), err)
	}
	c.sub = sub
	c.logger.Info("ingest subscribed", zap.String("subject", c.Subject()), zap.String("queue", c.cfg.QueueGroup))
	return nil
}

// Stop drains the subscription so in-flight messages finish.
func (c *Consumer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub == nil {
		return
	}
	if err := c.sub.Drain(); err != nil {
		c.logger.Warn("ingest drain failed", zap.Error(err))
	}
	c.sub = nil
}

// Handle processes one message. It never returns an error: bad input is
// counted and dropped.
func (c *Consumer) Handle(msg *nats.Msg) {
	kind := strings.TrimPrefix(msg.Subject, c.cfg.SubjectPrefix+".")

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()

	switch kind {
	case KindDetection:
		var req events.CreateEventRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			c.malformed(kind, msg, err)
			return
		}
		key, dup := c.claim(req.CameraID, req.Type, req.TS)
		if dup {
			metrics.RecordIngest(kind, resultDuplicate)
			return
		}
		e, err := c.creator.CreateEvent(ctx, req)
		c.finish(kind, key, e, err)

	case KindTraffic:
		var req events.TrafficEventRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			c.malformed(kind, msg, err)
			return
		}
		key, dup := c.claim(req.CameraID, req.Type, req.TS)
		if dup {
			metrics.RecordIngest(kind, resultDuplicate)
			return
		}
		e, err := c.creator.CreateTrafficEvent(ctx, req)
		c.finish(kind, key, e, err)

	default:
		metrics.RecordIngest("unknown", resultIgnored)
		c.logger.Debug("ignoring subject", zap.String("subject", msg.Subject))
	}
}

// claim marks the message seen and returns its dedup key. It only applies
// when the message carries a parseable timestamp; messages without one are
// stamped at creation and cannot collide.
func (c *Consumer) claim(cameraID, eventType, rawTS string) (string, bool) {
	if c.dedup == nil || strings.TrimSpace(rawTS) == "" {
		return "", false
	}
	ts, err := events.ParseTimestamp(rawTS, c.cfg.Location)
	if err != nil {
		return "", false
	}
	key := BuildKey(cameraID, eventType, ts)
	return key, c.dedup.IsDuplicate(key)
}

func (c *Consumer) malformed(kind string, msg *nats.Msg, err error) {
	metrics.RecordIngest(kind, resultMalformed)
	c.logger.Warn("malformed detection payload",
		zap.String("subject", msg.Subject),
		zap.Int("bytes", len(msg.Data)),
		zap.Error(err))
}

func (c *Consumer) finish(kind, key string, e *data.Event, err error) {
	if err != nil {
		if key != "" {
			c.dedup.Forget(key)
		}
		metrics.RecordIngest(kind, resultFailed)
		c.logger.Warn("detection rejected", zap.String("kind", kind), zap.Error(err))
		return
	}
	metrics.RecordIngest(kind, resultCreated)
	c.logger.Debug("detection stored",
		zap.String("kind", kind),
		zap.String("event", e.ID.String()),
		zap.String("camera", e.CameraID))
}
