package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/technosupport/control-center/internal/data"
	"github.com/technosupport/control-center/internal/metrics"
	"go.uber.org/zap"
)

type EventStore interface {
	Save(ctx context.Context, e *data.Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*data.Event, error)
	ListByCamera(ctx context.Context, cameraID string) ([]*data.Event, error)
	FindByCameraAndType(ctx context.Context, cameraID, eventType string, minSeverity int, tr data.TimeRange, p data.PageRequest) (*data.EventPage, error)
	FindByCamera(ctx context.Context, cameraID string, minSeverity int, tr data.TimeRange, p data.PageRequest) (*data.EventPage, error)
	FindByType(ctx context.Context, eventType string, minSeverity int, tr data.TimeRange, p data.PageRequest) (*data.EventPage, error)
	FindBySeverity(ctx context.Context, minSeverity int, tr data.TimeRange, p data.PageRequest) (*data.EventPage, error)
}

type CameraStore interface {
	GetByID(ctx context.Context, id string) (*data.Camera, error)
}

// TrafficWriter saves an event and sets its camera's status atomically.
type TrafficWriter interface {
	SaveFlagged(ctx context.Context, e *data.Event, status data.CameraStatus) error
}

type VideoStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*data.Video, error)
}

// Broadcaster receives every committed event.
type Broadcaster interface {
	Broadcast(e *data.Event) int
}

type BoundingBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type CreateEventRequest struct {
	CameraID    string       `json:"camera_id"`
	VideoID     string       `json:"video_id,omitempty"`
	TS          string       `json:"ts,omitempty"`
	Type        string       `json:"type"`
	Severity    int          `json:"severity"`
	Score       *float64     `json:"score,omitempty"`
	BoundingBox *BoundingBox `json:"bounding_box,omitempty"`
}

type TrafficEventRequest struct {
	CameraID     string       `json:"camera_id"`
	TS           string       `json:"ts"`
	Type         string       `json:"type"`
	Severity     int          `json:"severity"`
	Score        *float64     `json:"score,omitempty"`
	BoundingBox  *BoundingBox `json:"bounding_box,omitempty"`
	VehicleCount int          `json:"vehicle_count"`
	Message      string       `json:"message"`
}

// trafficMeta keeps the key names dashboards already read.
type trafficMeta struct {
	VehicleCount int    `json:"vehicleCount"`
	Message      string `json:"message"`
}

// TimestampLayout is the zone-less local form accepted next to RFC3339.
const TimestampLayout = "2006-01-02T15:04:05"

type Service struct {
	events      EventStore
	cameras     CameraStore
	videos      VideoStore
	traffic     TrafficWriter
	broadcaster Broadcaster
	loc         *time.Location
	logger      *zap.Logger

	now func() time.Time
}

func NewService(events EventStore, cameras CameraStore, videos VideoStore, traffic TrafficWriter, b Broadcaster, loc *time.Location, logger *zap.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		events:      events,
		cameras:     cameras,
		videos:      videos,
		traffic:     traffic,
		broadcaster: b,
		loc:         loc,
		logger:      logger.Named("events"),
		now:         time.Now,
	}
}

// ParseTimestamp accepts RFC3339 or a local date-time interpreted in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(TimestampLayout, s, loc)
}

func validate(cameraID, eventType string, severity int, score *float64) error {
	if strings.TrimSpace(cameraID) == "" {
		return fmt.Errorf("%w: camera_id is required", ErrValidation)
	}
	if strings.TrimSpace(eventType) == "" {
		return fmt.Errorf("%w: type is required", ErrValidation)
	}
	if severity < 0 {
		return fmt.Errorf("%w: severity must not be negative", ErrValidation)
	}
	if score != nil && (*score < 0 || *score > 1) {
		return fmt.Errorf("%w: score must be between 0 and 1", ErrValidation)
	}
	return nil
}

func (s *Service) lookupCamera(ctx context.Context, id string) (*data.Camera, error) {
	cam, err := s.cameras.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCameraNotFound, id)
		}
		return nil, err
	}
	return cam, nil
}

// resolveVideo returns nil for an absent or malformed reference. A well-formed
// id that matches no video is an error.
func (s *Service) resolveVideo(ctx context.Context, raw string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		s.logger.Warn("ignoring malformed video id", zap.String("video_id", raw))
		return nil, nil
	}
	if _, err := s.videos.GetByID(ctx, id); err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrVideoNotFound, raw)
		}
		return nil, err
	}
	return &id, nil
}

func bboxJSON(b *BoundingBox) json.RawMessage {
	if b == nil {
		return nil
	}
	raw, _ := json.Marshal(b)
	return raw
}

// CreateEvent persists a detection and pushes it to live subscribers.
func (s *Service) CreateEvent(ctx context.Context, req CreateEventRequest) (*data.Event, error) {
	if err := validate(req.CameraID, req.Type, req.Severity, req.Score); err != nil {
		return nil, err
	}

	ts := s.now()
	if strings.TrimSpace(req.TS) != "" {
		parsed, err := ParseTimestamp(req.TS, s.loc)
		if err != nil {
			return nil, fmt.Errorf("%w: ts %q is not a timestamp", ErrValidation, req.TS)
		}
		ts = parsed
	}

	cam, err := s.lookupCamera(ctx, req.CameraID)
	if err != nil {
		return nil, err
	}
	videoID, err := s.resolveVideo(ctx, req.VideoID)
	if err != nil {
		return nil, err
	}

	e := &data.Event{
		ID:         uuid.New(),
		CameraID:   cam.ID,
		CameraName: cam.Name,
		VideoID:    videoID,
		TS:         ts,
		Type:       req.Type,
		Severity:   req.Severity,
		Score:      req.Score,
		BBoxJSON:   bboxJSON(req.BoundingBox),
	}
	if err := s.events.Save(ctx, e); err != nil {
		return nil, fmt.Errorf("save event: %w", err)
	}

	s.logger.Info("event created",
		zap.String("event_id", e.ID.String()),
		zap.String("camera_id", e.CameraID),
		zap.String("type", e.Type),
		zap.Int("severity", e.Severity),
	)
	metrics.RecordEventCreated("detection")
	s.publish(e)
	return e, nil
}

// CreateTrafficEvent records congestion on a camera and flags the camera
// WARNING in the same transaction.
func (s *Service) CreateTrafficEvent(ctx context.Context, req TrafficEventRequest) (*data.Event, error) {
	if err := validate(req.CameraID, req.Type, req.Severity, req.Score); err != nil {
		return nil, err
	}

	cam, err := s.lookupCamera(ctx, req.CameraID)
	if err != nil {
		return nil, err
	}
	ts, err := ParseTimestamp(req.TS, s.loc)
	if err != nil {
		s.logger.Warn("unparseable traffic timestamp, using now", zap.String("ts", req.TS))
		ts = s.now()
	}

	meta, _ := json.Marshal(trafficMeta{VehicleCount: req.VehicleCount, Message: req.Message})
	e := &data.Event{
		ID:         uuid.New(),
		CameraID:   cam.ID,
		CameraName: cam.Name,
		TS:         ts,
		Type:       req.Type,
		Severity:   req.Severity,
		Score:      req.Score,
		BBoxJSON:   bboxJSON(req.BoundingBox),
		MetaJSON:   meta,
	}
	if err := s.traffic.SaveFlagged(ctx, e, data.CameraWarning); err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCameraNotFound, cam.ID)
		}
		return nil, fmt.Errorf("save traffic event: %w", err)
	}
	s.logger.Info("camera flagged", zap.String("camera_id", cam.ID), zap.String("status", string(data.CameraWarning)))

	s.logger.Info("traffic event created",
		zap.String("event_id", e.ID.String()),
		zap.String("camera_id", e.CameraID),
		zap.Int("vehicle_count", req.VehicleCount),
	)
	metrics.RecordEventCreated("traffic")
	s.publish(e)
	return e, nil
}

func (s *Service) publish(e *data.Event) {
	if s.broadcaster == nil {
		return
	}
	n := s.broadcaster.Broadcast(e)
	s.logger.Debug("event broadcast", zap.String("event_id", e.ID.String()), zap.Int("delivered", n))
}

func (s *Service) ListByCamera(ctx context.Context, cameraID string) ([]*data.Event, error) {
	list, err := s.events.ListByCamera(ctx, cameraID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*data.Event{}
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*data.Event, error) {
	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return e, nil
}
