package events

import (
	"context"
	"strings"
	"time"

	"github.com/technosupport/control-center/internal/data"
	"github.com/technosupport/control-center/internal/metrics"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	dateLayout = "2006-01-02"
)

// Criteria is the optional filter set of the event search. Empty strings mean
// "no filter"; dates are calendar days (YYYY-MM-DD).
type Criteria struct {
	CameraID    string
	EventType   string
	StartDate   string
	EndDate     string
	MinSeverity int
	Page        int
	Size        int
}

func (c Criteria) normalized() Criteria {
	c.CameraID = strings.TrimSpace(c.CameraID)
	c.EventType = strings.TrimSpace(c.EventType)
	if c.MinSeverity < 0 {
		c.MinSeverity = 0
	}
	if c.Page < 0 {
		c.Page = 0
	}
	switch {
	case c.Size <= 0:
		c.Size = DefaultPageSize
	case c.Size > MaxPageSize:
		c.Size = MaxPageSize
	}
	return c
}

// Query picks one of four store lookups from which of camera and type are
// present. A store failure yields an empty page, never an error.
func (s *Service) Query(ctx context.Context, c Criteria) *data.EventPage {
	c = c.normalized()
	page := data.PageRequest{Page: c.Page, Size: c.Size}
	tr := data.TimeRange{
		From: s.parseDay(c.StartDate, false),
		To:   s.parseDay(c.EndDate, true),
	}

	s.logger.Debug("event query",
		zap.String("camera_id", c.CameraID),
		zap.String("type", c.EventType),
		zap.Int("min_severity", c.MinSeverity),
		zap.Int("page", c.Page),
		zap.Int("size", c.Size),
	)

	var (
		res *data.EventPage
		err error
	)
	switch {
	case c.CameraID != "" && c.EventType != "":
		res, err = s.events.FindByCameraAndType(ctx, c.CameraID, c.EventType, c.MinSeverity, tr, page)
	case c.CameraID != "":
		res, err = s.events.FindByCamera(ctx, c.CameraID, c.MinSeverity, tr, page)
	case c.EventType != "":
		res, err = s.events.FindByType(ctx, c.EventType, c.MinSeverity, tr, page)
	default:
		res, err = s.events.FindBySeverity(ctx, c.MinSeverity, tr, page)
	}

	if err != nil || res == nil {
		s.logger.Error("event query failed", zap.Error(err))
		metrics.EventQueryFailuresTotal.Inc()
		return data.EmptyEventPage(page)
	}
	return res
}

// parseDay maps a calendar day to its first or last instant in the service
// zone. Malformed input is logged and treated as absent.
func (s *Service) parseDay(raw string, endOfDay bool) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	day, err := time.ParseInLocation(dateLayout, raw, s.loc)
	if err != nil {
		s.logger.Warn("ignoring malformed date filter", zap.String("date", raw))
		return nil
	}
	if endOfDay {
		day = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &day
}
