package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is an append-only detection record tied to a camera.
// It doubles as the JSON projection pushed to stream subscribers.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	CameraID   string          `json:"camera_id"`
	CameraName string          `json:"camera_name,omitempty"`
	VideoID    *uuid.UUID      `json:"video_id,omitempty"`
	TS         time.Time       `json:"ts"`
	Type       string          `json:"type"`
	Severity   int             `json:"severity"`
	Score      *float64        `json:"score,omitempty"`
	BBoxJSON   json.RawMessage `json:"bbox_json,omitempty"`
	MetaJSON   json.RawMessage `json:"meta_json,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

type EventModel struct {
	DB DBTX
}

const eventSelect = `
		SELECT e.id, e.camera_id, COALESCE(c.name, ''), e.video_id, e.ts, e.type, e.severity,
		       e.score, e.bbox_json, e.meta_json, e.created_at
		FROM events e
		LEFT JOIN cameras c ON c.id = e.camera_id`

func scanEvent(row rowScanner) (*Event, error) {
	var e Event
	var videoID uuid.NullUUID
	var score sql.NullFloat64
	var bbox, meta []byte

	err := row.Scan(
		&e.ID, &e.CameraID, &e.CameraName, &videoID, &e.TS, &e.Type, &e.Severity,
		&score, &bbox, &meta, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if videoID.Valid {
		id := videoID.UUID
		e.VideoID = &id
	}
	if score.Valid {
		s := score.Float64
		e.Score = &s
	}
	if len(bbox) > 0 {
		e.BBoxJSON = json.RawMessage(bbox)
	}
	if len(meta) > 0 {
		e.MetaJSON = json.RawMessage(meta)
	}
	return &e, nil
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

// Save inserts the event and reads back the server-assigned created_at.
func (m EventModel) Save(ctx context.Context, e *Event) error {
	query := `
		INSERT INTO events (id, camera_id, video_id, ts, type, severity, score, bbox_json, meta_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`

	var videoID uuid.NullUUID
	if e.VideoID != nil {
		videoID = uuid.NullUUID{UUID: *e.VideoID, Valid: true}
	}
	var score sql.NullFloat64
	if e.Score != nil {
		score = sql.NullFloat64{Float64: *e.Score, Valid: true}
	}

	return m.DB.QueryRowContext(ctx, query,
		e.ID, e.CameraID, videoID, e.TS, e.Type, e.Severity, score,
		nullJSON(e.BBoxJSON), nullJSON(e.MetaJSON),
	).Scan(&e.CreatedAt)
}

func (m EventModel) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	e, err := scanEvent(m.DB.QueryRowContext(ctx, eventSelect+` WHERE e.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return e, nil
}

// ListByCamera returns every event of a camera, most recent first.
func (m EventModel) ListByCamera(ctx context.Context, cameraID string) ([]*Event, error) {
	rows, err := m.DB.QueryContext(ctx, eventSelect+` WHERE e.camera_id = $1 ORDER BY e.ts DESC`, cameraID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (m EventModel) FindByCameraAndType(ctx context.Context, cameraID, eventType string, minSeverity int, tr TimeRange, p PageRequest) (*EventPage, error) {
	return m.find(ctx, eventFilter{cameraID: cameraID, eventType: eventType, minSeverity: minSeverity, timeRange: tr}, p)
}

func (m EventModel) FindByCamera(ctx context.Context, cameraID string, minSeverity int, tr TimeRange, p PageRequest) (*EventPage, error) {
	return m.find(ctx, eventFilter{cameraID: cameraID, minSeverity: minSeverity, timeRange: tr}, p)
}

func (m EventModel) FindByType(ctx context.Context, eventType string, minSeverity int, tr TimeRange, p PageRequest) (*EventPage, error) {
	return m.find(ctx, eventFilter{eventType: eventType, minSeverity: minSeverity, timeRange: tr}, p)
}

func (m EventModel) FindBySeverity(ctx context.Context, minSeverity int, tr TimeRange, p PageRequest) (*EventPage, error) {
	return m.find(ctx, eventFilter{minSeverity: minSeverity, timeRange: tr}, p)
}

// eventFilter backs the four Find* methods, which are the complete set of
// event searches; camera and type are each either fixed or absent.
type eventFilter struct {
	cameraID    string
	eventType   string
	minSeverity int
	timeRange   TimeRange
}

func (f eventFilter) where() (string, []any) {
	conds := []string{"e.severity >= $1"}
	args := []any{f.minSeverity}

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.cameraID != "" {
		add("e.camera_id = $%d", f.cameraID)
	}
	if f.eventType != "" {
		add("e.type = $%d", f.eventType)
	}
	if f.timeRange.From != nil {
		add("e.ts >= $%d", *f.timeRange.From)
	}
	if f.timeRange.To != nil {
		add("e.ts <= $%d", *f.timeRange.To)
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func (m EventModel) find(ctx context.Context, f eventFilter, p PageRequest) (*EventPage, error) {
	where, args := f.where()

	var total int
	countQuery := `SELECT count(*) FROM events e ` + where
	if err := m.DB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`%s
		%s
		ORDER BY e.ts DESC
		LIMIT $%d OFFSET $%d`, eventSelect, where, len(args)+1, len(args)+2)
	args = append(args, p.Size, p.Offset())

	rows, err := m.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := collectEvents(rows)
	if err != nil {
		return nil, err
	}
	return NewEventPage(items, p, total), nil
}

func collectEvents(rows *sql.Rows) ([]*Event, error) {
	var events []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
