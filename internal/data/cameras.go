package data

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type CameraStatus string

const (
	CameraOnline  CameraStatus = "ONLINE"
	CameraOffline CameraStatus = "OFFLINE"
	CameraWarning CameraStatus = "WARNING"
	CameraError   CameraStatus = "ERROR"
)

// Camera represents a monitored video source owned by one user
type Camera struct {
	ID          string       `json:"id"`
	UserID      uuid.UUID    `json:"user_id"`
	Name        string       `json:"name"`
	Lat         float64      `json:"lat"`
	Lng         float64      `json:"lng"`
	RTSPURL     string       `json:"rtsp_url"`
	StreamURL   string       `json:"stream_url"`
	Status      CameraStatus `json:"status"`
	YoloEnabled bool         `json:"yolo_enabled"`
	MetaJSON    string       `json:"meta_json,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type CameraModel struct {
	DB DBTX
}

const cameraColumns = `id, user_id, name, lat, lng, rtsp_url, stream_url, status, yolo_enabled, meta_json, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCamera(row rowScanner) (*Camera, error) {
	var c Camera
	var status string
	var meta sql.NullString
	err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.Lat, &c.Lng, &c.RTSPURL, &c.StreamURL,
		&status, &c.YoloEnabled, &meta, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = CameraStatus(status)
	if meta.Valid {
		c.MetaJSON = meta.String
	}
	return &c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Create inserts a new camera. ID is assigned by the caller.
func (m CameraModel) Create(ctx context.Context, c *Camera) error {
	query := `
		INSERT INTO cameras (id, user_id, name, lat, lng, rtsp_url, stream_url, status, yolo_enabled, meta_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	return m.DB.QueryRowContext(ctx, query,
		c.ID, c.UserID, c.Name, c.Lat, c.Lng, c.RTSPURL, c.StreamURL,
		string(c.Status), c.YoloEnabled, nullString(c.MetaJSON),
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (m CameraModel) GetByID(ctx context.Context, id string) (*Camera, error) {
	query := `SELECT ` + cameraColumns + ` FROM cameras WHERE id = $1`

	c, err := scanCamera(m.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return c, nil
}

// ListByUser returns the cameras owned by a user, oldest id first.
func (m CameraModel) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Camera, error) {
	query := `SELECT ` + cameraColumns + ` FROM cameras WHERE user_id = $1 ORDER BY id`

	rows, err := m.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cameras []*Camera
	for rows.Next() {
		c, err := scanCamera(rows)
		if err != nil {
			return nil, err
		}
		cameras = append(cameras, c)
	}
	return cameras, rows.Err()
}

// ListIDs returns every camera id, used for id sequencing.
func (m CameraModel) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := m.DB.QueryRowContext(ctx, `SELECT COALESCE(array_agg(id), '{}') FROM cameras`).Scan(pq.Array(&ids))
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (m CameraModel) Update(ctx context.Context, c *Camera) error {
	query := `
		UPDATE cameras
		SET name = $1, lat = $2, lng = $3, rtsp_url = $4, yolo_enabled = $5, meta_json = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING updated_at`

	err := m.DB.QueryRowContext(ctx, query,
		c.Name, c.Lat, c.Lng, c.RTSPURL, c.YoloEnabled, nullString(c.MetaJSON), c.ID,
	).Scan(&c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRecordNotFound
	}
	return err
}

func (m CameraModel) SetStatus(ctx context.Context, id string, status CameraStatus) error {
	query := `UPDATE cameras SET status = $1, updated_at = NOW() WHERE id = $2`
	res, err := m.DB.ExecContext(ctx, query, string(status), id)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// Delete removes the camera; its events cascade in the schema.
func (m CameraModel) Delete(ctx context.Context, id string) error {
	res, err := m.DB.ExecContext(ctx, `DELETE FROM cameras WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrRecordNotFound
	}
	return nil
}
