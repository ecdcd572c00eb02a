package data

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound = errors.New("user not found")
)

// User is the owner of cameras. Accounts are provisioned outside this service.
type User struct {
	ID          uuid.UUID
	Email       string
	DisplayName string
	CreatedAt   time.Time
}

type UserModel struct {
	DB DBTX
}

func (m UserModel) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT id, email, display_name, created_at FROM users WHERE id = $1`

	var u User
	err := m.DB.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Email, &u.DisplayName, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Video is a recorded clip an event may point at.
type Video struct {
	ID        uuid.UUID
	CameraID  string
	Path      string
	StartedAt time.Time
	CreatedAt time.Time
}

type VideoModel struct {
	DB DBTX
}

func (m VideoModel) GetByID(ctx context.Context, id uuid.UUID) (*Video, error) {
	query := `SELECT id, camera_id, path, started_at, created_at FROM videos WHERE id = $1`

	var v Video
	err := m.DB.QueryRowContext(ctx, query, id).Scan(&v.ID, &v.CameraID, &v.Path, &v.StartedAt, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &v, nil
}
