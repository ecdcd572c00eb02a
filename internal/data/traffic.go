package data

import (
	"context"
	"database/sql"
)

// TrafficModel writes a traffic event together with the camera status it
// implies. Either both rows change or neither does.
type TrafficModel struct {
	DB *sql.DB
}

func (m TrafficModel) SaveFlagged(ctx context.Context, e *Event, status CameraStatus) error {
	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := (CameraModel{DB: tx}).SetStatus(ctx, e.CameraID, status); err != nil {
		return err
	}
	if err := (EventModel{DB: tx}).Save(ctx, e); err != nil {
		return err
	}
	return tx.Commit()
}
