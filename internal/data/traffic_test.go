package data_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/technosupport/control-center/internal/data"
)

func trafficEvent() *data.Event {
	return &data.Event{
		ID:       uuid.New(),
		CameraID: "cam-002",
		TS:       time.Now(),
		Type:     "traffic_congestion",
		Severity: 2,
		MetaJSON: []byte(`{"vehicleCount":30,"message":"jam"}`),
	}
}

func TestTrafficModel_SaveFlagged_Commits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE cameras SET status").
		WithArgs("WARNING", "cam-002").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO events").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectCommit()

	err = data.TrafficModel{DB: db}.SaveFlagged(context.Background(), trafficEvent(), data.CameraWarning)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrafficModel_SaveFlagged_RollsBackStatusOnInsertFailure(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE cameras SET status").
		WithArgs("WARNING", "cam-002").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO events").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := data.TrafficModel{DB: db}.SaveFlagged(context.Background(), trafficEvent(), data.CameraWarning)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrafficModel_SaveFlagged_MissingCamera(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE cameras SET status").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := data.TrafficModel{DB: db}.SaveFlagged(context.Background(), trafficEvent(), data.CameraWarning)
	assert.ErrorIs(t, err, data.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
