package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/technosupport/control-center/internal/data"
)

type fixture struct {
	svc     *Service
	store   *fakeEventStore
	cameras *fakeCameraStore
	videos  *fakeVideoStore
	bus     *fakeBroadcaster
}

func newFixture() *fixture {
	f := &fixture{
		store:   &fakeEventStore{},
		cameras: newFakeCameras("cam-001", "cam-002"),
		videos:  &fakeVideoStore{known: map[uuid.UUID]bool{}},
		bus:     &fakeBroadcaster{},
	}
	f.svc = NewService(f.store, f.cameras, f.videos, &fakeTrafficWriter{events: f.store, cameras: f.cameras}, f.bus, time.UTC, nil)
	f.svc.now = func() time.Time { return time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

func ptr[T any](v T) *T { return &v }

func TestCreateEvent_PersistsThenBroadcasts(t *testing.T) {
	f := newFixture()

	e, err := f.svc.CreateEvent(context.Background(), CreateEventRequest{
		CameraID:    "cam-001",
		TS:          "2026-04-01T09:30:00",
		Type:        "PERSON",
		Severity:    2,
		Score:       ptr(0.87),
		BoundingBox: &BoundingBox{X: 10, Y: 20, W: 30, H: 40},
	})
	require.NoError(t, err)

	require.Len(t, f.store.saved, 1)
	require.Len(t, f.bus.sent, 1)
	assert.Same(t, f.store.saved[0], f.bus.sent[0])
	assert.Equal(t, "Camera cam-001", e.CameraName)
	assert.True(t, time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC).Equal(e.TS))
	assert.JSONEq(t, `{"x":10,"y":20,"w":30,"h":40}`, string(e.BBoxJSON))
	assert.Nil(t, e.VideoID)
}

func TestCreateEvent_UnknownCamera(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CreateEvent(context.Background(), CreateEventRequest{CameraID: "cam-999", Type: "PERSON"})
	assert.ErrorIs(t, err, ErrCameraNotFound)
	assert.Empty(t, f.store.saved)
	assert.Empty(t, f.bus.sent)
}

func TestCreateEvent_VideoReference(t *testing.T) {
	f := newFixture()
	known := uuid.New()
	f.videos.known[known] = true

	e, err := f.svc.CreateEvent(context.Background(), CreateEventRequest{CameraID: "cam-001", Type: "CAR", VideoID: known.String()})
	require.NoError(t, err)
	require.NotNil(t, e.VideoID)
	assert.Equal(t, known, *e.VideoID)

	e, err = f.svc.CreateEvent(context.Background(), CreateEventRequest{CameraID: "cam-001", Type: "CAR", VideoID: "not-a-uuid"})
	require.NoError(t, err, "malformed video id is ignored")
	assert.Nil(t, e.VideoID)

	_, err = f.svc.CreateEvent(context.Background(), CreateEventRequest{CameraID: "cam-001", Type: "CAR", VideoID: uuid.NewString()})
	assert.ErrorIs(t, err, ErrVideoNotFound)
	assert.Len(t, f.store.saved, 2)
}

func TestCreateEvent_Validation(t *testing.T) {
	f := newFixture()
	cases := map[string]CreateEventRequest{
		"missing camera":    {Type: "PERSON"},
		"missing type":      {CameraID: "cam-001"},
		"negative severity": {CameraID: "cam-001", Type: "PERSON", Severity: -1},
		"score above one":   {CameraID: "cam-001", Type: "PERSON", Score: ptr(1.5)},
		"bad timestamp":     {CameraID: "cam-001", Type: "PERSON", TS: "yesterday"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.CreateEvent(context.Background(), req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Empty(t, f.bus.sent)
}

func TestCreateEvent_SaveFailureDoesNotBroadcast(t *testing.T) {
	f := newFixture()
	f.store.saveErr = errStoreDown

	_, err := f.svc.CreateEvent(context.Background(), CreateEventRequest{CameraID: "cam-001", Type: "PERSON"})
	assert.ErrorIs(t, err, errStoreDown)
	assert.Empty(t, f.bus.sent)
}

func TestCreateTrafficEvent(t *testing.T) {
	f := newFixture()

	e, err := f.svc.CreateTrafficEvent(context.Background(), TrafficEventRequest{
		CameraID:     "cam-002",
		TS:           "2026-04-01T08:15:00Z",
		Type:         "traffic_congestion",
		Severity:     3,
		VehicleCount: 42,
		Message:      "heavy traffic",
	})
	require.NoError(t, err)

	assert.Equal(t, data.CameraWarning, f.cameras.statuses["cam-002"])
	assert.Equal(t, time.Date(2026, 4, 1, 8, 15, 0, 0, time.UTC), e.TS.UTC())

	var meta map[string]any
	require.NoError(t, json.Unmarshal(e.MetaJSON, &meta))
	assert.Equal(t, float64(42), meta["vehicleCount"])
	assert.Equal(t, "heavy traffic", meta["message"])
	assert.Len(t, f.bus.sent, 1)
}

func TestCreateTrafficEvent_BadTimestampFallsBackToNow(t *testing.T) {
	f := newFixture()

	e, err := f.svc.CreateTrafficEvent(context.Background(), TrafficEventRequest{CameraID: "cam-001", TS: "soon", Type: "traffic_congestion"})
	require.NoError(t, err)
	assert.True(t, f.svc.now().Equal(e.TS))
}

func TestCreateTrafficEvent_UnknownCamera(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CreateTrafficEvent(context.Background(), TrafficEventRequest{CameraID: "cam-404", Type: "traffic_congestion"})
	assert.ErrorIs(t, err, ErrCameraNotFound)
	assert.Empty(t, f.cameras.statuses)
}

func TestCreateTrafficEvent_SaveFailureLeavesCameraStatus(t *testing.T) {
	f := newFixture()
	f.store.saveErr = errStoreDown

	_, err := f.svc.CreateTrafficEvent(context.Background(), TrafficEventRequest{
		CameraID:     "cam-001",
		TS:           "2026-04-01T08:15:00Z",
		Type:         "traffic_congestion",
		VehicleCount: 12,
	})
	assert.ErrorIs(t, err, errStoreDown)

	_, flagged := f.cameras.statuses["cam-001"]
	assert.False(t, flagged)
	assert.Equal(t, data.CameraOnline, f.cameras.cameras["cam-001"].Status)
	assert.Empty(t, f.store.saved)
	assert.Empty(t, f.bus.sent)
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestListByCamera_EmptyIsNotNil(t *testing.T) {
	f := newFixture()
	list, err := f.svc.ListByCamera(context.Background(), "cam-001")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestParseTimestamp(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)

	got, err := ParseTimestamp("2026-01-01T09:00:00", seoul)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), got.UTC())

	got, err = ParseTimestamp("2026-01-01T09:00:00+00:00", seoul)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC), got.UTC())

	_, err = ParseTimestamp("01/01/2026", seoul)
	assert.Error(t, err)
}
