package events

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/technosupport/control-center/internal/data"
)

type findCall struct {
	method      string
	cameraID    string
	eventType   string
	minSeverity int
	tr          data.TimeRange
	page        data.PageRequest
}

type fakeEventStore struct {
	mu      sync.Mutex
	saved   []*data.Event
	calls   []findCall
	saveErr error
	findErr error
	byID    map[uuid.UUID]*data.Event
}

func (f *fakeEventStore) Save(ctx context.Context, e *data.Event) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, e)
	return nil
}

func (f *fakeEventStore) GetByID(ctx context.Context, id uuid.UUID) (*data.Event, error) {
	if e, ok := f.byID[id]; ok {
		return e, nil
	}
	return nil, data.ErrRecordNotFound
}

func (f *fakeEventStore) ListByCamera(ctx context.Context, cameraID string) ([]*data.Event, error) {
	var out []*data.Event
	for _, e := range f.saved {
		if e.CameraID == cameraID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEventStore) record(c findCall) (*data.EventPage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	return data.NewEventPage([]*data.Event{{CameraID: c.cameraID, Type: c.eventType}}, c.page, 1), nil
}

func (f *fakeEventStore) FindByCameraAndType(ctx context.Context, cameraID, eventType string, minSeverity int, tr data.TimeRange, p data.PageRequest) (*data.EventPage, error) {
	return f.record(findCall{"camera+type", cameraID, eventType, minSeverity, tr, p})
}

func (f *fakeEventStore) FindByCamera(ctx context.Context, cameraID string, minSeverity int, tr data.TimeRange, p data.PageRequest) (*data.EventPage, error) {
	return f.record(findCall{"camera", cameraID, "", minSeverity, tr, p})
}

func (f *fakeEventStore) FindByType(ctx context.Context, eventType string, minSeverity int, tr data.TimeRange, p data.PageRequest) (*data.EventPage, error) {
	return f.record(findCall{"type", "", eventType, minSeverity, tr, p})
}

func (f *fakeEventStore) FindBySeverity(ctx context.Context, minSeverity int, tr data.TimeRange, p data.PageRequest) (*data.EventPage, error) {
	return f.record(findCall{"severity", "", "", minSeverity, tr, p})
}

type fakeCameraStore struct {
	cameras  map[string]*data.Camera
	statuses map[string]data.CameraStatus
}

func newFakeCameras(ids ...string) *fakeCameraStore {
	f := &fakeCameraStore{cameras: map[string]*data.Camera{}, statuses: map[string]data.CameraStatus{}}
	for _, id := range ids {
		f.cameras[id] = &data.Camera{ID: id, Name: "Camera " + id, Status: data.CameraOnline}
	}
	return f
}

func (f *fakeCameraStore) GetByID(ctx context.Context, id string) (*data.Camera, error) {
	if c, ok := f.cameras[id]; ok {
		return c, nil
	}
	return nil, data.ErrRecordNotFound
}

func (f *fakeCameraStore) SetStatus(ctx context.Context, id string, status data.CameraStatus) error {
	if _, ok := f.cameras[id]; !ok {
		return data.ErrRecordNotFound
	}
	f.statuses[id] = status
	return nil
}

// fakeTrafficWriter applies the status and the save together or not at all.
type fakeTrafficWriter struct {
	events  *fakeEventStore
	cameras *fakeCameraStore
}

func (f *fakeTrafficWriter) SaveFlagged(ctx context.Context, e *data.Event, status data.CameraStatus) error {
	if _, ok := f.cameras.cameras[e.CameraID]; !ok {
		return data.ErrRecordNotFound
	}
	if err := f.events.Save(ctx, e); err != nil {
		return err
	}
	return f.cameras.SetStatus(ctx, e.CameraID, status)
}

type fakeVideoStore struct {
	known map[uuid.UUID]bool
}

func (f *fakeVideoStore) GetByID(ctx context.Context, id uuid.UUID) (*data.Video, error) {
	if f.known[id] {
		return &data.Video{ID: id}, nil
	}
	return nil, data.ErrRecordNotFound
}

type fakeBroadcaster struct {
	mu   sync.Mutex
	sent []*data.Event
}

func (f *fakeBroadcaster) Broadcast(e *data.Event) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, e)
	return 1
}

var errStoreDown = errors.New("connection refused")
