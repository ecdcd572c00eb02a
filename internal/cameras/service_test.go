package cameras

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/technosupport/control-center/internal/data"
)

type memRepo struct {
	cameras map[string]*data.Camera
	deleted []string
}

func newMemRepo(cams ...*data.Camera) *memRepo {
	r := &memRepo{cameras: map[string]*data.Camera{}}
	for _, c := range cams {
		r.cameras[c.ID] = c
	}
	return r
}

func (r *memRepo) Create(ctx context.Context, c *data.Camera) error {
	r.cameras[c.ID] = c
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, id string) (*data.Camera, error) {
	c, ok := r.cameras[id]
	if !ok {
		return nil, data.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*data.Camera, error) {
	var out []*data.Camera
	for _, c := range r.cameras {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memRepo) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	for id := range r.cameras {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *memRepo) Update(ctx context.Context, c *data.Camera) error {
	r.cameras[c.ID] = c
	return nil
}

func (r *memRepo) SetStatus(ctx context.Context, id string, status data.CameraStatus) error {
	c, ok := r.cameras[id]
	if !ok {
		return data.ErrRecordNotFound
	}
	c.Status = status
	return nil
}

func (r *memRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.cameras[id]; !ok {
		return data.ErrRecordNotFound
	}
	delete(r.cameras, id)
	r.deleted = append(r.deleted, id)
	return nil
}

type memUsers map[uuid.UUID]bool

func (u memUsers) GetByID(ctx context.Context, id uuid.UUID) (*data.User, error) {
	if !u[id] {
		return nil, data.ErrUserNotFound
	}
	return &data.User{ID: id}, nil
}

func TestNextCameraID(t *testing.T) {
	assert.Equal(t, "cam-001", nextCameraID(nil))
	assert.Equal(t, "cam-008", nextCameraID([]string{"cam-001", "cam-007", "cam-003"}))
	assert.Equal(t, "cam-003", nextCameraID([]string{"cam-002", "lobby", "cam-x1"}))
	assert.Equal(t, "cam-1000", nextCameraID([]string{"cam-999"}))
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("warning")
	require.NoError(t, err)
	assert.Equal(t, data.CameraWarning, st)

	_, err = ParseStatus("broken")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestCreate_AssignsIDAndStreamURL(t *testing.T) {
	owner := uuid.New()
	repo := newMemRepo(&data.Camera{ID: "cam-001"}, &data.Camera{ID: "cam-004"})
	svc := NewService(repo, memUsers{owner: true}, Config{}, nil)

	c, err := svc.Create(context.Background(), CameraRequest{Name: " Gate ", RTSPURL: "rtsp://10.0.0.5/live", Description: "north gate"}, owner)
	require.NoError(t, err)

	assert.Equal(t, "cam-005", c.ID)
	assert.Equal(t, "Gate", c.Name)
	assert.Equal(t, "http://detector:5001/stream/cam-005", c.StreamURL)
	assert.Equal(t, data.CameraOffline, c.Status)
	assert.Equal(t, "north gate", c.MetaJSON)
	assert.Equal(t, owner, c.UserID)
}

func TestCreate_UnknownUser(t *testing.T) {
	svc := NewService(newMemRepo(), memUsers{}, Config{}, nil)
	_, err := svc.Create(context.Background(), CameraRequest{Name: "x"}, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCreate_Validation(t *testing.T) {
	owner := uuid.New()
	svc := NewService(newMemRepo(), memUsers{owner: true}, Config{}, nil)

	_, err := svc.Create(context.Background(), CameraRequest{Name: "  "}, owner)
	assert.ErrorIs(t, err, ErrNameRequired)
}

func TestGet_OwnerCheck(t *testing.T) {
	owner := uuid.New()
	repo := newMemRepo(&data.Camera{ID: "cam-010", UserID: owner})
	svc := NewService(repo, memUsers{}, Config{}, nil)

	_, err := svc.Get(context.Background(), "cam-010", uuid.New())
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Get(context.Background(), "cam-404", owner)
	assert.ErrorIs(t, err, ErrCameraNotFound)

	c, err := svc.Get(context.Background(), "cam-010", owner)
	require.NoError(t, err)
	assert.Equal(t, "cam-010", c.ID)
}

func TestUpdateStatus(t *testing.T) {
	owner := uuid.New()
	repo := newMemRepo(&data.Camera{ID: "cam-003", UserID: owner, Status: data.CameraOffline})
	svc := NewService(repo, memUsers{}, Config{}, nil)

	c, err := svc.UpdateStatus(context.Background(), "cam-003", "Online", owner)
	require.NoError(t, err)
	assert.Equal(t, data.CameraOnline, c.Status)
	assert.Equal(t, data.CameraOnline, repo.cameras["cam-003"].Status)

	_, err = svc.UpdateStatus(context.Background(), "cam-003", "sleeping", owner)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestDelete_ProtectedCameras(t *testing.T) {
	owner := uuid.New()
	repo := newMemRepo(
		&data.Camera{ID: "cam-001", UserID: owner},
		&data.Camera{ID: "cam-002", UserID: owner},
		&data.Camera{ID: "cam-003", UserID: owner},
	)
	svc := NewService(repo, memUsers{}, Config{}, nil)

	assert.ErrorIs(t, svc.Delete(context.Background(), "cam-001", owner), ErrProtectedCamera)
	assert.ErrorIs(t, svc.Delete(context.Background(), "cam-002", owner), ErrProtectedCamera)
	assert.ErrorIs(t, svc.Delete(context.Background(), "cam-003", uuid.New()), ErrForbidden)
	require.NoError(t, svc.Delete(context.Background(), "cam-003", owner))
	assert.Equal(t, []string{"cam-003"}, repo.deleted)
}

func TestUpdate_RewritesFields(t *testing.T) {
	owner := uuid.New()
	repo := newMemRepo(&data.Camera{ID: "cam-003", UserID: owner, Name: "old", StreamURL: "keep"})
	svc := NewService(repo, memUsers{}, Config{}, nil)

	c, err := svc.Update(context.Background(), "cam-003", CameraRequest{Name: "new", Lat: 37.5, Lng: 127.0, YoloEnabled: true}, owner)
	require.NoError(t, err)
	assert.Equal(t, "new", c.Name)
	assert.Equal(t, "keep", c.StreamURL)
	assert.True(t, repo.cameras["cam-003"].YoloEnabled)
}
