package cameras

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/technosupport/control-center/internal/data"
	"go.uber.org/zap"
)

const (
	idPrefix      = "cam-"
	maxNameLength = 120

	DefaultStreamURLTemplate = "http://detector:5001/stream/{id}"
)

var DefaultProtectedIDs = []string{"cam-001", "cam-002"}

type Repository interface {
	Create(ctx context.Context, c *data.Camera) error
	GetByID(ctx context.Context, id string) (*data.Camera, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*data.Camera, error)
	ListIDs(ctx context.Context) ([]string, error)
	Update(ctx context.Context, c *data.Camera) error
	SetStatus(ctx context.Context, id string, status data.CameraStatus) error
	Delete(ctx context.Context, id string) error
}

type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*data.User, error)
}

type Config struct {
	// StreamURLTemplate has "{id}" replaced by the camera id.
	StreamURLTemplate string
	ProtectedIDs      []string
}

// CameraRequest is the writable part of a camera.
type CameraRequest struct {
	Name        string  `json:"name"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	RTSPURL     string  `json:"rtsp_url"`
	YoloEnabled bool    `json:"yolo_enabled"`
	Description string  `json:"description"`
}

func (r CameraRequest) validate() error {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return ErrNameRequired
	}
	if len(name) > maxNameLength {
		return ErrNameTooLong
	}
	return nil
}

type Service struct {
	repo      Repository
	users     UserLookup
	template  string
	protected map[string]bool
	logger    *zap.Logger
}

func NewService(repo Repository, users UserLookup, cfg Config, logger *zap.Logger) *Service {
	if cfg.StreamURLTemplate == "" {
		cfg.StreamURLTemplate = DefaultStreamURLTemplate
	}
	if cfg.ProtectedIDs == nil {
		cfg.ProtectedIDs = DefaultProtectedIDs
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	protected := make(map[string]bool, len(cfg.ProtectedIDs))
	for _, id := range cfg.ProtectedIDs {
		protected[id] = true
	}
	return &Service{
		repo:      repo,
		users:     users,
		template:  cfg.StreamURLTemplate,
		protected: protected,
		logger:    logger.Named("cameras"),
	}
}

// ParseStatus accepts any letter case.
func ParseStatus(raw string) (data.CameraStatus, error) {
	switch st := data.CameraStatus(strings.ToUpper(strings.TrimSpace(raw))); st {
	case data.CameraOnline, data.CameraOffline, data.CameraWarning, data.CameraError:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

// nextCameraID returns cam-NNN one past the highest numeric suffix in ids.
// Ids without a numeric suffix are skipped.
func nextCameraID(ids []string) string {
	highest := 0
	for _, id := range ids {
		if !strings.HasPrefix(id, idPrefix) {
			continue
		}
		n, err := strconv.Atoi(id[len(idPrefix):])
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s%03d", idPrefix, highest+1)
}

func (s *Service) streamURL(id string) string {
	return strings.ReplaceAll(s.template, "{id}", id)
}

func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*data.Camera, error) {
	list, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*data.Camera{}
	}
	s.logger.Debug("cameras listed", zap.String("user_id", userID.String()), zap.Int("count", len(list)))
	return list, nil
}

// Get returns the camera only to its owner.
func (s *Service) Get(ctx context.Context, id string, userID uuid.UUID) (*data.Camera, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return nil, ErrCameraNotFound
		}
		return nil, err
	}
	if c.UserID != userID {
		return nil, ErrForbidden
	}
	return c, nil
}

func (s *Service) Create(ctx context.Context, req CameraRequest, userID uuid.UUID) (*data.Camera, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, data.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	ids, err := s.repo.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list camera ids: %w", err)
	}
	id := nextCameraID(ids)

	c := &data.Camera{
		ID:          id,
		UserID:      userID,
		Name:        strings.TrimSpace(req.Name),
		Lat:         req.Lat,
		Lng:         req.Lng,
		RTSPURL:     req.RTSPURL,
		StreamURL:   s.streamURL(id),
		Status:      data.CameraOffline,
		YoloEnabled: req.YoloEnabled,
		MetaJSON:    req.Description,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("camera created", zap.String("camera_id", c.ID), zap.String("user_id", userID.String()))
	return c, nil
}

func (s *Service) Update(ctx context.Context, id string, req CameraRequest, userID uuid.UUID) (*data.Camera, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	c, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	c.Name = strings.TrimSpace(req.Name)
	c.Lat = req.Lat
	c.Lng = req.Lng
	c.RTSPURL = req.RTSPURL
	c.YoloEnabled = req.YoloEnabled
	c.MetaJSON = req.Description
	if err := s.repo.Update(ctx, c); err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return nil, ErrCameraNotFound
		}
		return nil, err
	}

	s.logger.Info("camera updated", zap.String("camera_id", id))
	return c, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id, rawStatus string, userID uuid.UUID) (*data.Camera, error) {
	status, err := ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}
	c, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetStatus(ctx, id, status); err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return nil, ErrCameraNotFound
		}
		return nil, err
	}

	s.logger.Info("camera status changed",
		zap.String("camera_id", id),
		zap.String("from", string(c.Status)),
		zap.String("to", string(status)),
	)
	c.Status = status
	return c, nil
}

func (s *Service) Delete(ctx context.Context, id string, userID uuid.UUID) error {
	if s.protected[id] {
		return fmt.Errorf("%w: %s", ErrProtectedCamera, id)
	}
	if _, err := s.Get(ctx, id, userID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return ErrCameraNotFound
		}
		return err
	}

	s.logger.Info("camera deleted", zap.String("camera_id", id))
	return nil
}
