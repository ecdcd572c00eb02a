package cameras

import "errors"

var (
	ErrCameraNotFound  = errors.New("camera not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrForbidden       = errors.New("camera belongs to another user")
	ErrProtectedCamera = errors.New("default cameras cannot be deleted")
	ErrInvalidStatus   = errors.New("invalid camera status")
	ErrNameRequired    = errors.New("name is required")
	ErrNameTooLong     = errors.New("name too long")
)
