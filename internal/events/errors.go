package events

import "errors"

var (
	ErrCameraNotFound = errors.New("camera not found")
	ErrVideoNotFound  = errors.New("video not found")
	ErrEventNotFound  = errors.New("event not found")

	// ErrValidation is wrapped by every request validation failure.
	ErrValidation = errors.New("invalid event request")
)
