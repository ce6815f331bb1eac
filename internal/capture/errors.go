package capture

import "errors"

var (
	// ErrPermissionDenied means the camera capability is not granted.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrHardwareUnavailable means the camera is busy, absent or failed.
	ErrHardwareUnavailable = errors.New("camera unavailable")
	// ErrPersistenceFailure means a capture could not be saved to the library.
	ErrPersistenceFailure = errors.New("failed to save to library")
)
