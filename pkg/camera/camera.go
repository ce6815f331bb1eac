// pkg/camera/camera.go
package camera

import (
	"context"
	"errors"
)

var (
	// ErrHardwareBusy is returned when the device is already serving another request.
	ErrHardwareBusy = errors.New("camera: hardware busy")
	// ErrUnbound is returned when a request names a handle that is not bound.
	ErrUnbound = errors.New("camera: no camera bound")
)

type DeviceType int

const (
	USBCamera DeviceType = iota
	PiCamera
	VirtualCamera
)

func (t DeviceType) String() string {
	switch t {
	case USBCamera:
		return "usb"
	case PiCamera:
		return "pi"
	case VirtualCamera:
		return "virtual"
	default:
		return "unknown"
	}
}

type Device struct {
	ID          string
	Name        string
	IsAvailable bool
	DeviceType  DeviceType
}

type StreamConfig struct {
	Width     int
	Height    int
	Framerate int
}

// Surface describes the capture surface a camera is bound to.
type Surface struct {
	DeviceID string
	Stream   StreamConfig
}

// Handle identifies one binding between a device and a surface. A handle
// is only valid until it is released or the device is rebound.
type Handle struct {
	DeviceID string
	token    uint64
}

// VideoResult is delivered once per video capture, after it stops.
type VideoResult struct {
	URI string
	Err error
}

// Service is the camera capability consumed by the capture session.
type Service interface {
	RequestPermission(ctx context.Context) (bool, error)

	Bind(surface Surface) (Handle, error)
	Release(h Handle) error

	// CapturePhoto returns a locator for the captured image. It fails with
	// ErrHardwareBusy or ErrUnbound.
	CapturePhoto(ctx context.Context, h Handle) (string, error)

	// StartVideoCapture begins recording. The returned channel yields
	// exactly one result once StopVideoCapture is called, the device stops
	// on its own, or ctx is done.
	StartVideoCapture(ctx context.Context, h Handle) (<-chan VideoResult, error)
	StopVideoCapture(h Handle) error
}

// Scanner is implemented by backends that can enumerate devices.
type Scanner interface {
	ScanDevices() ([]Device, error)
}
