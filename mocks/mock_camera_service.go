package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/AlverezYari/camroll/pkg/camera"
)

// MockCameraService is a mock implementation of camera.Service.
type MockCameraService struct {
	mock.Mock
}

func (m *MockCameraService) RequestPermission(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockCameraService) Bind(surface camera.Surface) (camera.Handle, error) {
	args := m.Called(surface)
	return args.Get(0).(camera.Handle), args.Error(1)
}

func (m *MockCameraService) Release(h camera.Handle) error {
	args := m.Called(h)
	return args.Error(0)
}

func (m *MockCameraService) CapturePhoto(ctx context.Context, h camera.Handle) (string, error) {
	args := m.Called(ctx, h)
	return args.String(0), args.Error(1)
}

func (m *MockCameraService) StartVideoCapture(ctx context.Context, h camera.Handle) (<-chan camera.VideoResult, error) {
	args := m.Called(ctx, h)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan camera.VideoResult), args.Error(1)
}

func (m *MockCameraService) StopVideoCapture(h camera.Handle) error {
	args := m.Called(h)
	return args.Error(0)
}
