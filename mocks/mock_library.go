package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/AlverezYari/camroll/pkg/medialib"
)

// MockLibrary is a mock implementation of medialib.Library.
type MockLibrary struct {
	mock.Mock
}

func (m *MockLibrary) RequestPermission(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockLibrary) ListAssets(ctx context.Context) ([]medialib.Asset, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]medialib.Asset), args.Error(1)
}

func (m *MockLibrary) Persist(ctx context.Context, locator string, kind medialib.Kind) error {
	args := m.Called(ctx, locator, kind)
	return args.Error(0)
}
