package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockRequester is a mock implementation of permission.Requester.
type MockRequester struct {
	mock.Mock
}

func (m *MockRequester) RequestPermission(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}
