package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"examsolver/internal/port"
)

// MockTextLayer is a mock implementation of port.TextLayer.
type MockTextLayer struct {
	mock.Mock
}

func (m *MockTextLayer) Extract(ctx context.Context, path string, dpi int) ([]port.PageText, error) {
	args := m.Called(ctx, path, dpi)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]port.PageText), args.Error(1)
}
