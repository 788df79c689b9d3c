package mocks

import (
	"context"
	"image"

	"github.com/stretchr/testify/mock"

	"examsolver/internal/port"
)

// MockRasterOpener is a mock implementation of port.RasterOpener.
type MockRasterOpener struct {
	mock.Mock
}

func (m *MockRasterOpener) Open(ctx context.Context, path string) (port.Rasterizer, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(port.Rasterizer), args.Error(1)
}

// MockRasterizer is a mock implementation of port.Rasterizer.
type MockRasterizer struct {
	mock.Mock
}

func (m *MockRasterizer) PageCount() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockRasterizer) Render(ctx context.Context, pageIndex, dpi int) (image.Image, error) {
	args := m.Called(ctx, pageIndex, dpi)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(image.Image), args.Error(1)
}

func (m *MockRasterizer) Close() error {
	args := m.Called()
	return args.Error(0)
}
