package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"examsolver/internal/port"
)

// MockReasoningBackend is a mock implementation of port.ReasoningBackend.
type MockReasoningBackend struct {
	mock.Mock
}

func (m *MockReasoningBackend) Answer(ctx context.Context, req port.ReasoningRequest) (*port.ReasoningResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.ReasoningResponse), args.Error(1)
}
