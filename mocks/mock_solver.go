package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"examsolver/internal/domain"
	"examsolver/internal/pipeline"
)

// MockSolver is a mock implementation of service.Solver.
type MockSolver struct {
	mock.Mock
}

func (m *MockSolver) Run(ctx context.Context, doc pipeline.Document) (*domain.Report, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Report), args.Error(1)
}
