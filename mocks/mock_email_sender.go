package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"examsolver/internal/domain"
)

// MockEmailSender is a mock implementation of port.EmailSender.
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendRunSummary(ctx context.Context, to []string, report *domain.Report) error {
	args := m.Called(ctx, to, report)
	return args.Error(0)
}
