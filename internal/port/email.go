package port

import (
	"context"

	"examsolver/internal/domain"
)

// EmailSender defines the contract for delivering run summaries.
type EmailSender interface {
	SendRunSummary(ctx context.Context, to []string, report *domain.Report) error
}
