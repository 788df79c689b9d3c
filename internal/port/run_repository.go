package port

import (
	"context"

	"github.com/google/uuid"

	"examsolver/internal/domain"
)

// RunRepository defines the contract for run persistence.
type RunRepository interface {
	Create(ctx context.Context, run *domain.Run) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	List(ctx context.Context, offset, limit int) ([]domain.Run, int, error)
	// ClaimQueued atomically moves up to limit queued runs to processing.
	ClaimQueued(ctx context.Context, limit int) ([]domain.Run, error)
	Complete(ctx context.Context, run *domain.Run) error
	Fail(ctx context.Context, id uuid.UUID, errMsg string, requeue bool) error
}
