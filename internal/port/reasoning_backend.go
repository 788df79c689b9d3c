package port

import (
	"context"

	"examsolver/internal/domain"
)

// ReasoningRequest is one problem presented to a reasoning backend.
type ReasoningRequest struct {
	ProblemID int
	Stem      string
	Choices   []domain.Choice
}

// ReasoningResponse is the backend's free-text reply.
type ReasoningResponse struct {
	Text      string
	ModelUsed string
}

// ReasoningBackend answers multiple-choice problems.
type ReasoningBackend interface {
	Answer(ctx context.Context, req ReasoningRequest) (*ReasoningResponse, error)
}
