package noop

import (
	"context"
	"log"
	"strings"

	"examsolver/internal/domain"
	"examsolver/internal/email"
	"examsolver/internal/port"
)

type noopSender struct{}

// NewNoopSender creates a no-op EmailSender that logs run summaries to stdout.
func NewNoopSender() port.EmailSender {
	return &noopSender{}
}

func (s *noopSender) SendRunSummary(_ context.Context, to []string, report *domain.Report) error {
	summary, err := email.BuildSummary(report)
	if err != nil {
		return err
	}
	log.Printf("[NOOP EMAIL] %s to %s\n%s", summary.Subject, strings.Join(to, ", "), summary.Text)
	return nil
}
