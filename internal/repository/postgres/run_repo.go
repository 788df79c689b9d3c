package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"examsolver/internal/domain"
	"examsolver/internal/port"
)

type runRepo struct {
	db *sqlx.DB
}

// NewRunRepo creates a new PostgreSQL-backed RunRepository.
func NewRunRepo(db *sqlx.DB) port.RunRepository {
	return &runRepo{db: db}
}

func (r *runRepo) Create(ctx context.Context, run *domain.Run) error {
	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now
	if run.Status == "" {
		run.Status = domain.RunStatusQueued
	}
	if len(run.Report) == 0 {
		run.Report = []byte("null")
	}

	query := `INSERT INTO runs (
		id, document, input_bucket, input_key, status, attempts, error,
		pdf_type, problem_count, resolved_count, report, report_key,
		started_at, finished_at, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7,
		$8, $9, $10, $11, $12,
		$13, $14, $15, $16
	)`

	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.Document, run.InputBucket, run.InputKey, run.Status, run.Attempts, run.Error,
		run.PDFType, run.ProblemCount, run.ResolvedCount, run.Report, run.ReportKey,
		run.StartedAt, run.FinishedAt, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		return fmt.Errorf("runRepo.Create: %w", err)
	}
	return nil
}

func (r *runRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	var run domain.Run
	err := r.db.GetContext(ctx, &run, "SELECT * FROM runs WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("runRepo.GetByID: %w", err)
	}
	return &run, nil
}

func (r *runRepo) List(ctx context.Context, offset, limit int) ([]domain.Run, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM runs"); err != nil {
		return nil, 0, fmt.Errorf("runRepo.List count: %w", err)
	}

	// The report body is left out of listings.
	var runs []domain.Run
	err := r.db.SelectContext(ctx, &runs,
		`SELECT id, document, input_bucket, input_key, status, attempts, error,
			pdf_type, problem_count, resolved_count, 'null'::jsonb AS report, report_key,
			started_at, finished_at, created_at, updated_at
		 FROM runs ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("runRepo.List: %w", err)
	}
	return runs, total, nil
}

// ClaimQueued atomically moves up to limit queued runs to processing.
// Concurrent workers never claim the same run.
func (r *runRepo) ClaimQueued(ctx context.Context, limit int) ([]domain.Run, error) {
	var runs []domain.Run
	err := r.db.SelectContext(ctx, &runs,
		`UPDATE runs SET status = $1, attempts = attempts + 1, started_at = $2, updated_at = $2
		 WHERE id IN (
			SELECT id FROM runs WHERE status = $3
			ORDER BY created_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING *`,
		domain.RunStatusProcessing, time.Now().UTC(), domain.RunStatusQueued, limit)
	if err != nil {
		return nil, fmt.Errorf("runRepo.ClaimQueued: %w", err)
	}
	return runs, nil
}

func (r *runRepo) Complete(ctx context.Context, run *domain.Run) error {
	now := time.Now().UTC()
	run.Status = domain.RunStatusCompleted
	run.FinishedAt = &now
	run.UpdatedAt = now
	run.Error = ""

	result, err := r.db.ExecContext(ctx,
		`UPDATE runs SET status = $1, error = '', pdf_type = $2, problem_count = $3,
			resolved_count = $4, report = $5, report_key = $6, finished_at = $7, updated_at = $7
		 WHERE id = $8`,
		run.Status, run.PDFType, run.ProblemCount, run.ResolvedCount, run.Report, run.ReportKey, now, run.ID)
	if err != nil {
		return fmt.Errorf("runRepo.Complete: %w", err)
	}
	return expectOne(result, "runRepo.Complete")
}

// Fail records a failed attempt. With requeue set the run goes back to the
// queue for another worker pass.
func (r *runRepo) Fail(ctx context.Context, id uuid.UUID, errMsg string, requeue bool) error {
	now := time.Now().UTC()
	status := domain.RunStatusFailed
	finishedAt := &now
	if requeue {
		status = domain.RunStatusQueued
		finishedAt = nil
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE runs SET status = $1, error = $2, finished_at = $3, updated_at = $4 WHERE id = $5`,
		status, errMsg, finishedAt, now, id)
	if err != nil {
		return fmt.Errorf("runRepo.Fail: %w", err)
	}
	return expectOne(result, "runRepo.Fail")
}

func expectOne(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return domain.ErrRunNotFound
	}
	return nil
}
