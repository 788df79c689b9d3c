package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"examsolver/internal/config"
	"examsolver/internal/domain"
	"examsolver/internal/export"
	"examsolver/internal/pipeline"
	"examsolver/internal/port"
	s3storage "examsolver/internal/storage/s3"
)

const pdfContentType = "application/pdf"

// Solver runs the exam pipeline over one local document.
type Solver interface {
	Run(ctx context.Context, doc pipeline.Document) (*domain.Report, error)
}

// SubmitRunInput is the DTO for uploading an exam and queueing a run.
type SubmitRunInput struct {
	File   multipart.File
	Header *multipart.FileHeader
}

// RunService defines the run management contract.
type RunService interface {
	Submit(ctx context.Context, input SubmitRunInput) (*domain.Run, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	List(ctx context.Context, offset, limit int) ([]domain.Run, int, error)
	Export(ctx context.Context, id uuid.UUID, format domain.ExportFormat) ([]byte, string, error)
	ReportURL(ctx context.Context, id uuid.UUID) (string, error)
	ProcessRun(ctx context.Context, run *domain.Run, maxAttempts int)
	Record(ctx context.Context, report *domain.Report, inputBucket, inputKey string) (*domain.Run, error)
}

type runService struct {
	runRepo    port.RunRepository
	storage    port.ObjectStorage
	solver     Solver
	notifier   port.EmailSender
	s3Cfg      *config.S3Config
	maxUpload  int64
	recipients []string
}

// NewRunService creates a new RunService implementation. notifier may be nil.
func NewRunService(
	runRepo port.RunRepository,
	storage port.ObjectStorage,
	solver Solver,
	notifier port.EmailSender,
	cfg *config.Config,
) RunService {
	return &runService{
		runRepo:    runRepo,
		storage:    storage,
		solver:     solver,
		notifier:   notifier,
		s3Cfg:      &cfg.S3,
		maxUpload:  cfg.Server.MaxUploadMB * 1024 * 1024,
		recipients: cfg.Email.Recipients,
	}
}

func (s *runService) Submit(ctx context.Context, input SubmitRunInput) (*domain.Run, error) {
	if !strings.EqualFold(filepath.Ext(input.Header.Filename), ".pdf") {
		return nil, domain.ErrUnsupportedFileType
	}
	if s.maxUpload > 0 && input.Header.Size > s.maxUpload {
		return nil, domain.ErrFileTooLarge
	}

	// Read first 512 bytes for magic-byte content type detection
	buf := make([]byte, 512)
	n, err := input.File.Read(buf)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading file header: %w", err)
	}
	if http.DetectContentType(buf[:n]) != pdfContentType {
		return nil, domain.ErrUnsupportedFileType
	}
	if _, err := input.File.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking file: %w", err)
	}

	run := &domain.Run{
		ID:          uuid.New(),
		Document:    input.Header.Filename,
		InputBucket: s.s3Cfg.Bucket,
		Status:      domain.RunStatusQueued,
	}
	run.InputKey = s3storage.InputKey(s.s3Cfg.InputPrefix, run.ID, input.Header.Filename)

	log.Printf("runService.Submit: uploading %s (%d bytes) for run %s", input.Header.Filename, input.Header.Size, run.ID)

	// The object is stored before the row exists so a worker never claims a
	// run whose input is missing.
	_, err = s.storage.Upload(ctx, port.UploadInput{
		Bucket:      run.InputBucket,
		Key:         run.InputKey,
		Body:        input.File,
		ContentType: pdfContentType,
		Size:        input.Header.Size,
	})
	if err != nil {
		log.Printf("runService.Submit: S3 upload failed for run %s: %v", run.ID, err)
		return nil, domain.ErrUploadFailed
	}

	if err := s.runRepo.Create(ctx, run); err != nil {
		_ = s.storage.Delete(ctx, run.InputBucket, run.InputKey)
		return nil, fmt.Errorf("creating run: %w", err)
	}
	return run, nil
}

func (s *runService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	return s.runRepo.GetByID(ctx, id)
}

func (s *runService) List(ctx context.Context, offset, limit int) ([]domain.Run, int, error) {
	return s.runRepo.List(ctx, offset, limit)
}

func (s *runService) Export(ctx context.Context, id uuid.UUID, format domain.ExportFormat) ([]byte, string, error) {
	run, err := s.runRepo.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if run.Status != domain.RunStatusCompleted {
		return nil, "", domain.ErrRunNotCompleted
	}

	var report domain.Report
	if err := json.Unmarshal(run.Report, &report); err != nil {
		return nil, "", fmt.Errorf("decoding report of run %s: %w", run.ID, err)
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, &report); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), export.BuildFilename(run.Document, format), nil
}

// ReportURL returns a presigned download URL for the archived report.
func (s *runService) ReportURL(ctx context.Context, id uuid.UUID) (string, error) {
	run, err := s.runRepo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if run.Status != domain.RunStatusCompleted || run.ReportKey == "" {
		return "", domain.ErrRunNotCompleted
	}
	return s.storage.GetPresignedURL(ctx, s.s3Cfg.Bucket, run.ReportKey, s.s3Cfg.PresignExpiry)
}

// ProcessRun downloads the run's input, solves it and stores the report.
// Failures are recorded on the run; the run is requeued while attempts
// remain.
func (s *runService) ProcessRun(ctx context.Context, run *domain.Run, maxAttempts int) {
	report, err := s.solve(ctx, run)
	if err != nil {
		requeue := run.Attempts < maxAttempts && ctx.Err() == nil
		log.Printf("runService.ProcessRun: run %s attempt %d/%d failed (requeue=%v): %v",
			run.ID, run.Attempts, maxAttempts, requeue, err)
		if failErr := s.runRepo.Fail(context.Background(), run.ID, err.Error(), requeue); failErr != nil {
			log.Printf("runService.ProcessRun: recording failure of run %s: %v", run.ID, failErr)
		}
		return
	}

	if err := s.complete(ctx, run, report); err != nil {
		log.Printf("runService.ProcessRun: run %s: %v", run.ID, err)
		if failErr := s.runRepo.Fail(context.Background(), run.ID, err.Error(), false); failErr != nil {
			log.Printf("runService.ProcessRun: recording failure of run %s: %v", run.ID, failErr)
		}
		return
	}
	s.notify(ctx, report)
}

func (s *runService) solve(ctx context.Context, run *domain.Run) (*domain.Report, error) {
	data, err := s.storage.Download(ctx, run.InputBucket, run.InputKey)
	if err != nil {
		return nil, fmt.Errorf("downloading input: %w", err)
	}

	tmp, err := os.CreateTemp("", "examsolver-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("closing temp file: %w", err)
	}

	report, err := s.solver.Run(ctx, pipeline.Document{Name: run.Document, Path: tmp.Name()})
	if err != nil {
		return nil, err
	}
	report.RunID = run.ID
	return report, nil
}

// Record stores a report produced outside the queue, such as by the CLI.
func (s *runService) Record(ctx context.Context, report *domain.Report, inputBucket, inputKey string) (*domain.Run, error) {
	run := &domain.Run{
		ID:          report.RunID,
		Document:    report.Document,
		InputBucket: inputBucket,
		InputKey:    inputKey,
		Status:      domain.RunStatusProcessing,
		Attempts:    1,
		StartedAt:   &report.StartedAt,
	}
	if err := s.runRepo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}
	if err := s.complete(ctx, run, report); err != nil {
		return nil, err
	}
	s.notify(ctx, report)
	return run, nil
}

// complete archives the report to object storage and marks the run
// completed. An archive failure is logged and the report is still stored in
// the database.
func (s *runService) complete(ctx context.Context, run *domain.Run, report *domain.Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	counts := report.StatusCounts()
	run.PDFType = report.PDFType
	run.ProblemCount = len(report.Results)
	run.ResolvedCount = counts[domain.StatusResolved]
	run.Report = body

	if s.storage != nil && s.s3Cfg.Bucket != "" {
		key := s3storage.ReportKey(s.s3Cfg.ReportPrefix, run.ID)
		_, err := s.storage.Upload(ctx, port.UploadInput{
			Bucket:      s.s3Cfg.Bucket,
			Key:         key,
			Body:        bytes.NewReader(body),
			ContentType: "application/json",
			Size:        int64(len(body)),
		})
		if err != nil {
			log.Printf("runService.complete: archiving report of run %s: %v", run.ID, err)
		} else {
			run.ReportKey = key
		}
	}

	if err := s.runRepo.Complete(ctx, run); err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			return err
		}
		return fmt.Errorf("completing run: %w", err)
	}
	log.Printf("runService.complete: run %s completed (%d/%d resolved)", run.ID, run.ResolvedCount, run.ProblemCount)
	return nil
}

func (s *runService) notify(ctx context.Context, report *domain.Report) {
	if s.notifier == nil || len(s.recipients) == 0 {
		return
	}
	if err := s.notifier.SendRunSummary(ctx, s.recipients, report); err != nil {
		log.Printf("runService.notify: run %s: %v", report.RunID, err)
	}
}
