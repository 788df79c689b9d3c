package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/textproto"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"examsolver/internal/config"
	"examsolver/internal/domain"
	"examsolver/internal/pipeline"
	"examsolver/internal/port"
	"examsolver/internal/service"
	"examsolver/mocks"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{MaxUploadMB: 1},
		S3: config.S3Config{
			Region:       "us-east-1",
			Bucket:       "test-bucket",
			InputPrefix:  "inputs",
			ReportPrefix: "reports",
		},
		Email: config.EmailConfig{Recipients: []string{"proctor@example.com"}},
	}
}

// createMultipartFile creates a fake multipart file header and content for testing.
func createMultipartFile(filename string, content []byte) (multipart.File, *multipart.FileHeader) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", "application/octet-stream")

	part, _ := writer.CreatePart(h)
	_, _ = part.Write(content)
	writer.Close()

	reader := multipart.NewReader(body, writer.Boundary())
	form, _ := reader.ReadForm(int64(len(content) + 1024))
	file, _ := form.File["file"][0].Open()
	return file, form.File["file"][0]
}

func pdfContent() []byte {
	return []byte("%PDF-1.4 test content that is at least a few bytes long for detection purposes")
}

type runServiceFixture struct {
	repo     *mocks.MockRunRepo
	storage  *mocks.MockObjectStorage
	solver   *mocks.MockSolver
	notifier *mocks.MockEmailSender
	svc      service.RunService
}

func newRunServiceFixture() *runServiceFixture {
	f := &runServiceFixture{
		repo:     new(mocks.MockRunRepo),
		storage:  new(mocks.MockObjectStorage),
		solver:   new(mocks.MockSolver),
		notifier: new(mocks.MockEmailSender),
	}
	f.svc = service.NewRunService(f.repo, f.storage, f.solver, f.notifier, testConfig())
	return f
}

func sampleReport() *domain.Report {
	label := "2"
	return &domain.Report{
		Document:  "midterm.pdf",
		PDFType:   domain.PDFTypeScanned,
		PageCount: 2,
		Results: []domain.AnswerResult{
			{ProblemID: 1, Label: &label, Status: domain.StatusResolved, Attempts: 1, Validity: domain.ValidityWellFormed},
			{ProblemID: 2, Status: domain.StatusSkippedMalformed, Validity: domain.ValidityMalformed},
		},
		StartedAt:  time.Now().Add(-time.Minute),
		FinishedAt: time.Now(),
	}
}

func TestRunService_Submit_Success(t *testing.T) {
	f := newRunServiceFixture()
	file, header := createMultipartFile("midterm.pdf", pdfContent())
	defer file.Close()

	f.storage.On("Upload", mock.Anything, mock.MatchedBy(func(in port.UploadInput) bool {
		return in.Bucket == "test-bucket" &&
			strings.HasPrefix(in.Key, "inputs/") &&
			strings.HasSuffix(in.Key, "/midterm.pdf") &&
			in.ContentType == "application/pdf"
	})).Return(&port.UploadOutput{Location: "s3://test-bucket/x"}, nil)
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Run")).Return(nil)

	run, err := f.svc.Submit(context.Background(), service.SubmitRunInput{File: file, Header: header})

	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusQueued, run.Status)
	assert.Equal(t, "midterm.pdf", run.Document)
	assert.Contains(t, run.InputKey, run.ID.String())
	f.storage.AssertExpectations(t)
	f.repo.AssertExpectations(t)
}

func TestRunService_Submit_RejectsExtension(t *testing.T) {
	f := newRunServiceFixture()
	file, header := createMultipartFile("midterm.docx", pdfContent())
	defer file.Close()

	_, err := f.svc.Submit(context.Background(), service.SubmitRunInput{File: file, Header: header})

	assert.ErrorIs(t, err, domain.ErrUnsupportedFileType)
	f.storage.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
}

func TestRunService_Submit_RejectsSpoofedContent(t *testing.T) {
	f := newRunServiceFixture()
	file, header := createMultipartFile("midterm.pdf", []byte("just some plain text pretending to be a pdf"))
	defer file.Close()

	_, err := f.svc.Submit(context.Background(), service.SubmitRunInput{File: file, Header: header})

	assert.ErrorIs(t, err, domain.ErrUnsupportedFileType)
}

func TestRunService_Submit_TooLarge(t *testing.T) {
	f := newRunServiceFixture()
	content := append(pdfContent(), bytes.Repeat([]byte{' '}, 1024*1024)...)
	file, header := createMultipartFile("midterm.pdf", content)
	defer file.Close()

	_, err := f.svc.Submit(context.Background(), service.SubmitRunInput{File: file, Header: header})

	assert.ErrorIs(t, err, domain.ErrFileTooLarge)
}

func TestRunService_Submit_UploadFails(t *testing.T) {
	f := newRunServiceFixture()
	file, header := createMultipartFile("midterm.pdf", pdfContent())
	defer file.Close()

	f.storage.On("Upload", mock.Anything, mock.Anything).Return(nil, errors.New("s3 down"))

	_, err := f.svc.Submit(context.Background(), service.SubmitRunInput{File: file, Header: header})

	assert.ErrorIs(t, err, domain.ErrUploadFailed)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRunService_Submit_CreateFailsRemovesObject(t *testing.T) {
	f := newRunServiceFixture()
	file, header := createMultipartFile("midterm.pdf", pdfContent())
	defer file.Close()

	f.storage.On("Upload", mock.Anything, mock.Anything).Return(&port.UploadOutput{}, nil)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))
	f.storage.On("Delete", mock.Anything, "test-bucket", mock.AnythingOfType("string")).Return(nil)

	_, err := f.svc.Submit(context.Background(), service.SubmitRunInput{File: file, Header: header})

	assert.Error(t, err)
	f.storage.AssertExpectations(t)
}

func TestRunService_Export_NotCompleted(t *testing.T) {
	f := newRunServiceFixture()
	id := uuid.New()
	f.repo.On("GetByID", mock.Anything, id).Return(&domain.Run{ID: id, Status: domain.RunStatusProcessing}, nil)

	_, _, err := f.svc.Export(context.Background(), id, domain.ExportCSV)

	assert.ErrorIs(t, err, domain.ErrRunNotCompleted)
}

func TestRunService_Export_CSV(t *testing.T) {
	f := newRunServiceFixture()
	id := uuid.New()
	body, err := json.Marshal(sampleReport())
	require.NoError(t, err)
	f.repo.On("GetByID", mock.Anything, id).Return(&domain.Run{
		ID:       id,
		Document: "midterm.pdf",
		Status:   domain.RunStatusCompleted,
		Report:   body,
	}, nil)

	data, filename, err := f.svc.Export(context.Background(), id, domain.ExportCSV)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filename, "midterm_"))
	assert.True(t, strings.HasSuffix(filename, ".csv"))
	assert.Contains(t, string(data), "resolved")
}

func TestRunService_Export_NotFound(t *testing.T) {
	f := newRunServiceFixture()
	id := uuid.New()
	f.repo.On("GetByID", mock.Anything, id).Return(nil, domain.ErrRunNotFound)

	_, _, err := f.svc.Export(context.Background(), id, domain.ExportJSON)

	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestRunService_ProcessRun_Success(t *testing.T) {
	f := newRunServiceFixture()
	run := &domain.Run{
		ID:          uuid.New(),
		Document:    "midterm.pdf",
		InputBucket: "test-bucket",
		InputKey:    "inputs/x/midterm.pdf",
		Status:      domain.RunStatusProcessing,
		Attempts:    1,
	}

	f.storage.On("Download", mock.Anything, "test-bucket", "inputs/x/midterm.pdf").Return(pdfContent(), nil)
	f.solver.On("Run", mock.Anything, mock.MatchedBy(func(doc pipeline.Document) bool {
		data, err := os.ReadFile(doc.Path)
		return err == nil && bytes.Equal(data, pdfContent()) && doc.Name == "midterm.pdf"
	})).Return(sampleReport(), nil)
	f.storage.On("Upload", mock.Anything, mock.MatchedBy(func(in port.UploadInput) bool {
		return in.Key == "reports/"+run.ID.String()+".json"
	})).Return(&port.UploadOutput{}, nil)
	f.repo.On("Complete", mock.Anything, mock.MatchedBy(func(r *domain.Run) bool {
		var report domain.Report
		_ = json.Unmarshal(r.Report, &report)
		return r.ProblemCount == 2 && r.ResolvedCount == 1 &&
			r.PDFType == domain.PDFTypeScanned && report.RunID == run.ID &&
			r.ReportKey != ""
	})).Return(nil)
	f.notifier.On("SendRunSummary", mock.Anything, []string{"proctor@example.com"}, mock.AnythingOfType("*domain.Report")).Return(nil)

	f.svc.ProcessRun(context.Background(), run, 3)

	f.repo.AssertExpectations(t)
	f.storage.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
	f.repo.AssertNotCalled(t, "Fail", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunService_ProcessRun_RequeuesWhileAttemptsRemain(t *testing.T) {
	f := newRunServiceFixture()
	run := &domain.Run{ID: uuid.New(), InputBucket: "test-bucket", InputKey: "k", Attempts: 1}

	f.storage.On("Download", mock.Anything, "test-bucket", "k").Return(nil, errors.New("timeout"))
	f.repo.On("Fail", mock.Anything, run.ID, mock.AnythingOfType("string"), true).Return(nil)

	f.svc.ProcessRun(context.Background(), run, 3)

	f.repo.AssertExpectations(t)
	f.solver.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestRunService_ProcessRun_FailsOnLastAttempt(t *testing.T) {
	f := newRunServiceFixture()
	run := &domain.Run{ID: uuid.New(), InputBucket: "test-bucket", InputKey: "k", Attempts: 3}

	f.storage.On("Download", mock.Anything, "test-bucket", "k").Return(pdfContent(), nil)
	f.solver.On("Run", mock.Anything, mock.Anything).Return(nil, domain.ErrAdapterInit)
	f.repo.On("Fail", mock.Anything, run.ID, mock.AnythingOfType("string"), false).Return(nil)

	f.svc.ProcessRun(context.Background(), run, 3)

	f.repo.AssertExpectations(t)
	f.notifier.AssertNotCalled(t, "SendRunSummary", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunService_ProcessRun_NotifyFailureIsLogged(t *testing.T) {
	f := newRunServiceFixture()
	run := &domain.Run{ID: uuid.New(), InputBucket: "test-bucket", InputKey: "k", Attempts: 1}

	f.storage.On("Download", mock.Anything, "test-bucket", "k").Return(pdfContent(), nil)
	f.solver.On("Run", mock.Anything, mock.Anything).Return(sampleReport(), nil)
	f.storage.On("Upload", mock.Anything, mock.Anything).Return(&port.UploadOutput{}, nil)
	f.repo.On("Complete", mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("SendRunSummary", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("ses down"))

	f.svc.ProcessRun(context.Background(), run, 3)

	f.repo.AssertNotCalled(t, "Fail", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunService_Record(t *testing.T) {
	f := newRunServiceFixture()
	report := sampleReport()
	report.RunID = uuid.New()

	f.repo.On("Create", mock.Anything, mock.MatchedBy(func(r *domain.Run) bool {
		return r.ID == report.RunID && r.InputKey == "local.pdf"
	})).Return(nil)
	f.storage.On("Upload", mock.Anything, mock.Anything).Return(&port.UploadOutput{}, nil)
	f.repo.On("Complete", mock.Anything, mock.AnythingOfType("*domain.Run")).Return(nil)
	f.notifier.On("SendRunSummary", mock.Anything, mock.Anything, report).Return(nil)

	run, err := f.svc.Record(context.Background(), report, "", "local.pdf")

	require.NoError(t, err)
	assert.Equal(t, 2, run.ProblemCount)
	f.repo.AssertExpectations(t)
}

func TestRunService_ReportURL(t *testing.T) {
	f := newRunServiceFixture()
	id := uuid.New()
	f.repo.On("GetByID", mock.Anything, id).Return(&domain.Run{
		ID:        id,
		Status:    domain.RunStatusCompleted,
		ReportKey: "reports/x.json",
	}, nil)
	f.storage.On("GetPresignedURL", mock.Anything, "test-bucket", "reports/x.json", int64(0)).
		Return("https://signed", nil)

	url, err := f.svc.ReportURL(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, "https://signed", url)
}

func TestRunService_ReportURL_NotArchived(t *testing.T) {
	f := newRunServiceFixture()
	id := uuid.New()
	f.repo.On("GetByID", mock.Anything, id).Return(&domain.Run{ID: id, Status: domain.RunStatusCompleted}, nil)

	_, err := f.svc.ReportURL(context.Background(), id)

	assert.ErrorIs(t, err, domain.ErrRunNotCompleted)
}
