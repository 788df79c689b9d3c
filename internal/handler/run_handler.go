package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"examsolver/internal/domain"
	"examsolver/internal/service"
)

// RunHandler handles exam run endpoints.
type RunHandler struct {
	runService service.RunService
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(runService service.RunService) *RunHandler {
	return &RunHandler{runService: runService}
}

// Submit handles POST /api/v1/runs
// Accepts a multipart form with a "file" field holding the exam PDF and
// queues it for solving.
func (h *RunHandler) Submit(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "file field is required")
		return
	}
	defer file.Close()

	run, err := h.runService.Submit(c.Request.Context(), service.SubmitRunInput{
		File:   file,
		Header: header,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, run)
}

// GetByID handles GET /api/v1/runs/:id
func (h *RunHandler) GetByID(c *gin.Context) {
	runID, ok := parseRunID(c)
	if !ok {
		return
	}

	run, err := h.runService.GetByID(c.Request.Context(), runID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, run)
}

// List handles GET /api/v1/runs
func (h *RunHandler) List(c *gin.Context) {
	offset, limit := parsePagination(c)

	runs, total, err := h.runService.List(c.Request.Context(), offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, runs, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// Export handles GET /api/v1/runs/:id/export?format=json|csv|xlsx
func (h *RunHandler) Export(c *gin.Context) {
	runID, ok := parseRunID(c)
	if !ok {
		return
	}

	format, err := domain.ParseExportFormat(c.DefaultQuery("format", string(domain.ExportJSON)))
	if err != nil {
		HandleError(c, err)
		return
	}

	data, filename, err := h.runService.Export(c.Request.Context(), runID, format)
	if err != nil {
		HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, domain.ExportContentTypes[format], data)
}

// ReportURL handles GET /api/v1/runs/:id/report-url
func (h *RunHandler) ReportURL(c *gin.Context) {
	runID, ok := parseRunID(c)
	if !ok {
		return
	}

	url, err := h.runService.ReportURL(c.Request.Context(), runID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, gin.H{"url": url})
}

func parseRunID(c *gin.Context) (uuid.UUID, bool) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid run ID")
		return uuid.Nil, false
	}
	return runID, true
}
