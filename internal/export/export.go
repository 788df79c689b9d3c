// Package export serializes run reports for download.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"examsolver/internal/domain"
)

// Write serializes report in the given format.
func Write(w io.Writer, format domain.ExportFormat, report *domain.Report) error {
	switch format {
	case domain.ExportJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(report)
	case domain.ExportCSV:
		if _, err := w.Write(BOM); err != nil {
			return err
		}
		cw := NewWriter(w)
		if err := cw.WriteHeader(); err != nil {
			return err
		}
		if err := cw.WriteReport(report); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	case domain.ExportXLSX:
		return WriteXLSX(w, report)
	}
	return fmt.Errorf("%w: %q", domain.ErrInvalidExportFormat, format)
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a document name for use in Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	name = strings.TrimSuffix(name, ".pdf")
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "report"
	}
	return s
}

// BuildFilename returns a sanitized filename for Content-Disposition header.
// Format: {sanitized_document_name}_{YYYY-MM-DD}.{format}
func BuildFilename(documentName string, format domain.ExportFormat) string {
	date := time.Now().Format("2006-01-02")
	return fmt.Sprintf("%s_%s.%s", SanitizeFilename(documentName), date, format)
}
