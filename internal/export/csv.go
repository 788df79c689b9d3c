package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"examsolver/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// columns defines the header row shared by the CSV and XLSX exports.
var columns = []string{
	"Problem ID",
	"Status",
	"Answer",
	"Attempts",
	"Validity",
	"Choice Count",
	"Stem",
	"Figure",
	"Raw Response",
	"Error",
}

// Writer wraps csv.Writer for exporting report results as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteReport writes one row per answer result.
func (w *Writer) WriteReport(report *domain.Report) error {
	for _, row := range rows(report) {
		if err := w.csv.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

// rows converts a report to string rows in problem id order. Problem columns
// stay empty when the report does not carry the problem.
func rows(report *domain.Report) [][]string {
	problems := make(map[int]*domain.Problem, len(report.Problems))
	for i := range report.Problems {
		problems[report.Problems[i].ID] = &report.Problems[i]
	}

	out := make([][]string, 0, len(report.Results))
	for _, res := range report.Results {
		row := make([]string, len(columns))
		row[0] = strconv.Itoa(res.ProblemID)
		row[1] = res.Status.String()
		if res.Label != nil {
			row[2] = *res.Label
		}
		row[3] = strconv.Itoa(res.Attempts)
		row[4] = res.Validity.String()
		if p, ok := problems[res.ProblemID]; ok {
			row[5] = strconv.Itoa(len(p.Choices))
			row[6] = collapse(p.Stem)
			if p.Figure != nil {
				row[7] = p.Figure.Ref
			}
		}
		row[8] = collapse(res.RawResponse)
		row[9] = res.Error
		out = append(out, row)
	}
	return out
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
