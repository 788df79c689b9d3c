// Package email renders run summaries for delivery by an EmailSender.
package email

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"examsolver/internal/domain"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// Summary is a rendered run summary.
type Summary struct {
	Subject string
	Text    string
	HTML    string
}

// BuildSummary renders a report as a Markdown text body and its HTML
// conversion.
func BuildSummary(report *domain.Report) (*Summary, error) {
	counts := report.StatusCounts()

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Exam run %s\n\n", report.RunID)
	fmt.Fprintf(&sb, "- Document: %s\n", mdEscape(report.Document))
	fmt.Fprintf(&sb, "- PDF type: %s\n", report.PDFType)
	fmt.Fprintf(&sb, "- Pages: %d\n", report.PageCount)
	fmt.Fprintf(&sb, "- Problems: %d\n", len(report.Results))
	if !report.FinishedAt.IsZero() && !report.StartedAt.IsZero() {
		fmt.Fprintf(&sb, "- Duration: %s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Second))
	}

	sb.WriteString("\n| Status | Count |\n|---|---|\n")
	for _, s := range domain.AllResolutionStatuses {
		fmt.Fprintf(&sb, "| %s | %d |\n", s, counts[s])
	}

	sb.WriteString("\n## Answers\n\n| Problem | Answer | Status | Attempts |\n|---|---|---|---|\n")
	for _, res := range report.Results {
		label := "-"
		if res.Label != nil {
			label = mdEscape(*res.Label)
		}
		fmt.Fprintf(&sb, "| %d | %s | %s | %d |\n", res.ProblemID, label, res.Status, res.Attempts)
	}

	if len(report.Errors) > 0 {
		sb.WriteString("\n## Document errors\n\n")
		for _, e := range report.Errors {
			if e.Page != nil {
				fmt.Fprintf(&sb, "- page %d, %s: %s\n", *e.Page+1, e.Stage, mdEscape(e.Message))
			} else {
				fmt.Fprintf(&sb, "- %s: %s\n", e.Stage, mdEscape(e.Message))
			}
		}
	}

	text := sb.String()
	var html bytes.Buffer
	if err := markdown.Convert([]byte(text), &html); err != nil {
		return nil, fmt.Errorf("email.BuildSummary: %w", err)
	}

	return &Summary{
		Subject: fmt.Sprintf("[examsolver] %s: %d/%d resolved", report.Document, counts[domain.StatusResolved], len(report.Results)),
		Text:    text,
		HTML:    html.String(),
	}, nil
}

var mdReplacer = strings.NewReplacer("|", `\|`, "*", `\*`, "_", `\_`, "<", "&lt;", ">", "&gt;")

func mdEscape(s string) string {
	return mdReplacer.Replace(s)
}
