package backend

import (
	"fmt"
	"strings"

	"examsolver/internal/port"
)

// SystemPrompt instructs the model to reply with a single label.
const SystemPrompt = `You are solving a multiple-choice exam problem. ` +
	`Read the problem and its choices, pick the single best answer, ` +
	`and reply with ONLY the label of that choice exactly as it is printed (for example "3" or "B"). ` +
	`Do not explain your reasoning.`

// BuildPrompt renders a problem as the user message sent to a backend.
func BuildPrompt(req port.ReasoningRequest) string {
	var sb strings.Builder
	sb.WriteString("Problem:\n")
	sb.WriteString(strings.TrimSpace(req.Stem))
	sb.WriteString("\n\nChoices:\n")
	labels := make([]string, 0, len(req.Choices))
	for _, c := range req.Choices {
		fmt.Fprintf(&sb, "%s) %s\n", c.Label, strings.TrimSpace(c.Text))
		labels = append(labels, c.Label)
	}
	fmt.Fprintf(&sb, "\nAnswer with one of: %s", strings.Join(labels, ", "))
	return sb.String()
}
