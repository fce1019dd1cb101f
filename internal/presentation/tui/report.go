package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/tickler/pkg/domain"
)

// Report formats a run record as Markdown.
func Report(rec *domain.RunRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Run `%s`\n\n", rec.RunID)
	fmt.Fprintf(&b, "**State:** %s  \n", rec.State)
	fmt.Fprintf(&b, "**Model attempts:** %d  \n", rec.Attempts)
	if !rec.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "**Duration:** %s\n", rec.FinishedAt.Sub(rec.StartedAt).Round(time.Millisecond))
	}
	b.WriteString("\n")

	if rec.Error != "" {
		fmt.Fprintf(&b, "**Error (%s):** %s\n\n", rec.ErrorKind, rec.Error)
	}
	if rec.Summary != "" {
		fmt.Fprintf(&b, "> %s\n\n", strings.ReplaceAll(rec.Summary, "\n", " "))
	}

	if len(rec.Outcomes) == 0 {
		b.WriteString("_No items._\n")
		return b.String()
	}

	b.WriteString("| # | Tool | Subject | Status | Detail |\n")
	b.WriteString("|---|------|---------|--------|--------|\n")
	for i, o := range rec.Outcomes {
		subject, _ := o.Item.Parameters[domain.ParamSubject].(string)
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n",
			i+1, cell(o.Item.ToolName), cell(subject), o.Status, cell(o.Detail))
	}
	return b.String()
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
