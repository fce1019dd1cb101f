package tui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/tickler/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("completed", func(t *testing.T) {
		md := Report(&domain.RunRecord{
			RunID:   "run-1",
			State:   domain.StateCompleted,
			Summary: "Two appointments.",
			Outcomes: []domain.ItemOutcome{
				{
					Item:   domain.ExtractedItem{ToolName: domain.ToolCreateCalendarReminder, Parameters: map[string]any{"subject": "Dentist | checkup"}},
					Status: domain.OutcomeSucceeded,
				},
				{
					Item:   domain.ExtractedItem{ToolName: "send-sms"},
					Status: domain.OutcomeSkipped,
					Detail: "no handler",
				},
			},
			Attempts:   2,
			StartedAt:  start,
			FinishedAt: start.Add(1500 * time.Millisecond),
		})

		assert.Contains(t, md, "# Run `run-1`")
		assert.Contains(t, md, "**Model attempts:** 2")
		assert.Contains(t, md, "1.5s")
		assert.Contains(t, md, "> Two appointments.")
		assert.Contains(t, md, `Dentist \| checkup`)
		assert.Contains(t, md, "| 2 | send-sms |  | skipped | no handler |")
	})

	t.Run("failed", func(t *testing.T) {
		md := Report(&domain.RunRecord{
			RunID:     "run-2",
			State:     domain.StateFailed,
			ErrorKind: domain.KindModelInvocation,
			Error:     "model invocation failed after 5 attempt(s)",
		})

		assert.Contains(t, md, "**Error (model_invocation):**")
		assert.Contains(t, md, "_No items._")
	})
}

func TestRendererAndBanner(t *testing.T) {
	out, err := NewRenderer()("# Title\n\nbody")
	require.NoError(t, err)
	assert.Contains(t, out, "Title")

	var buf bytes.Buffer
	PrintBanner(&buf, "v1.2.3")
	assert.True(t, strings.Contains(buf.String(), "v1.2.3"))
}
