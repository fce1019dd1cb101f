package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/tickler/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreContract runs a suite of tests to verify that a RunStore implementation
// adheres to the defined interface contract.
func RunStoreContract(t *testing.T, store RunStore) {
	ctx := context.Background()
	runID := "contract-test-run-" + time.Now().Format("20060102150405")

	newRecord := func(id string) *domain.RunRecord {
		return &domain.RunRecord{
			RunID:   id,
			State:   domain.StateCompleted,
			Input:   "Lunch with Ana tomorrow",
			Summary: "Lunch invitation",
			Outcomes: []domain.ItemOutcome{
				{
					Item: domain.ExtractedItem{
						ToolName:   domain.ToolCreateCalendarReminder,
						Parameters: map[string]any{"subject": "Lunch"},
					},
					Status: domain.OutcomeSucceeded,
				},
			},
			Attempts:   1,
			StartedAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			FinishedAt: time.Date(2024, 3, 1, 12, 0, 3, 0, time.UTC),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		// 1. Save
		err := store.Save(ctx, newRecord(runID))
		require.NoError(t, err, "Save should not return error")

		// 2. Load
		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, domain.StateCompleted, loaded.State)
		assert.Equal(t, "Lunch invitation", loaded.Summary)
		require.Len(t, loaded.Outcomes, 1)
		assert.Equal(t, domain.OutcomeSucceeded, loaded.Outcomes[0].Status)
		assert.Equal(t, "Lunch", loaded.Outcomes[0].Item.Parameters["subject"])
		assert.True(t, loaded.FinishedAt.Equal(time.Date(2024, 3, 1, 12, 0, 3, 0, time.UTC)))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, newRecord(runID))
		require.NoError(t, err)

		err = store.Delete(ctx, runID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound, "Load after Delete should return ErrRunNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := runID + "-1"
		id2 := runID + "-2"
		require.NoError(t, store.Save(ctx, newRecord(id1)))
		require.NoError(t, store.Save(ctx, newRecord(id2)))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		runs, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, runs, id1)
		assert.Contains(t, runs, id2)
	})
}
