package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/tickler/pkg/adapters/memory"
	"github.com/aretw0/tickler/pkg/domain"
	"github.com/aretw0/tickler/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunStoreContract(t, memory.NewStore())
}

func TestMemoryStore_Isolation(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	rec := &domain.RunRecord{
		RunID: "run-1",
		Outcomes: []domain.ItemOutcome{
			{Item: domain.ExtractedItem{ToolName: "t", Parameters: map[string]any{"k": "v"}}},
		},
	}
	require.NoError(t, store.Save(ctx, rec))

	// Mutating the caller's copy must not leak into the store
	rec.Outcomes[0].Item.Parameters["k"] = "changed"

	loaded, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "v", loaded.Outcomes[0].Item.Parameters["k"])
}

func TestMemoryStore_CapacityEvictsOldest(t *testing.T) {
	store := memory.NewStore(memory.WithCapacity(2))
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Save(ctx, &domain.RunRecord{RunID: id}))
	}

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, ids)

	_, err = store.Load(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}
