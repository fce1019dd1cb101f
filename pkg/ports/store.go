package ports

import (
	"context"

	"github.com/aretw0/tickler/pkg/domain"
)

// RunStore persists the records of finished runs.
type RunStore interface {
	// Save persists the record under its RunID, replacing any previous one.
	Save(ctx context.Context, record *domain.RunRecord) error

	// Load retrieves the record for a run.
	// Returns domain.ErrRunNotFound if the run does not exist.
	Load(ctx context.Context, runID string) (*domain.RunRecord, error)

	// List returns the IDs of stored runs. Order is implementation defined.
	List(ctx context.Context) ([]string, error)

	// Delete removes the record for a run.
	Delete(ctx context.Context, runID string) error
}
