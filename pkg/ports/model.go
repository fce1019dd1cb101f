package ports

import (
	"context"

	"github.com/aretw0/tickler/pkg/domain"
)

// ModelClient is the external model service.
// Implementations perform one call per Complete and must not retry internally.
type ModelClient interface {
	Complete(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error)
}

// ModelClientFunc adapts a function to ModelClient.
type ModelClientFunc func(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error)

// Complete calls f(ctx, req).
func (f ModelClientFunc) Complete(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error) {
	return f(ctx, req)
}
