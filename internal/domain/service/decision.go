package service

import (
	"context"

	"Agentomics/internal/domain/models"
)

// Decider is the boundary to the opaque reasoning process behind one role.
// Implementations may block for a long time and must honor ctx.
type Decider interface {
	Decide(ctx context.Context, req models.DecisionRequest) (models.Decision, error)
}

// DeciderFunc adapts a function to Decider.
type DeciderFunc func(ctx context.Context, req models.DecisionRequest) (models.Decision, error)

func (f DeciderFunc) Decide(ctx context.Context, req models.DecisionRequest) (models.Decision, error) {
	return f(ctx, req)
}

// DeciderRegistry resolves the decider that plays a role.
type DeciderRegistry interface {
	Lookup(role models.Role) (Decider, bool)
}
