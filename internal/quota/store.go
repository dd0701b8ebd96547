package quota

import (
	"context"
	"time"
)

// Key identifies one usage counter.
type Key struct {
	UserID   string
	Category Category
	Period   string
}

// Event is one recorded metered action.
type Event struct {
	ID       string
	Key      Key
	Metadata map[string]any
	At       time.Time
}

// Store is the usage ledger backend. Append may be retried, so a counter can
// run slightly high; it never runs low.
type Store interface {
	Count(ctx context.Context, key Key) (int, error)
	Append(ctx context.Context, event Event) error
}

// PlanResolver names the plan a user is on. An empty name means the default plan.
type PlanResolver interface {
	PlanFor(ctx context.Context, userID string) (string, error)
}

// PlanResolverFunc adapts a function to PlanResolver.
type PlanResolverFunc func(ctx context.Context, userID string) (string, error)

func (f PlanResolverFunc) PlanFor(ctx context.Context, userID string) (string, error) {
	return f(ctx, userID)
}
