package service

import (
	"context"

	"fishtank-backend/internal/domain"
)

// PendingUpdate is one emission of Subscribe. An update with a non-nil Err is
// terminal and the channel is closed after it.
type PendingUpdate struct {
	Requests []domain.PendingJoinRequest
	Err      error
}

type JoinRequestCoordinator interface {
	// Subscribe streams the enriched pending list of a fishtank, re-emitting
	// the whole list after every change. Cancel ctx to unsubscribe.
	Subscribe(ctx context.Context, fishtankID string) (<-chan PendingUpdate, error)
	// Resolve accepts or rejects a pending request on behalf of actor.
	Resolve(ctx context.Context, actor domain.Actor, requestID string, decision domain.Decision) (*domain.Resolution, error)

	ListPending(ctx context.Context, fishtankID string) ([]domain.PendingJoinRequest, error)
	Submit(ctx context.Context, actor domain.Actor, fishtankID, note string) (*domain.JoinRequest, error)
	// Authorize returns nil when actor may view and resolve the fishtank's requests.
	Authorize(ctx context.Context, actor domain.Actor, fishtankID string) error
	CreateFishtank(ctx context.Context, actor domain.Actor, name, description string, isPrivate bool) (*domain.Fishtank, error)
}

type CounterReconciler interface {
	// ReconcileCounters rewrites drifted fishtank counters from source rows
	// and reports what it changed.
	ReconcileCounters(ctx context.Context) ([]domain.CounterDrift, error)
}

// Notifier is told about every successful resolution. Errors are logged by
// the caller and never fail the resolution.
type Notifier interface {
	NotifyDecision(ctx context.Context, notice *domain.DecisionNotice) error
}
