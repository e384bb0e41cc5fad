package repository

import (
	"context"
	"time"

	"fishtank-backend/internal/domain"
)

// PendingSnapshot is one emission of a live pending-request query. A snapshot
// with a non-nil Err is terminal: the channel is closed right after it.
type PendingSnapshot struct {
	Requests []domain.JoinRequest
	Err      error
}

// ResolveParams describes a single status transition out of pending.
type ResolveParams struct {
	RequestID string
	Decision  domain.Decision
	ActorID   string
	At        time.Time
}

type FishtankRepository interface {
	// Create stores the fishtank together with its owner membership.
	Create(ctx context.Context, f *domain.Fishtank, owner *domain.Membership) error
	GetByID(ctx context.Context, id string) (*domain.Fishtank, error)
	ListIDs(ctx context.Context) ([]string, error)
	GetMembership(ctx context.Context, fishtankID, userID string) (*domain.Membership, error)

	// CountRows counts pending requests and memberships from source rows.
	CountRows(ctx context.Context, fishtankID string) (pending, members int64, err error)
	// RecountCounters recounts the source rows and rewrites drifted counters
	// in one unit serialized with Create and Resolve. It returns nil when the
	// stored counters already matched.
	RecountCounters(ctx context.Context, fishtankID string) (*domain.CounterDrift, error)
}

type JoinRequestRepository interface {
	// Create inserts a pending request and increments the fishtank's pending
	// counter as one unit. ErrInvalidState if the requester already has one
	// pending or is already a member.
	Create(ctx context.Context, req *domain.JoinRequest) error
	GetByID(ctx context.Context, id string) (*domain.JoinRequest, error)
	// ListPending returns pending requests for the fishtank, newest first.
	ListPending(ctx context.Context, fishtankID string) ([]domain.JoinRequest, error)
	// WatchPending emits the full pending list on subscription and after every change.
	// The channel is closed when ctx is done or after a terminal error snapshot.
	WatchPending(ctx context.Context, fishtankID string) (<-chan PendingSnapshot, error)

	// Resolve applies the decision atomically, guarded by status = pending.
	// Accepting a requester who is already a member is ErrInvalidState and
	// changes nothing. Returns ErrNotFound, ErrInvalidState, or
	// *domain.PartialFailureError.
	Resolve(ctx context.Context, p ResolveParams) (*domain.Resolution, error)
	// CompleteResolution applies the steps missing from res in one unit. A
	// missing status step still requires the request to be pending, so a
	// concurrent winner is never counted twice.
	CompleteResolution(ctx context.Context, res *domain.Resolution) error
}

type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (*domain.RequesterProfile, error)
	GetContact(ctx context.Context, userID string) (*domain.Contact, error)
}

// Store groups the repositories of one backend.
type Store interface {
	Fishtanks() FishtankRepository
	JoinRequests() JoinRequestRepository
	Profiles() ProfileRepository
	Close() error
}
