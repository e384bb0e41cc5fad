package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fishtank-backend/internal/domain"
	"fishtank-backend/internal/logger"
	"fishtank-backend/internal/repository"
)

const (
	defaultEnrichConcurrency = 8
	defaultResolveRetries    = 3
	defaultRetryDelay        = 100 * time.Millisecond
	notifyTimeout            = 10 * time.Second
)

type CoordinatorOptions struct {
	// EnrichConcurrency bounds the lookups in flight per snapshot.
	EnrichConcurrency int
	// ResolveRetries is how many times a partially applied resolution is
	// completed before giving up.
	ResolveRetries int
	RetryDelay     time.Duration
	Now            func() time.Time
}

// Coordinator implements JoinRequestCoordinator and CounterReconciler.
type Coordinator struct {
	fishtanks    repository.FishtankRepository
	joinRequests repository.JoinRequestRepository
	profiles     repository.ProfileRepository
	notifiers    []Notifier
	opts         CoordinatorOptions
}

func NewJoinRequestCoordinator(
	fishtanks repository.FishtankRepository,
	joinRequests repository.JoinRequestRepository,
	profiles repository.ProfileRepository,
	opts CoordinatorOptions,
	notifiers ...Notifier,
) *Coordinator {
	if opts.EnrichConcurrency <= 0 {
		opts.EnrichConcurrency = defaultEnrichConcurrency
	}
	if opts.ResolveRetries <= 0 {
		opts.ResolveRetries = defaultResolveRetries
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	} else if opts.RetryDelay == 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		fishtanks:    fishtanks,
		joinRequests: joinRequests,
		profiles:     profiles,
		notifiers:    notifiers,
		opts:         opts,
	}
}

func (c *Coordinator) now() time.Time {
	return c.opts.Now().UTC()
}

func (c *Coordinator) Subscribe(ctx context.Context, fishtankID string) (<-chan PendingUpdate, error) {
	if fishtankID == "" {
		return nil, fmt.Errorf("fishtank id is required: %w", domain.ErrInvalidArgument)
	}
	if _, err := c.fishtanks.GetByID(ctx, fishtankID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	raw, err := c.joinRequests.WatchPending(ctx, fishtankID)
	if err != nil {
		cancel()
		logger.Error("Failed to open pending subscription", "fishtankID", fishtankID, "error", err)
		failed := make(chan PendingUpdate, 1)
		failed <- PendingUpdate{Err: err}
		close(failed)
		return failed, nil
	}

	log := logger.WithFishtank(fishtankID)
	log.Debug("Pending subscription opened")

	out := make(chan PendingUpdate)
	go func() {
		defer close(out)
		defer cancel()
		for snap := range raw {
			var update PendingUpdate
			if snap.Err != nil {
				update.Err = snap.Err
			} else {
				update.Requests, update.Err = c.enrich(ctx, snap.Requests)
			}
			if ctx.Err() != nil {
				return
			}
			if update.Err != nil {
				log.Warn("Pending subscription failed", "error", update.Err)
			}

			select {
			case <-ctx.Done():
				return
			case out <- update:
			}
			if update.Err != nil {
				return
			}
		}
		log.Debug("Pending subscription closed")
	}()
	return out, nil
}

func (c *Coordinator) ListPending(ctx context.Context, fishtankID string) ([]domain.PendingJoinRequest, error) {
	if fishtankID == "" {
		return nil, fmt.Errorf("fishtank id is required: %w", domain.ErrInvalidArgument)
	}
	if _, err := c.fishtanks.GetByID(ctx, fishtankID); err != nil {
		return nil, err
	}
	reqs, err := c.joinRequests.ListPending(ctx, fishtankID)
	if err != nil {
		return nil, err
	}
	return c.enrich(ctx, reqs)
}

func (c *Coordinator) Authorize(ctx context.Context, actor domain.Actor, fishtankID string) error {
	if actor.UserID == "" {
		return fmt.Errorf("actor is required: %w", domain.ErrPermissionDenied)
	}
	f, err := c.fishtanks.GetByID(ctx, fishtankID)
	if err != nil {
		return err
	}
	if f.OwnerID != actor.UserID {
		return fmt.Errorf("user %s does not own fishtank %s: %w", actor.UserID, fishtankID, domain.ErrPermissionDenied)
	}
	return nil
}

func (c *Coordinator) Resolve(ctx context.Context, actor domain.Actor, requestID string, decision domain.Decision) (*domain.Resolution, error) {
	logger.EnterMethod("Coordinator.Resolve", "actor", actor.UserID, "requestID", requestID, "decision", decision)

	if requestID == "" {
		return nil, fmt.Errorf("request id is required: %w", domain.ErrInvalidArgument)
	}
	if _, err := domain.ParseDecision(string(decision)); err != nil {
		return nil, fmt.Errorf("decision %q: %w", decision, err)
	}

	req, err := c.joinRequests.GetByID(ctx, requestID)
	if err != nil {
		logger.ExitMethodWithError("Coordinator.Resolve", err)
		return nil, err
	}
	if err := c.Authorize(ctx, actor, req.FishtankID); err != nil {
		logger.ExitMethodWithError("Coordinator.Resolve", err)
		return nil, err
	}

	res, err := c.joinRequests.Resolve(ctx, repository.ResolveParams{
		RequestID: requestID,
		Decision:  decision,
		ActorID:   actor.UserID,
		At:        c.now(),
	})
	if err != nil {
		var partial *domain.PartialFailureError
		switch {
		case errors.As(err, &partial):
			res, err = c.completeResolution(ctx, partial)
		case domain.IsAlreadyHandled(err), errors.Is(err, domain.ErrWriteFailed):
		default:
			err = fmt.Errorf("resolve join request %s: %w: %v", requestID, domain.ErrWriteFailed, err)
		}
		if err != nil {
			logger.ExitMethodWithError("Coordinator.Resolve", err, "requestID", requestID)
			return nil, err
		}
	}

	c.notify(ctx, res)
	logger.ExitMethod("Coordinator.Resolve", "requestID", requestID, "status", res.Request.Status)
	return res, nil
}

// completeResolution retries the steps a store could not apply. Store steps
// are idempotent.
func (c *Coordinator) completeResolution(ctx context.Context, partial *domain.PartialFailureError) (*domain.Resolution, error) {
	res := partial.Resolution
	lastErr := partial.Err
	logger.Warn("Join request resolution partially applied",
		"requestID", res.Request.ID, "applied", res.Applied, "missing", res.Missing(), "error", partial.Err)

retry:
	for attempt := 1; attempt <= c.opts.ResolveRetries; attempt++ {
		err := c.joinRequests.CompleteResolution(ctx, res)
		if err == nil {
			logger.Info("Join request resolution completed", "requestID", res.Request.ID, "attempt", attempt)
			return res, nil
		}
		lastErr = err

		var again *domain.PartialFailureError
		if errors.As(err, &again) {
			res = again.Resolution
		}
		if domain.IsAlreadyHandled(err) {
			break
		}
		select {
		case <-ctx.Done():
			lastErr = errors.Join(lastErr, ctx.Err())
			break retry
		case <-time.After(c.opts.RetryDelay * time.Duration(attempt)):
		}
	}

	rerr := &domain.ReconciliationError{RequestID: res.Request.ID, Missing: res.Missing(), Err: lastErr}
	logger.Error("Join request needs manual reconciliation", "requestID", res.Request.ID, "missing", rerr.Missing, "error", lastErr)
	return nil, rerr
}

// notify runs every notifier with a context detached from the caller's.
func (c *Coordinator) notify(ctx context.Context, res *domain.Resolution) {
	if len(c.notifiers) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	notice := &domain.DecisionNotice{Resolution: *res}
	if f, err := c.fishtanks.GetByID(ctx, res.Request.FishtankID); err == nil {
		notice.Fishtank = f.Summary()
	} else {
		logger.Warn("Notification fishtank lookup failed", "fishtankID", res.Request.FishtankID, "error", err)
		notice.Fishtank = domain.FishtankSummary{ID: res.Request.FishtankID}
	}
	if contact, err := c.profiles.GetContact(ctx, res.Request.RequesterID); err == nil {
		notice.Requester = *contact
	} else {
		logger.Warn("Notification contact lookup failed", "userID", res.Request.RequesterID, "error", err)
		notice.Requester = domain.Contact{UserID: res.Request.RequesterID}
	}

	for _, n := range c.notifiers {
		if err := n.NotifyDecision(ctx, notice); err != nil {
			logger.Warn("Decision notification failed", "requestID", res.Request.ID, "notifier", fmt.Sprintf("%T", n), "error", err)
		}
	}
}

func (c *Coordinator) Submit(ctx context.Context, actor domain.Actor, fishtankID, note string) (*domain.JoinRequest, error) {
	logger.EnterMethod("Coordinator.Submit", "actor", actor.UserID, "fishtankID", fishtankID)

	if actor.UserID == "" {
		return nil, fmt.Errorf("actor is required: %w", domain.ErrPermissionDenied)
	}
	if fishtankID == "" {
		return nil, fmt.Errorf("fishtank id is required: %w", domain.ErrInvalidArgument)
	}

	_, err := c.fishtanks.GetMembership(ctx, fishtankID, actor.UserID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("user %s is already a member of %s: %w", actor.UserID, fishtankID, domain.ErrInvalidState)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	req := &domain.JoinRequest{
		FishtankID:  fishtankID,
		RequesterID: actor.UserID,
		Note:        strings.TrimSpace(note),
	}
	if err := c.joinRequests.Create(ctx, req); err != nil {
		logger.ExitMethodWithError("Coordinator.Submit", err)
		return nil, err
	}
	logger.ExitMethod("Coordinator.Submit", "requestID", req.ID)
	return req, nil
}

func (c *Coordinator) CreateFishtank(ctx context.Context, actor domain.Actor, name, description string, isPrivate bool) (*domain.Fishtank, error) {
	if actor.UserID == "" {
		return nil, fmt.Errorf("actor is required: %w", domain.ErrPermissionDenied)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("fishtank name is required: %w", domain.ErrInvalidArgument)
	}

	now := c.now()
	f := &domain.Fishtank{
		Name:        name,
		Description: strings.TrimSpace(description),
		OwnerID:     actor.UserID,
		IsPrivate:   isPrivate,
		MemberCount: 1,
		CreatedAt:   now,
	}
	owner := &domain.Membership{UserID: actor.UserID, Role: domain.MemberRoleOwner, JoinedAt: now}
	if err := c.fishtanks.Create(ctx, f, owner); err != nil {
		return nil, err
	}
	logger.Info("Fishtank created", "fishtankID", f.ID, "owner", actor.UserID)
	return f, nil
}
