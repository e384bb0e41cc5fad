package firestore

import (
	"context"
	"fmt"
	"time"

	fs "cloud.google.com/go/firestore"
	"github.com/google/uuid"

	"fishtank-backend/internal/domain"
	"fishtank-backend/internal/logger"
	"fishtank-backend/internal/repository"
)

type joinRequestRepository struct {
	client *fs.Client
}

func (r *joinRequestRepository) requests() *fs.CollectionRef {
	return r.client.Collection(colJoinRequests)
}

func (r *joinRequestRepository) pendingQuery(fishtankID string) fs.Query {
	return r.requests().
		Where("fishtankId", "==", fishtankID).
		Where("status", "==", string(domain.JoinRequestStatusPending)).
		OrderBy("createdAt", fs.Desc)
}

func decodeJoinRequest(snap *fs.DocumentSnapshot) (domain.JoinRequest, error) {
	var req domain.JoinRequest
	if err := snap.DataTo(&req); err != nil {
		return req, fmt.Errorf("decode join request %s: %w", snap.Ref.ID, err)
	}
	req.ID = snap.Ref.ID
	return req, nil
}

func decodeAll(snaps []*fs.DocumentSnapshot) ([]domain.JoinRequest, error) {
	out := make([]domain.JoinRequest, 0, len(snaps))
	for _, snap := range snaps {
		req, err := decodeJoinRequest(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

func (r *joinRequestRepository) Create(ctx context.Context, req *domain.JoinRequest) error {
	logger.EnterMethod("firestore.joinRequestRepository.Create", "fishtankID", req.FishtankID, "requesterID", req.RequesterID)

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	req.UpdatedAt = req.CreatedAt
	req.Status = domain.JoinRequestStatusPending

	tankRef := r.client.Collection(colFishtanks).Doc(req.FishtankID)
	memberRef := r.client.Collection(colMemberships).Doc(domain.MembershipID(req.FishtankID, req.RequesterID))
	existing := r.requests().
		Where("fishtankId", "==", req.FishtankID).
		Where("requesterId", "==", req.RequesterID).
		Where("status", "==", string(domain.JoinRequestStatusPending)).
		Limit(1)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		if _, err := tx.Get(tankRef); err != nil {
			if isNotFound(err) {
				return fmt.Errorf("fishtank %s: %w", req.FishtankID, domain.ErrNotFound)
			}
			return err
		}
		if _, err := tx.Get(memberRef); err == nil {
			return fmt.Errorf("user %s is already a member of %s: %w", req.RequesterID, req.FishtankID, domain.ErrInvalidState)
		} else if !isNotFound(err) {
			return err
		}
		dups, err := tx.Documents(existing).GetAll()
		if err != nil {
			return err
		}
		if len(dups) > 0 {
			return fmt.Errorf("requester %s already has a pending request: %w", req.RequesterID, domain.ErrInvalidState)
		}
		if err := tx.Create(r.requests().Doc(req.ID), req); err != nil {
			return err
		}
		return tx.Update(tankRef, []fs.Update{{Path: "pendingCount", Value: fs.Increment(1)}})
	})
	err = classify("create join request", err)
	if err != nil {
		logger.ExitMethodWithError("firestore.joinRequestRepository.Create", err)
		return err
	}
	logger.ExitMethod("firestore.joinRequestRepository.Create", "requestID", req.ID)
	return nil
}

func (r *joinRequestRepository) GetByID(ctx context.Context, id string) (*domain.JoinRequest, error) {
	snap, err := r.requests().Doc(id).Get(ctx)
	if isNotFound(err) {
		return nil, fmt.Errorf("join request %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	req, err := decodeJoinRequest(snap)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *joinRequestRepository) ListPending(ctx context.Context, fishtankID string) ([]domain.JoinRequest, error) {
	snaps, err := r.pendingQuery(fishtankID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("query pending for %s: %w", fishtankID, err)
	}
	return decodeAll(snaps)
}

// WatchPending streams the pending query through a Firestore snapshot
// listener. The listener already emits the current result set first.
func (r *joinRequestRepository) WatchPending(ctx context.Context, fishtankID string) (<-chan repository.PendingSnapshot, error) {
	it := r.pendingQuery(fishtankID).Snapshots(ctx)
	out := make(chan repository.PendingSnapshot)

	go func() {
		defer close(out)
		defer it.Stop()
		for {
			qs, err := it.Next()
			var snap repository.PendingSnapshot
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				snap.Err = fmt.Errorf("pending listener for %s: %w", fishtankID, err)
			} else {
				docs, derr := qs.Documents.GetAll()
				if derr == nil {
					snap.Requests, derr = decodeAll(docs)
				}
				snap.Err = derr
			}

			select {
			case <-ctx.Done():
				return
			case out <- snap:
			}
			if snap.Err != nil {
				return
			}
		}
	}()
	return out, nil
}

// txState is what a resolution transaction reads before it writes.
type txState struct {
	req          domain.JoinRequest
	tankRef      *fs.DocumentRef
	memberRef    *fs.DocumentRef
	memberExists bool
}

func (r *joinRequestRepository) load(tx *fs.Transaction, requestID string, accept bool) (*txState, error) {
	snap, err := tx.Get(r.requests().Doc(requestID))
	if isNotFound(err) {
		return nil, fmt.Errorf("join request %s: %w", requestID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	req, err := decodeJoinRequest(snap)
	if err != nil {
		return nil, err
	}

	st := &txState{req: req, tankRef: r.client.Collection(colFishtanks).Doc(req.FishtankID)}
	if _, err := tx.Get(st.tankRef); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("fishtank %s: %w", req.FishtankID, domain.ErrNotFound)
		}
		return nil, err
	}
	if accept {
		st.memberRef = r.client.Collection(colMemberships).Doc(domain.MembershipID(req.FishtankID, req.RequesterID))
		_, err := tx.Get(st.memberRef)
		switch {
		case err == nil:
			st.memberExists = true
		case !isNotFound(err):
			return nil, err
		}
	}
	return st, nil
}

func (r *joinRequestRepository) Resolve(ctx context.Context, p repository.ResolveParams) (*domain.Resolution, error) {
	logger.EnterMethod("firestore.joinRequestRepository.Resolve", "requestID", p.RequestID, "decision", p.Decision)

	accept := p.Decision == domain.DecisionAccept
	next := p.Decision.Status()
	var res *domain.Resolution

	// Firestore retries the function on contention, so a losing concurrent
	// resolver re-reads the request and sees it is no longer pending.
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		res = &domain.Resolution{Decision: p.Decision, ResolvedAt: p.At}

		st, err := r.load(tx, p.RequestID, accept)
		if err != nil {
			return err
		}
		if !st.req.Status.CanTransitionTo(next) {
			return fmt.Errorf("join request %s is %s: %w", p.RequestID, st.req.Status, domain.ErrInvalidState)
		}
		if accept && st.memberExists {
			return fmt.Errorf("user %s is already a member of %s: %w", st.req.RequesterID, st.req.FishtankID, domain.ErrInvalidState)
		}

		if err := tx.Update(r.requests().Doc(p.RequestID), []fs.Update{
			{Path: "status", Value: string(next)},
			{Path: "updatedAt", Value: p.At},
			{Path: "resolvedBy", Value: p.ActorID},
		}); err != nil {
			return err
		}
		st.req.Status = next
		st.req.UpdatedAt = p.At
		st.req.ResolvedBy = p.ActorID
		res.Request = st.req
		res.MarkApplied(domain.StepStatus)

		counters := []fs.Update{{Path: "pendingCount", Value: fs.Increment(-1)}}
		if accept {
			m := &domain.Membership{
				ID:         st.memberRef.ID,
				FishtankID: st.req.FishtankID,
				UserID:     st.req.RequesterID,
				Role:       domain.MemberRoleMember,
				JoinedAt:   p.At,
			}
			if err := tx.Create(st.memberRef, m); err != nil {
				return err
			}
			res.Membership = m
			res.MarkApplied(domain.StepMembership)
			counters = append(counters, fs.Update{Path: "memberCount", Value: fs.Increment(1)})
		}
		if err := tx.Update(st.tankRef, counters); err != nil {
			return err
		}
		res.MarkApplied(domain.StepCounters)
		return nil
	})
	if err = classify("resolve join request", err); err != nil {
		logger.ExitMethodWithError("firestore.joinRequestRepository.Resolve", err, "requestID", p.RequestID)
		return nil, err
	}
	logger.ExitMethod("firestore.joinRequestRepository.Resolve", "requestID", p.RequestID, "status", next)
	return res, nil
}

func (r *joinRequestRepository) CompleteResolution(ctx context.Context, res *domain.Resolution) error {
	missing := res.Missing()
	if len(missing) == 0 {
		return nil
	}
	accept := res.Decision == domain.DecisionAccept
	target := res.Decision.Status()

	var applied *domain.Resolution
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		applied = &domain.Resolution{
			Request:    res.Request,
			Decision:   res.Decision,
			Membership: res.Membership,
			Applied:    append([]domain.ResolutionStep(nil), res.Applied...),
			ResolvedAt: res.ResolvedAt,
		}
		st, err := r.load(tx, res.Request.ID, accept)
		if err != nil {
			return err
		}
		// refuse before writing so a stale result never double counts
		for _, step := range missing {
			switch step {
			case domain.StepStatus:
				if !st.req.Status.CanTransitionTo(target) {
					return fmt.Errorf("join request %s is %s: %w", st.req.ID, st.req.Status, domain.ErrInvalidState)
				}
			case domain.StepMembership:
				if st.memberExists {
					return fmt.Errorf("user %s is already a member of %s: %w", st.req.RequesterID, st.req.FishtankID, domain.ErrInvalidState)
				}
			}
		}
		for _, step := range missing {
			switch step {
			case domain.StepStatus:
				if err := tx.Update(r.requests().Doc(st.req.ID), []fs.Update{
					{Path: "status", Value: string(target)},
					{Path: "updatedAt", Value: res.ResolvedAt},
					{Path: "resolvedBy", Value: res.Request.ResolvedBy},
				}); err != nil {
					return err
				}
				st.req.Status = target
				st.req.UpdatedAt = res.ResolvedAt
			case domain.StepMembership:
				m := &domain.Membership{
					ID:         st.memberRef.ID,
					FishtankID: st.req.FishtankID,
					UserID:     st.req.RequesterID,
					Role:       domain.MemberRoleMember,
					JoinedAt:   res.ResolvedAt,
				}
				if err := tx.Create(st.memberRef, m); err != nil {
					return err
				}
				applied.Membership = m
			case domain.StepCounters:
				counters := []fs.Update{{Path: "pendingCount", Value: fs.Increment(-1)}}
				if accept {
					counters = append(counters, fs.Update{Path: "memberCount", Value: fs.Increment(1)})
				}
				if err := tx.Update(st.tankRef, counters); err != nil {
					return err
				}
			}
			applied.MarkApplied(step)
		}
		applied.Request = st.req
		return nil
	})
	if err = classify("complete resolution", err); err != nil {
		return err
	}
	*res = *applied
	return nil
}
