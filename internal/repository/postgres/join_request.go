package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fishtank-backend/internal/domain"
	"fishtank-backend/internal/logger"
	"fishtank-backend/internal/repository"
)

type joinRequestRepository struct {
	db  *sql.DB
	hub *changeHub
}

const joinRequestColumns = `id, fishtank_id, requester_id, note, status, COALESCE(resolved_by, ''), created_at, updated_at`

func scanJoinRequest(row interface{ Scan(...any) error }, req *domain.JoinRequest) error {
	return row.Scan(&req.ID, &req.FishtankID, &req.RequesterID, &req.Note, &req.Status, &req.ResolvedBy, &req.CreatedAt, &req.UpdatedAt)
}

func (r *joinRequestRepository) Create(ctx context.Context, req *domain.JoinRequest) error {
	logger.EnterMethod("joinRequestRepository.Create", "fishtankID", req.FishtankID, "requesterID", req.RequesterID)

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	req.UpdatedAt = req.CreatedAt
	req.Status = domain.JoinRequestStatusPending

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		// counter first so the fishtank row lock orders concurrent submissions
		result, err := tx.ExecContext(ctx, `UPDATE fishtanks SET pending_count = pending_count + 1 WHERE id = $1`, req.FishtankID)
		if err != nil {
			return writeFailed("increment pending count", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("fishtank %s: %w", req.FishtankID, domain.ErrNotFound)
		}

		var member bool
		err = tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM memberships WHERE fishtank_id = $1 AND user_id = $2)`,
			req.FishtankID, req.RequesterID).Scan(&member)
		if err != nil {
			return writeFailed("check membership", err)
		}
		if member {
			return fmt.Errorf("user %s is already a member of %s: %w", req.RequesterID, req.FishtankID, domain.ErrInvalidState)
		}

		query := `INSERT INTO join_requests (id, fishtank_id, requester_id, note, status, created_at, updated_at)
		          VALUES ($1, $2, $3, $4, $5, $6, $7)`
		logger.StoreCall(storeName, "INSERT", "join_requests", "requestID", req.ID)
		_, err = tx.ExecContext(ctx, query, req.ID, req.FishtankID, req.RequesterID, req.Note, req.Status, req.CreatedAt, req.UpdatedAt)
		logger.StoreResult(storeName, "INSERT", 1, err, "requestID", req.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("requester %s already has a pending request: %w", req.RequesterID, domain.ErrInvalidState)
			}
			return writeFailed("insert join request", err)
		}
		return notifyChange(ctx, tx, req.FishtankID)
	})

	if err != nil {
		logger.ExitMethodWithError("joinRequestRepository.Create", err, "requestID", req.ID)
		return err
	}
	logger.ExitMethod("joinRequestRepository.Create", "requestID", req.ID)
	return nil
}

func (r *joinRequestRepository) GetByID(ctx context.Context, id string) (*domain.JoinRequest, error) {
	req := &domain.JoinRequest{}
	query := `SELECT ` + joinRequestColumns + ` FROM join_requests WHERE id = $1`
	err := scanJoinRequest(r.db.QueryRowContext(ctx, query, id), req)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("join request %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (r *joinRequestRepository) ListPending(ctx context.Context, fishtankID string) ([]domain.JoinRequest, error) {
	query := `SELECT ` + joinRequestColumns + ` FROM join_requests
	          WHERE fishtank_id = $1 AND status = 'pending' ORDER BY created_at DESC, id`
	rows, err := r.db.QueryContext(ctx, query, fishtankID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reqs := []domain.JoinRequest{}
	for rows.Next() {
		var req domain.JoinRequest
		if err := scanJoinRequest(rows, &req); err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

func (r *joinRequestRepository) WatchPending(ctx context.Context, fishtankID string) (<-chan repository.PendingSnapshot, error) {
	sub, err := r.hub.subscribe(fishtankID)
	if err != nil {
		return nil, err
	}

	out := make(chan repository.PendingSnapshot)
	go func() {
		defer close(out)
		defer r.hub.unsubscribe(sub)

		send := func(snap repository.PendingSnapshot) bool {
			select {
			case <-ctx.Done():
				return false
			case out <- snap:
				return snap.Err == nil
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case err := <-sub.dead:
				send(repository.PendingSnapshot{Err: fmt.Errorf("pending subscription for %s lost: %w", fishtankID, err)})
				return
			case <-sub.dirty:
			}

			reqs, err := r.ListPending(ctx, fishtankID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				send(repository.PendingSnapshot{Err: fmt.Errorf("query pending for %s: %w", fishtankID, err)})
				return
			}
			if !send(repository.PendingSnapshot{Requests: reqs}) {
				return
			}
		}
	}()
	return out, nil
}

// lookupStatus distinguishes a missing request from one that is no longer pending.
func lookupStatus(ctx context.Context, tx *sql.Tx, id string) error {
	var status domain.JoinRequestStatus
	err := tx.QueryRowContext(ctx, `SELECT status FROM join_requests WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("join request %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return writeFailed("lookup join request", err)
	}
	return fmt.Errorf("join request %s is %s: %w", id, status, domain.ErrInvalidState)
}

// lockFishtank takes the fishtank row lock that serializes every counter
// writer. Callers take it before touching any join request row.
func lockFishtank(ctx context.Context, tx *sql.Tx, fishtankID string) error {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM fishtanks WHERE id = $1 FOR UPDATE`, fishtankID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("fishtank %s: %w", fishtankID, domain.ErrNotFound)
	}
	if err != nil {
		return writeFailed("lock fishtank", err)
	}
	return nil
}

func (r *joinRequestRepository) Resolve(ctx context.Context, p repository.ResolveParams) (*domain.Resolution, error) {
	logger.EnterMethod("joinRequestRepository.Resolve", "requestID", p.RequestID, "decision", p.Decision)

	res := &domain.Resolution{Decision: p.Decision, ResolvedAt: p.At}
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		req := &res.Request
		var fishtankID string
		err := tx.QueryRowContext(ctx, `SELECT fishtank_id FROM join_requests WHERE id = $1`, p.RequestID).Scan(&fishtankID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("join request %s: %w", p.RequestID, domain.ErrNotFound)
		}
		if err != nil {
			return writeFailed("lookup join request", err)
		}
		if err := lockFishtank(ctx, tx, fishtankID); err != nil {
			return err
		}

		// compare-and-set: only a pending row matches, so one caller wins
		query := `UPDATE join_requests SET status = $1, updated_at = $2, resolved_by = $3
		          WHERE id = $4 AND status = 'pending'
		          RETURNING ` + joinRequestColumns
		logger.StoreCall(storeName, "UPDATE", "join_requests", "requestID", p.RequestID)
		err = scanJoinRequest(tx.QueryRowContext(ctx, query, p.Decision.Status(), p.At, p.ActorID, p.RequestID), req)
		if errors.Is(err, sql.ErrNoRows) {
			return lookupStatus(ctx, tx, p.RequestID)
		}
		if err != nil {
			return writeFailed("update join request status", err)
		}
		res.MarkApplied(domain.StepStatus)

		if p.Decision == domain.DecisionAccept {
			m := newMembership(req, p.At)
			if err := insertMembership(ctx, tx, m); err != nil {
				return err
			}
			res.Membership = m
			res.MarkApplied(domain.StepMembership)
		}

		if err := applyCounters(ctx, tx, req.FishtankID, p.Decision); err != nil {
			return err
		}
		res.MarkApplied(domain.StepCounters)

		return notifyChange(ctx, tx, req.FishtankID)
	})

	if err != nil {
		logger.ExitMethodWithError("joinRequestRepository.Resolve", err, "requestID", p.RequestID)
		return nil, err
	}
	logger.ExitMethod("joinRequestRepository.Resolve", "requestID", p.RequestID, "status", res.Request.Status)
	return res, nil
}

func (r *joinRequestRepository) CompleteResolution(ctx context.Context, res *domain.Resolution) error {
	missing := res.Missing()
	if len(missing) == 0 {
		return nil
	}
	logger.EnterMethod("joinRequestRepository.CompleteResolution", "requestID", res.Request.ID, "missing", missing)

	req := res.Request
	var membership *domain.Membership
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockFishtank(ctx, tx, req.FishtankID); err != nil {
			return err
		}
		for _, step := range missing {
			switch step {
			case domain.StepStatus:
				target := res.Decision.Status()
				result, err := tx.ExecContext(ctx,
					`UPDATE join_requests SET status = $1, updated_at = $2 WHERE id = $3 AND status = 'pending'`,
					target, res.ResolvedAt, req.ID)
				if err != nil {
					return writeFailed("complete status", err)
				}
				if n, _ := result.RowsAffected(); n == 0 {
					return lookupStatus(ctx, tx, req.ID)
				}
				req.Status = target
			case domain.StepMembership:
				membership = newMembership(&req, res.ResolvedAt)
				if err := insertMembership(ctx, tx, membership); err != nil {
					return err
				}
			case domain.StepCounters:
				if err := applyCounters(ctx, tx, req.FishtankID, res.Decision); err != nil {
					return err
				}
			}
		}
		return notifyChange(ctx, tx, req.FishtankID)
	})
	if err != nil {
		logger.ExitMethodWithError("joinRequestRepository.CompleteResolution", err, "requestID", req.ID)
		return err
	}

	for _, step := range missing {
		res.MarkApplied(step)
	}
	res.Request = req
	if membership != nil {
		res.Membership = membership
	}
	logger.ExitMethod("joinRequestRepository.CompleteResolution", "requestID", req.ID)
	return nil
}

func newMembership(req *domain.JoinRequest, at time.Time) *domain.Membership {
	return &domain.Membership{
		ID:         domain.MembershipID(req.FishtankID, req.RequesterID),
		FishtankID: req.FishtankID,
		UserID:     req.RequesterID,
		Role:       domain.MemberRoleMember,
		JoinedAt:   at,
	}
}

// insertMembership refuses to add a user who already belongs to the fishtank,
// which rolls back the whole resolution.
func insertMembership(ctx context.Context, tx *sql.Tx, m *domain.Membership) error {
	query := `INSERT INTO memberships (id, fishtank_id, user_id, role, joined_at)
	          VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`
	logger.StoreCall(storeName, "INSERT", "memberships", "membershipID", m.ID)
	result, err := tx.ExecContext(ctx, query, m.ID, m.FishtankID, m.UserID, m.Role, m.JoinedAt)
	if err != nil {
		logger.StoreResult(storeName, "INSERT", 0, err, "membershipID", m.ID)
		return writeFailed("insert membership", err)
	}
	n, err := result.RowsAffected()
	logger.StoreResult(storeName, "INSERT", n, err, "membershipID", m.ID)
	if err != nil {
		return writeFailed("insert membership", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s is already a member of %s: %w", m.UserID, m.FishtankID, domain.ErrInvalidState)
	}
	return nil
}

// applyCounters moves the fishtank counters with in-place increments so
// concurrent resolutions in the same fishtank never lose an update.
func applyCounters(ctx context.Context, tx *sql.Tx, fishtankID string, d domain.Decision) error {
	query := `UPDATE fishtanks SET pending_count = pending_count - 1 WHERE id = $1`
	if d == domain.DecisionAccept {
		query = `UPDATE fishtanks SET member_count = member_count + 1, pending_count = pending_count - 1 WHERE id = $1`
	}
	result, err := tx.ExecContext(ctx, query, fishtankID)
	if err != nil {
		return writeFailed("update fishtank counters", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("fishtank %s: %w", fishtankID, domain.ErrNotFound)
	}
	return nil
}
