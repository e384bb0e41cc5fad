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
)

type fishtankRepository struct {
	db *sql.DB
}

func (r *fishtankRepository) Create(ctx context.Context, f *domain.Fishtank, owner *domain.Membership) error {
	logger.EnterMethod("fishtankRepository.Create", "name", f.Name, "ownerID", f.OwnerID)

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `INSERT INTO fishtanks (id, name, description, owner_id, is_private, member_count, pending_count, created_at)
		          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		logger.StoreCall(storeName, "INSERT", "fishtanks", "fishtankID", f.ID)
		_, err := tx.ExecContext(ctx, query, f.ID, f.Name, f.Description, f.OwnerID, f.IsPrivate, f.MemberCount, f.PendingCount, f.CreatedAt)
		logger.StoreResult(storeName, "INSERT", 1, err, "fishtankID", f.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("fishtank %s: %w", f.ID, domain.ErrInvalidState)
			}
			return writeFailed("insert fishtank", err)
		}
		if owner == nil {
			return nil
		}
		owner.FishtankID = f.ID
		owner.ID = domain.MembershipID(f.ID, owner.UserID)
		_, err = tx.ExecContext(ctx,
			`INSERT INTO memberships (id, fishtank_id, user_id, role, joined_at) VALUES ($1, $2, $3, $4, $5)`,
			owner.ID, owner.FishtankID, owner.UserID, owner.Role, owner.JoinedAt)
		if err != nil {
			return writeFailed("insert owner membership", err)
		}
		return nil
	})

	if err != nil {
		logger.ExitMethodWithError("fishtankRepository.Create", err, "fishtankID", f.ID)
		return err
	}
	logger.ExitMethod("fishtankRepository.Create", "fishtankID", f.ID)
	return nil
}

func (r *fishtankRepository) GetByID(ctx context.Context, id string) (*domain.Fishtank, error) {
	f := &domain.Fishtank{}
	query := `SELECT id, name, description, owner_id, is_private, member_count, pending_count, created_at FROM fishtanks WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&f.ID, &f.Name, &f.Description, &f.OwnerID, &f.IsPrivate, &f.MemberCount, &f.PendingCount, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fishtank %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *fishtankRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM fishtanks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *fishtankRepository) GetMembership(ctx context.Context, fishtankID, userID string) (*domain.Membership, error) {
	m := &domain.Membership{}
	query := `SELECT id, fishtank_id, user_id, role, joined_at FROM memberships WHERE fishtank_id = $1 AND user_id = $2`
	err := r.db.QueryRowContext(ctx, query, fishtankID, userID).Scan(&m.ID, &m.FishtankID, &m.UserID, &m.Role, &m.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("membership %s/%s: %w", fishtankID, userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

const countRowsQuery = `SELECT
	(SELECT count(*) FROM join_requests WHERE fishtank_id = $1 AND status = 'pending'),
	(SELECT count(*) FROM memberships WHERE fishtank_id = $1)`

func (r *fishtankRepository) CountRows(ctx context.Context, fishtankID string) (int64, int64, error) {
	var pending, members int64
	if err := r.db.QueryRowContext(ctx, countRowsQuery, fishtankID).Scan(&pending, &members); err != nil {
		return 0, 0, err
	}
	return pending, members, nil
}

func (r *fishtankRepository) RecountCounters(ctx context.Context, fishtankID string) (*domain.CounterDrift, error) {
	var drift *domain.CounterDrift
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		// the row lock holds off Create and Resolve until the rewrite commits
		var storedPending, storedMembers int64
		err := tx.QueryRowContext(ctx,
			`SELECT pending_count, member_count FROM fishtanks WHERE id = $1 FOR UPDATE`, fishtankID).
			Scan(&storedPending, &storedMembers)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("fishtank %s: %w", fishtankID, domain.ErrNotFound)
		}
		if err != nil {
			return writeFailed("lock fishtank", err)
		}

		var pending, members int64
		if err := tx.QueryRowContext(ctx, countRowsQuery, fishtankID).Scan(&pending, &members); err != nil {
			return writeFailed("count rows", err)
		}
		if pending == storedPending && members == storedMembers {
			return nil
		}

		logger.StoreCall(storeName, "UPDATE", "fishtanks", "fishtankID", fishtankID, "pending", pending, "members", members)
		_, err = tx.ExecContext(ctx, `UPDATE fishtanks SET pending_count = $1, member_count = $2 WHERE id = $3`, pending, members, fishtankID)
		logger.StoreResult(storeName, "UPDATE", 1, err, "fishtankID", fishtankID)
		if err != nil {
			return writeFailed("set counters", err)
		}
		drift = &domain.CounterDrift{
			FishtankID:    fishtankID,
			StoredPending: storedPending,
			ActualPending: pending,
			StoredMembers: storedMembers,
			ActualMembers: members,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return drift, nil
}
