package firestore

import (
	"context"
	"fmt"
	"sort"
	"time"

	fs "cloud.google.com/go/firestore"
	"github.com/google/uuid"

	"fishtank-backend/internal/domain"
	"fishtank-backend/internal/logger"
)

type fishtankRepository struct {
	client *fs.Client
}

func (r *fishtankRepository) Create(ctx context.Context, f *domain.Fishtank, owner *domain.Membership) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	if owner != nil {
		owner.FishtankID = f.ID
		owner.ID = domain.MembershipID(f.ID, owner.UserID)
	}

	logger.StoreCall(storeName, "CREATE", colFishtanks, "fishtankID", f.ID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		if err := tx.Create(r.client.Collection(colFishtanks).Doc(f.ID), f); err != nil {
			return err
		}
		if owner != nil {
			return tx.Create(r.client.Collection(colMemberships).Doc(owner.ID), owner)
		}
		return nil
	})
	logger.StoreResult(storeName, "CREATE", 1, err, "fishtankID", f.ID)
	if isAlreadyExists(err) {
		return fmt.Errorf("fishtank %s: %w", f.ID, domain.ErrInvalidState)
	}
	return classify("create fishtank", err)
}

func (r *fishtankRepository) GetByID(ctx context.Context, id string) (*domain.Fishtank, error) {
	snap, err := r.client.Collection(colFishtanks).Doc(id).Get(ctx)
	if isNotFound(err) {
		return nil, fmt.Errorf("fishtank %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return decodeFishtank(snap)
}

func decodeFishtank(snap *fs.DocumentSnapshot) (*domain.Fishtank, error) {
	f := &domain.Fishtank{}
	if err := snap.DataTo(f); err != nil {
		return nil, fmt.Errorf("decode fishtank %s: %w", snap.Ref.ID, err)
	}
	f.ID = snap.Ref.ID
	return f, nil
}

func (r *fishtankRepository) ListIDs(ctx context.Context) ([]string, error) {
	refs, err := r.client.Collection(colFishtanks).DocumentRefs(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *fishtankRepository) GetMembership(ctx context.Context, fishtankID, userID string) (*domain.Membership, error) {
	snap, err := r.client.Collection(colMemberships).Doc(domain.MembershipID(fishtankID, userID)).Get(ctx)
	if isNotFound(err) {
		return nil, fmt.Errorf("membership %s/%s: %w", fishtankID, userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	m := &domain.Membership{}
	if err := snap.DataTo(m); err != nil {
		return nil, err
	}
	m.ID = snap.Ref.ID
	return m, nil
}

func (r *fishtankRepository) pendingRows(fishtankID string) fs.Query {
	return r.client.Collection(colJoinRequests).
		Where("fishtankId", "==", fishtankID).
		Where("status", "==", string(domain.JoinRequestStatusPending)).
		Select()
}

func (r *fishtankRepository) memberRows(fishtankID string) fs.Query {
	return r.client.Collection(colMemberships).
		Where("fishtankId", "==", fishtankID).
		Select()
}

func (r *fishtankRepository) CountRows(ctx context.Context, fishtankID string) (int64, int64, error) {
	pending, err := r.pendingRows(fishtankID).Documents(ctx).GetAll()
	if err != nil {
		return 0, 0, fmt.Errorf("count pending for %s: %w", fishtankID, err)
	}
	members, err := r.memberRows(fishtankID).Documents(ctx).GetAll()
	if err != nil {
		return 0, 0, fmt.Errorf("count members for %s: %w", fishtankID, err)
	}
	return int64(len(pending)), int64(len(members)), nil
}

// RecountCounters reads the fishtank document and its rows in one
// transaction. Create and Resolve write the same document, so a resolution
// that lands mid-recount forces a retry instead of being overwritten.
func (r *fishtankRepository) RecountCounters(ctx context.Context, fishtankID string) (*domain.CounterDrift, error) {
	tankRef := r.client.Collection(colFishtanks).Doc(fishtankID)
	var drift *domain.CounterDrift

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		drift = nil
		snap, err := tx.Get(tankRef)
		if isNotFound(err) {
			return fmt.Errorf("fishtank %s: %w", fishtankID, domain.ErrNotFound)
		}
		if err != nil {
			return err
		}
		f, err := decodeFishtank(snap)
		if err != nil {
			return err
		}
		pending, err := tx.Documents(r.pendingRows(fishtankID)).GetAll()
		if err != nil {
			return fmt.Errorf("count pending for %s: %w", fishtankID, err)
		}
		members, err := tx.Documents(r.memberRows(fishtankID)).GetAll()
		if err != nil {
			return fmt.Errorf("count members for %s: %w", fishtankID, err)
		}

		actualPending, actualMembers := int64(len(pending)), int64(len(members))
		if f.PendingCount == actualPending && f.MemberCount == actualMembers {
			return nil
		}
		logger.StoreCall(storeName, "UPDATE", colFishtanks, "fishtankID", fishtankID)
		if err := tx.Update(tankRef, []fs.Update{
			{Path: "pendingCount", Value: actualPending},
			{Path: "memberCount", Value: actualMembers},
		}); err != nil {
			return err
		}
		drift = &domain.CounterDrift{
			FishtankID:    fishtankID,
			StoredPending: f.PendingCount,
			ActualPending: actualPending,
			StoredMembers: f.MemberCount,
			ActualMembers: actualMembers,
		}
		return nil
	})
	if err = classify("recount counters", err); err != nil {
		return nil, err
	}
	return drift, nil
}
