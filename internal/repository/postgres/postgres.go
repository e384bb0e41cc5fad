package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"fishtank-backend/internal/domain"
	"fishtank-backend/internal/repository"
)

const (
	storeName     = "postgres"
	changeChannel = "join_request_changes"
	uniqueViolate = "23505"
)

type Store struct {
	db  *sql.DB
	hub *changeHub

	fishtanks    *fishtankRepository
	joinRequests *joinRequestRepository
	profiles     *profileRepository
}

// NewStore wires the repositories over db. connStr is used to open the
// LISTEN connection backing WatchPending; it may be empty when no live
// queries are needed.
func NewStore(db *sql.DB, connStr string) *Store {
	return newStore(db, newPQListenerFactory(connStr))
}

func newStore(db *sql.DB, listen listenerFactory) *Store {
	hub := newChangeHub(listen)
	return &Store{
		db:           db,
		hub:          hub,
		fishtanks:    &fishtankRepository{db: db},
		joinRequests: &joinRequestRepository{db: db, hub: hub},
		profiles:     &profileRepository{db: db},
	}
}

func (s *Store) Fishtanks() repository.FishtankRepository       { return s.fishtanks }
func (s *Store) JoinRequests() repository.JoinRequestRepository { return s.joinRequests }
func (s *Store) Profiles() repository.ProfileRepository         { return s.profiles }

func (s *Store) Close() error {
	return errors.Join(s.hub.Close(), s.db.Close())
}

// NewFishtankRepository, NewJoinRequestRepository and NewProfileRepository
// expose single repositories for callers that do not need the whole store.
func NewFishtankRepository(db *sql.DB) repository.FishtankRepository {
	return &fishtankRepository{db: db}
}

func NewJoinRequestRepository(db *sql.DB) repository.JoinRequestRepository {
	return &joinRequestRepository{db: db, hub: newChangeHub(nil)}
}

func NewProfileRepository(db *sql.DB) repository.ProfileRepository {
	return &profileRepository{db: db}
}

// withTx runs fn inside a transaction, committing on nil and rolling back otherwise.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w: %v", domain.ErrWriteFailed, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w: %v", domain.ErrWriteFailed, err)
	}
	return nil
}

// notifyChange queues a NOTIFY that is delivered when tx commits.
func notifyChange(ctx context.Context, tx *sql.Tx, fishtankID string) error {
	_, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, changeChannel, fishtankID)
	if err != nil {
		return fmt.Errorf("notify change: %w: %v", domain.ErrWriteFailed, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolate
}

func writeFailed(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, domain.ErrWriteFailed, err)
}
