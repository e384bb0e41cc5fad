package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fishtank-backend/internal/domain"
)

type profileRepository struct {
	db *sql.DB
}

func (r *profileRepository) GetProfile(ctx context.Context, userID string) (*domain.RequesterProfile, error) {
	p := &domain.RequesterProfile{}
	query := `SELECT id, display_name, avatar_url FROM users WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&p.UserID, &p.DisplayName, &p.AvatarURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *profileRepository) GetContact(ctx context.Context, userID string) (*domain.Contact, error) {
	c := &domain.Contact{}
	query := `SELECT id, email, COALESCE(push_token, '') FROM users WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&c.UserID, &c.Email, &c.PushToken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("contact %s: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
