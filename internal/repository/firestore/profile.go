package firestore

import (
	"context"
	"fmt"

	fs "cloud.google.com/go/firestore"

	"fishtank-backend/internal/domain"
)

type profileRepository struct {
	client *fs.Client
}

// userDoc is the users collection layout. Profiles and contacts are two views of it.
type userDoc struct {
	DisplayName string `firestore:"displayName"`
	AvatarURL   string `firestore:"avatarUrl"`
	Email       string `firestore:"email"`
	PushToken   string `firestore:"pushToken"`
}

func (r *profileRepository) get(ctx context.Context, userID string) (*userDoc, error) {
	snap, err := r.client.Collection(colUsers).Doc(userID).Get(ctx)
	if isNotFound(err) {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	u := &userDoc{}
	if err := snap.DataTo(u); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", userID, err)
	}
	return u, nil
}

func (r *profileRepository) GetProfile(ctx context.Context, userID string) (*domain.RequesterProfile, error) {
	u, err := r.get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &domain.RequesterProfile{UserID: userID, DisplayName: u.DisplayName, AvatarURL: u.AvatarURL}, nil
}

func (r *profileRepository) GetContact(ctx context.Context, userID string) (*domain.Contact, error) {
	u, err := r.get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &domain.Contact{UserID: userID, Email: u.Email, PushToken: u.PushToken}, nil
}

// PutUser writes a user document. Used for seeding and tests.
func (s *Store) PutUser(ctx context.Context, p domain.RequesterProfile, c domain.Contact) error {
	_, err := s.client.Collection(colUsers).Doc(p.UserID).Set(ctx, userDoc{
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		Email:       c.Email,
		PushToken:   c.PushToken,
	})
	return err
}
