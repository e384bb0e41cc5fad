// Package firestore stores fishtanks and join requests in Cloud Firestore.
//
// Collections: fishtanks, joinRequests, memberships (keyed by
// domain.MembershipID) and users. Every multi-document write runs in a
// Firestore transaction and counters move by server-side increments.
package firestore

import (
	"context"
	"errors"
	"fmt"

	fs "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"fishtank-backend/internal/domain"
	"fishtank-backend/internal/repository"
)

const (
	storeName = "firestore"

	colFishtanks    = "fishtanks"
	colJoinRequests = "joinRequests"
	colMemberships  = "memberships"
	colUsers        = "users"
)

type Store struct {
	client *fs.Client

	fishtanks    *fishtankRepository
	joinRequests *joinRequestRepository
	profiles     *profileRepository
}

// Open initializes a Firebase app for projectID and returns a store backed by
// its Firestore client. credentialsFile may be empty to use application
// default credentials or the emulator named by FIRESTORE_EMULATOR_HOST.
func Open(ctx context.Context, projectID, credentialsFile string) (*Store, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("open firestore client: %w", err)
	}
	return NewStore(client), nil
}

func NewStore(client *fs.Client) *Store {
	return &Store{
		client:       client,
		fishtanks:    &fishtankRepository{client: client},
		joinRequests: &joinRequestRepository{client: client},
		profiles:     &profileRepository{client: client},
	}
}

func (s *Store) Fishtanks() repository.FishtankRepository       { return s.fishtanks }
func (s *Store) JoinRequests() repository.JoinRequestRepository { return s.joinRequests }
func (s *Store) Profiles() repository.ProfileRepository         { return s.profiles }
func (s *Store) Close() error                                   { return s.client.Close() }

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func isAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}

// classify keeps domain errors returned from inside a transaction and marks
// everything else as a failed write.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, target := range []error{
		domain.ErrNotFound, domain.ErrInvalidState, domain.ErrWriteFailed,
		domain.ErrPermissionDenied, domain.ErrInvalidArgument,
	} {
		if errors.Is(err, target) {
			return err
		}
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrWriteFailed, err)
}
