package grpc

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"fishtank-backend/internal/domain"
)

// UserIDKey is the metadata header the auth interceptor sets.
const UserIDKey = "user-id"

// GetUserIDFromContext extracts the user ID from the gRPC metadata.
// It expects a header named "user-id".
func GetUserIDFromContext(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", status.Errorf(codes.Unauthenticated, "metadata is not provided")
	}

	userIDs := md.Get(UserIDKey)
	if len(userIDs) == 0 || userIDs[0] == "" {
		return "", status.Errorf(codes.Unauthenticated, "user_id is not provided in metadata")
	}
	return userIDs[0], nil
}

// actorFromContext returns the authenticated caller as a domain actor.
func actorFromContext(ctx context.Context) (domain.Actor, error) {
	id, err := GetUserIDFromContext(ctx)
	if err != nil {
		return domain.Actor{}, err
	}
	return domain.Actor{UserID: id}, nil
}
