package interceptor

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"fishtank-backend/internal/config"
	"fishtank-backend/internal/logger"
	"fishtank-backend/internal/security"
)

const userIDHeader = "user-id"

type AuthInterceptor struct {
	verifier security.Verifier
}

func NewAuthInterceptor(v security.Verifier) *AuthInterceptor {
	return &AuthInterceptor{verifier: v}
}

// Unary returns a server interceptor function to authenticate unary RPCs
func (i *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		newCtx, err := i.authenticate(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(newCtx, req)
	}
}

// Stream returns a server interceptor function to authenticate streaming RPCs
func (i *AuthInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		newCtx, err := i.authenticate(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &authenticatedStream{ServerStream: ss, ctx: newCtx})
	}
}

type authenticatedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authenticatedStream) Context() context.Context {
	return s.ctx
}

func (i *AuthInterceptor) authenticate(ctx context.Context, method string) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		md = metadata.New(nil)
	} else {
		md = md.Copy()
	}
	// never trust a client supplied user id
	md.Delete(userIDHeader)

	// Public endpoint - skip auth
	if config.GetSecurityLevel(method) == config.SecurityPublic {
		return metadata.NewIncomingContext(ctx, md), nil
	}

	token, err := extractToken(md)
	if err != nil {
		return nil, err
	}

	id, err := i.verifier.Verify(ctx, token)
	if err != nil {
		logger.Debug("Token rejected", "method", method, "error", err)
		if errors.Is(err, security.ErrExpiredToken) {
			return nil, status.Error(codes.Unauthenticated, "token has expired")
		}
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	md.Set(userIDHeader, id.UserID)
	return metadata.NewIncomingContext(ctx, md), nil
}

func extractToken(md metadata.MD) (string, error) {
	authHeader := md.Get("authorization")
	if len(authHeader) == 0 || authHeader[0] == "" {
		return "", status.Error(codes.Unauthenticated, "authorization token is not provided")
	}
	return security.BearerToken(authHeader[0]), nil
}
