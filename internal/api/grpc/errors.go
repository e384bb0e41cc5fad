package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"fishtank-backend/internal/domain"
	"fishtank-backend/internal/logger"
)

const alreadyHandledMsg = "join request already handled"

// toStatus maps service errors to gRPC status errors. Internal details are
// logged, not returned.
func toStatus(method string, err error) error {
	if err == nil {
		return nil
	}
	// statuses built by the handlers pass through as is; wrapped ones come
	// from a backend client and must not reach the caller
	if _, ok := err.(interface{ GRPCStatus() *status.Status }); ok {
		return err
	}

	var rerr *domain.ReconciliationError
	switch {
	case errors.As(err, &rerr):
		logger.Error("Resolution needs manual reconciliation", "method", method, "requestID", rerr.RequestID, "error", err)
		return status.Error(codes.Internal, "decision partially saved, manual reconciliation required")
	case errors.Is(err, domain.ErrWriteFailed):
		logger.Error("Write failed", "method", method, "error", err)
		return status.Error(codes.Internal, "failed to save changes")
	case errors.Is(err, domain.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrPermissionDenied):
		return status.Error(codes.PermissionDenied, "permission denied")
	case errors.Is(err, domain.ErrNotFound):
		if method == MethodResolveJoinRequest {
			return status.Error(codes.NotFound, alreadyHandledMsg)
		}
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		if method == MethodResolveJoinRequest {
			return status.Error(codes.FailedPrecondition, alreadyHandledMsg)
		}
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}
	logger.Error("Unexpected error", "method", method, "error", err)
	return status.Error(codes.Internal, "internal error")
}
