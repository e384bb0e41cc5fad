package grpc

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"fishtank-backend/internal/domain"
	"fishtank-backend/internal/logger"
	"fishtank-backend/internal/service"
)

type JoinRequestHandler struct {
	UnimplementedJoinRequestServiceServer
	svc service.JoinRequestCoordinator
}

func NewJoinRequestHandler(svc service.JoinRequestCoordinator) *JoinRequestHandler {
	return &JoinRequestHandler{svc: svc}
}

func (h *JoinRequestHandler) CreateFishtank(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	f, err := h.svc.CreateFishtank(ctx, actor, stringField(req, "name"), stringField(req, "description"), boolField(req, "is_private"))
	if err != nil {
		return nil, toStatus(MethodCreateFishtank, err)
	}
	return MapFishtankToProto(f)
}

func (h *JoinRequestHandler) SubmitJoinRequest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	jr, err := h.svc.Submit(ctx, actor, stringField(req, "fishtank_id"), stringField(req, "note"))
	if err != nil {
		return nil, toStatus(MethodSubmitJoinRequest, err)
	}
	return MapJoinRequestToProto(jr)
}

func (h *JoinRequestHandler) ListPendingJoinRequests(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	fishtankID := stringField(req, "fishtank_id")
	if err := h.svc.Authorize(ctx, actor, fishtankID); err != nil {
		return nil, toStatus(MethodListPendingJoinRequests, err)
	}
	list, err := h.svc.ListPending(ctx, fishtankID)
	if err != nil {
		return nil, toStatus(MethodListPendingJoinRequests, err)
	}
	return MapPendingToProto(list)
}

func (h *JoinRequestHandler) ResolveJoinRequest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	decision, err := domain.ParseDecision(stringField(req, "decision"))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "decision must be accept or reject")
	}
	res, err := h.svc.Resolve(ctx, actor, stringField(req, "request_id"), decision)
	if err != nil {
		return nil, toStatus(MethodResolveJoinRequest, err)
	}
	return MapResolutionToProto(res)
}

// WatchPendingJoinRequests sends the full enriched pending list on open and
// after every change until the client goes away.
func (h *JoinRequestHandler) WatchPendingJoinRequests(req *structpb.Struct, stream JoinRequestService_WatchPendingJoinRequestsServer) error {
	ctx := stream.Context()
	actor, err := actorFromContext(ctx)
	if err != nil {
		return err
	}
	fishtankID := stringField(req, "fishtank_id")
	if err := h.svc.Authorize(ctx, actor, fishtankID); err != nil {
		return toStatus(MethodWatchPendingJoinRequests, err)
	}

	updates, err := h.svc.Subscribe(ctx, fishtankID)
	if err != nil {
		return toStatus(MethodWatchPendingJoinRequests, err)
	}
	for update := range updates {
		if update.Err != nil {
			logger.Warn("Pending stream ended", "fishtankID", fishtankID, "error", update.Err)
			return status.Error(codes.Unavailable, "pending subscription failed, resubscribe")
		}
		msg, err := MapPendingToProto(update.Requests)
		if err != nil {
			return status.Error(codes.Internal, "internal error")
		}
		if err := stream.Send(msg); err != nil {
			return err
		}
	}
	return status.FromContextError(ctx.Err()).Err()
}
