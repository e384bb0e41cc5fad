package grpc

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"fishtank-backend/internal/api/grpc/interceptor"
)

// NewServer builds the gRPC server with authentication, the join request
// service, health checks and reflection for grpcurl.
func NewServer(handler *JoinRequestHandler, auth *interceptor.AuthInterceptor) *grpc.Server {
	s := grpc.NewServer(
		grpc.UnaryInterceptor(auth.Unary()),
		grpc.StreamInterceptor(auth.Stream()),
	)
	RegisterJoinRequestServiceServer(s, handler)

	hs := health.NewServer()
	hs.SetServingStatus(JoinRequestServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	reflection.Register(s)
	return s
}
