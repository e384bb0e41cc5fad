package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Messages of fishtank.v1.JoinRequestService are google.protobuf.Struct
// values whose field names match the JSON names of the domain types.

const (
	JoinRequestServiceName = "fishtank.v1.JoinRequestService"

	MethodCreateFishtank           = "/" + JoinRequestServiceName + "/CreateFishtank"
	MethodSubmitJoinRequest        = "/" + JoinRequestServiceName + "/SubmitJoinRequest"
	MethodListPendingJoinRequests  = "/" + JoinRequestServiceName + "/ListPendingJoinRequests"
	MethodResolveJoinRequest       = "/" + JoinRequestServiceName + "/ResolveJoinRequest"
	MethodWatchPendingJoinRequests = "/" + JoinRequestServiceName + "/WatchPendingJoinRequests"
)

type JoinRequestServiceServer interface {
	CreateFishtank(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitJoinRequest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListPendingJoinRequests(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResolveJoinRequest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WatchPendingJoinRequests(*structpb.Struct, JoinRequestService_WatchPendingJoinRequestsServer) error
}

type JoinRequestService_WatchPendingJoinRequestsServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type watchPendingServer struct {
	grpc.ServerStream
}

func (x *watchPendingServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

func RegisterJoinRequestServiceServer(s grpc.ServiceRegistrar, srv JoinRequestServiceServer) {
	s.RegisterService(&JoinRequestService_ServiceDesc, srv)
}

func unaryHandler(method string, call func(JoinRequestServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(JoinRequestServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(JoinRequestServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchPendingHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(JoinRequestServiceServer).WatchPendingJoinRequests(in, &watchPendingServer{stream})
}

var JoinRequestService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: JoinRequestServiceName,
	HandlerType: (*JoinRequestServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateFishtank",
			Handler: unaryHandler(MethodCreateFishtank, func(s JoinRequestServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.CreateFishtank(ctx, in)
			}),
		},
		{
			MethodName: "SubmitJoinRequest",
			Handler: unaryHandler(MethodSubmitJoinRequest, func(s JoinRequestServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.SubmitJoinRequest(ctx, in)
			}),
		},
		{
			MethodName: "ListPendingJoinRequests",
			Handler: unaryHandler(MethodListPendingJoinRequests, func(s JoinRequestServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.ListPendingJoinRequests(ctx, in)
			}),
		},
		{
			MethodName: "ResolveJoinRequest",
			Handler: unaryHandler(MethodResolveJoinRequest, func(s JoinRequestServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.ResolveJoinRequest(ctx, in)
			}),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchPendingJoinRequests",
			Handler:       watchPendingHandler,
			ServerStreams: true,
		},
	},
	Metadata: "fishtank/v1/join_request.proto",
}

// JoinRequestServiceClient is the client side of JoinRequestServiceServer.
type JoinRequestServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewJoinRequestServiceClient(cc grpc.ClientConnInterface) *JoinRequestServiceClient {
	return &JoinRequestServiceClient{cc: cc}
}

func (c *JoinRequestServiceClient) call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *JoinRequestServiceClient) CreateFishtank(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, MethodCreateFishtank, in, opts...)
}

func (c *JoinRequestServiceClient) SubmitJoinRequest(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, MethodSubmitJoinRequest, in, opts...)
}

func (c *JoinRequestServiceClient) ListPendingJoinRequests(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, MethodListPendingJoinRequests, in, opts...)
}

func (c *JoinRequestServiceClient) ResolveJoinRequest(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, MethodResolveJoinRequest, in, opts...)
}

// WatchPendingJoinRequestsClient receives the pending list updates.
type WatchPendingJoinRequestsClient interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type watchPendingClient struct {
	grpc.ClientStream
}

func (x *watchPendingClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *JoinRequestServiceClient) WatchPendingJoinRequests(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (WatchPendingJoinRequestsClient, error) {
	stream, err := c.cc.NewStream(ctx, &JoinRequestService_ServiceDesc.Streams[0], MethodWatchPendingJoinRequests, opts...)
	if err != nil {
		return nil, err
	}
	x := &watchPendingClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// UnimplementedJoinRequestServiceServer can be embedded for forward compatibility.
type UnimplementedJoinRequestServiceServer struct{}

func (UnimplementedJoinRequestServiceServer) CreateFishtank(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateFishtank not implemented")
}
func (UnimplementedJoinRequestServiceServer) SubmitJoinRequest(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method SubmitJoinRequest not implemented")
}
func (UnimplementedJoinRequestServiceServer) ListPendingJoinRequests(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListPendingJoinRequests not implemented")
}
func (UnimplementedJoinRequestServiceServer) ResolveJoinRequest(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ResolveJoinRequest not implemented")
}
func (UnimplementedJoinRequestServiceServer) WatchPendingJoinRequests(*structpb.Struct, JoinRequestService_WatchPendingJoinRequestsServer) error {
	return status.Error(codes.Unimplemented, "method WatchPendingJoinRequests not implemented")
}
