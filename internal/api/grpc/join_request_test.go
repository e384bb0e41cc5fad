package grpc_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	api "fishtank-backend/internal/api/grpc"
	"fishtank-backend/internal/api/grpc/interceptor"
	"fishtank-backend/internal/domain"
	"fishtank-backend/internal/repository/memory"
	"fishtank-backend/internal/security"
	"fishtank-backend/internal/service"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	client *api.JoinRequestServiceClient
	conn   *grpc.ClientConn
	tokens security.TokenManager
	store  *memory.Store
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	for _, id := range []string{"owner-1", "user-1", "user-2"} {
		store.PutUser(domain.RequesterProfile{UserID: id, DisplayName: "name-" + id}, domain.Contact{})
	}
	coord := service.NewJoinRequestCoordinator(store.Fishtanks(), store.JoinRequests(), store.Profiles(), service.CoordinatorOptions{})
	tokens := security.NewTokenManager(testSecret)

	lis := bufconn.Listen(1 << 20)
	srv := api.NewServer(api.NewJoinRequestHandler(coord), interceptor.NewAuthInterceptor(tokens))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &testEnv{client: api.NewJoinRequestServiceClient(conn), conn: conn, tokens: tokens, store: store}
}

func (e *testEnv) as(t *testing.T, userID string) context.Context {
	t.Helper()
	token, err := e.tokens.GenerateAccessToken(userID, "")
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func (e *testEnv) createTank(t *testing.T) string {
	t.Helper()
	out, err := e.client.CreateFishtank(e.as(t, "owner-1"), mustStruct(t, map[string]any{"name": "Reef", "is_private": true}))
	require.NoError(t, err)
	f := out.GetFields()["fishtank"].GetStructValue()
	assert.Equal(t, "owner-1", f.GetFields()["owner_id"].GetStringValue())
	assert.True(t, f.GetFields()["is_private"].GetBoolValue())
	assert.Equal(t, float64(1), f.GetFields()["member_count"].GetNumberValue())
	return f.GetFields()["id"].GetStringValue()
}

func (e *testEnv) submit(t *testing.T, userID, fishtankID string) string {
	t.Helper()
	out, err := e.client.SubmitJoinRequest(e.as(t, userID), mustStruct(t, map[string]any{"fishtank_id": fishtankID, "note": "hi"}))
	require.NoError(t, err)
	return out.GetFields()["join_request"].GetStructValue().GetFields()["id"].GetStringValue()
}

func TestJoinRequestService_Flow(t *testing.T) {
	e := setup(t)
	tank := e.createTank(t)
	r1 := e.submit(t, "user-1", tank)
	e.submit(t, "user-2", tank)

	list, err := e.client.ListPendingJoinRequests(e.as(t, "owner-1"), mustStruct(t, map[string]any{"fishtank_id": tank}))
	require.NoError(t, err)
	reqs := list.GetFields()["requests"].GetListValue().GetValues()
	require.Len(t, reqs, 2)
	first := reqs[0].GetStructValue().GetFields()
	assert.Equal(t, "name-user-2", first["requester"].GetStructValue().GetFields()["display_name"].GetStringValue())
	assert.Equal(t, "Reef", first["fishtank"].GetStructValue().GetFields()["name"].GetStringValue())

	out, err := e.client.ResolveJoinRequest(e.as(t, "owner-1"), mustStruct(t, map[string]any{"request_id": r1, "decision": "accept"}))
	require.NoError(t, err)
	res := out.GetFields()["resolution"].GetStructValue().GetFields()
	assert.Equal(t, "accepted", res["request"].GetStructValue().GetFields()["status"].GetStringValue())
	assert.NotNil(t, res["membership"].GetStructValue())

	_, err = e.client.ResolveJoinRequest(e.as(t, "owner-1"), mustStruct(t, map[string]any{"request_id": r1, "decision": "reject"}))
	st, _ := status.FromError(err)
	assert.Equal(t, codes.FailedPrecondition, st.Code())
	assert.Equal(t, "join request already handled", st.Message())

	_, err = e.client.ResolveJoinRequest(e.as(t, "owner-1"), mustStruct(t, map[string]any{"request_id": "nope", "decision": "accept"}))
	assert.Equal(t, codes.NotFound, status.Code(err))

	f, err := e.store.Fishtanks().GetByID(context.Background(), tank)
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.MemberCount)
	assert.Equal(t, int64(1), f.PendingCount)
}

func TestJoinRequestService_Errors(t *testing.T) {
	e := setup(t)
	tank := e.createTank(t)
	r1 := e.submit(t, "user-1", tank)

	_, err := e.client.ResolveJoinRequest(e.as(t, "user-2"), mustStruct(t, map[string]any{"request_id": r1, "decision": "accept"}))
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = e.client.ResolveJoinRequest(e.as(t, "owner-1"), mustStruct(t, map[string]any{"request_id": r1, "decision": "maybe"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = e.client.SubmitJoinRequest(e.as(t, "user-1"), mustStruct(t, map[string]any{"fishtank_id": tank}))
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = e.client.ListPendingJoinRequests(e.as(t, "user-1"), mustStruct(t, map[string]any{"fishtank_id": tank}))
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = e.client.ListPendingJoinRequests(context.Background(), mustStruct(t, map[string]any{"fishtank_id": tank}))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	bad := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer garbage")
	_, err = e.client.ListPendingJoinRequests(bad, mustStruct(t, map[string]any{"fishtank_id": tank}))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	// a spoofed user-id header is ignored
	spoofed := metadata.AppendToOutgoingContext(context.Background(), "user-id", "owner-1")
	_, err = e.client.ListPendingJoinRequests(spoofed, mustStruct(t, map[string]any{"fishtank_id": tank}))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestJoinRequestService_Watch(t *testing.T) {
	e := setup(t)
	tank := e.createTank(t)

	ctx, cancel := context.WithCancel(e.as(t, "owner-1"))
	defer cancel()
	stream, err := e.client.WatchPendingJoinRequests(ctx, mustStruct(t, map[string]any{"fishtank_id": tank}))
	require.NoError(t, err)

	msg, err := stream.Recv()
	require.NoError(t, err)
	assert.Empty(t, msg.GetFields()["requests"].GetListValue().GetValues())

	r1 := e.submit(t, "user-1", tank)
	msg, err = stream.Recv()
	require.NoError(t, err)
	reqs := msg.GetFields()["requests"].GetListValue().GetValues()
	require.Len(t, reqs, 1)
	got := reqs[0].GetStructValue().GetFields()["request"].GetStructValue().GetFields()["id"].GetStringValue()
	assert.Equal(t, r1, got)

	_, err = e.client.ResolveJoinRequest(e.as(t, "owner-1"), mustStruct(t, map[string]any{"request_id": r1, "decision": "reject"}))
	require.NoError(t, err)
	msg, err = stream.Recv()
	require.NoError(t, err)
	assert.Empty(t, msg.GetFields()["requests"].GetListValue().GetValues())
}

func TestJoinRequestService_WatchRequiresOwner(t *testing.T) {
	e := setup(t)
	tank := e.createTank(t)

	stream, err := e.client.WatchPendingJoinRequests(e.as(t, "user-1"), mustStruct(t, map[string]any{"fishtank_id": tank}))
	require.NoError(t, err)
	_, err = stream.Recv()
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestHealthIsPublic(t *testing.T) {
	e := setup(t)
	resp, err := healthpb.NewHealthClient(e.conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
