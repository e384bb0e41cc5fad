package firestore

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	fs "cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fishtank-backend/internal/domain"
	"fishtank-backend/internal/repository"
)

// newEmulatorStore returns a store against the Firestore emulator, skipping
// the test when FIRESTORE_EMULATOR_HOST is not set.
func newEmulatorStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := fs.NewClient(context.Background(), "fishtank-test")
	require.NoError(t, err)
	s := NewStore(client)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedTank(t *testing.T, s *Store) *domain.Fishtank {
	t.Helper()
	f := &domain.Fishtank{ID: "tank-" + uuid.NewString(), Name: "Reef", OwnerID: "owner-1", MemberCount: 1}
	owner := &domain.Membership{UserID: "owner-1", Role: domain.MemberRoleOwner, JoinedAt: time.Now().UTC()}
	require.NoError(t, s.Fishtanks().Create(context.Background(), f, owner))
	return f
}

func TestResolveAcceptAndReject(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()
	f := seedTank(t, s)

	r1 := &domain.JoinRequest{FishtankID: f.ID, RequesterID: "user-1"}
	r2 := &domain.JoinRequest{FishtankID: f.ID, RequesterID: "user-2"}
	require.NoError(t, s.JoinRequests().Create(ctx, r1))
	require.NoError(t, s.JoinRequests().Create(ctx, r2))

	dup := &domain.JoinRequest{FishtankID: f.ID, RequesterID: "user-1"}
	assert.ErrorIs(t, s.JoinRequests().Create(ctx, dup), domain.ErrInvalidState)

	res, err := s.JoinRequests().Resolve(ctx, repository.ResolveParams{
		RequestID: r1.ID, Decision: domain.DecisionAccept, ActorID: "owner-1", At: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.JoinRequestStatusAccepted, res.Request.Status)
	require.NotNil(t, res.Membership)

	_, err = s.JoinRequests().Resolve(ctx, repository.ResolveParams{
		RequestID: r2.ID, Decision: domain.DecisionReject, ActorID: "owner-1", At: time.Now().UTC(),
	})
	require.NoError(t, err)

	_, err = s.JoinRequests().Resolve(ctx, repository.ResolveParams{
		RequestID: r1.ID, Decision: domain.DecisionReject, ActorID: "owner-1", At: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	got, err := s.Fishtanks().GetByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.MemberCount)
	assert.Equal(t, int64(0), got.PendingCount)

	_, err = s.Fishtanks().GetMembership(ctx, f.ID, "user-1")
	assert.NoError(t, err)
	_, err = s.Fishtanks().GetMembership(ctx, f.ID, "user-2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolveConcurrentSingleWinner(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()
	f := seedTank(t, s)

	req := &domain.JoinRequest{FishtankID: f.ID, RequesterID: "user-1"}
	require.NoError(t, s.JoinRequests().Create(ctx, req))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.JoinRequests().Resolve(ctx, repository.ResolveParams{
				RequestID: req.ID, Decision: domain.DecisionAccept, ActorID: "owner-1", At: time.Now().UTC(),
			})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	got, err := s.Fishtanks().GetByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.MemberCount)
	assert.Equal(t, int64(0), got.PendingCount)
}

func TestWatchPendingEmitsFullList(t *testing.T) {
	s := newEmulatorStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := seedTank(t, s)

	ch, err := s.JoinRequests().WatchPending(ctx, f.ID)
	require.NoError(t, err)

	first := <-ch
	require.NoError(t, first.Err)
	assert.Empty(t, first.Requests)

	require.NoError(t, s.JoinRequests().Create(ctx, &domain.JoinRequest{FishtankID: f.ID, RequesterID: "user-1"}))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case snap := <-ch:
			require.NoError(t, snap.Err)
			if len(snap.Requests) == 1 {
				assert.Equal(t, "user-1", snap.Requests[0].RequesterID)
				return
			}
		case <-deadline:
			t.Fatal("no snapshot with the new request")
		}
	}
}

func TestExistingMemberIsRefused(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()
	f := seedTank(t, s)

	assert.ErrorIs(t, s.JoinRequests().Create(ctx, &domain.JoinRequest{FishtankID: f.ID, RequesterID: "owner-1"}), domain.ErrInvalidState)

	got, err := s.Fishtanks().GetByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.PendingCount)
}

func TestRecountCountersDuringResolves(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()
	f := seedTank(t, s)

	var ids []string
	for _, u := range []string{"user-1", "user-2", "user-3", "user-4"} {
		req := &domain.JoinRequest{FishtankID: f.ID, RequesterID: u}
		require.NoError(t, s.JoinRequests().Create(ctx, req))
		ids = append(ids, req.ID)
	}
	_, err := s.client.Collection(colFishtanks).Doc(f.ID).Update(ctx, []fs.Update{{Path: "pendingCount", Value: 9}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := s.JoinRequests().Resolve(ctx, repository.ResolveParams{
				RequestID: id, Decision: domain.DecisionAccept, ActorID: "owner-1", At: time.Now().UTC(),
			})
			assert.NoError(t, err)
		}(id)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := s.Fishtanks().RecountCounters(ctx, f.ID)
		assert.NoError(t, err)
	}()
	wg.Wait()

	// the seeded drift is repaired whichever side ran first, and no resolve is lost
	pending, members, err := s.Fishtanks().CountRows(ctx, f.ID)
	require.NoError(t, err)
	got, err := s.Fishtanks().GetByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, pending, got.PendingCount)
	assert.Equal(t, members, got.MemberCount)
	assert.Equal(t, int64(5), got.MemberCount)

	drift, err := s.Fishtanks().RecountCounters(ctx, f.ID)
	require.NoError(t, err)
	assert.Nil(t, drift)
}
