package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fishtank-backend/internal/domain"
	"fishtank-backend/internal/repository/memory"
)

func TestReconcileCounters(t *testing.T) {
	store := memory.NewStore()
	c := newCoordinator(store)
	ctx := context.Background()

	clean, _ := setupScenario(t, c, store, 2, "user-1")
	drifted, _ := setupScenario(t, c, store, 3, "user-2", "user-3")
	store.SetCounters(drifted.ID, 5, 1)

	drifts, err := c.ReconcileCounters(ctx)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, domain.CounterDrift{
		FishtankID:    drifted.ID,
		StoredPending: 5,
		ActualPending: 2,
		StoredMembers: 1,
		ActualMembers: 3,
	}, drifts[0])

	members, pending := counters(t, store, drifted.ID)
	assert.Equal(t, int64(3), members)
	assert.Equal(t, int64(2), pending)

	members, pending = counters(t, store, clean.ID)
	assert.Equal(t, int64(2), members)
	assert.Equal(t, int64(1), pending)

	drifts, err = c.ReconcileCounters(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)
}

func TestReconcileCounters_DuringResolves(t *testing.T) {
	store := memory.NewStore()
	c := newCoordinator(store)
	ctx := context.Background()

	var requesters []string
	for i := 0; i < 40; i++ {
		requesters = append(requesters, fmt.Sprintf("user-%d", i))
	}
	f, reqs := setupScenario(t, c, store, 1, requesters...)
	store.SetCounters(f.ID, 77, 9)

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			decision := domain.DecisionReject
			if i%4 == 0 {
				decision = domain.DecisionAccept
			}
			_, err := c.Resolve(ctx, owner, id, decision)
			assert.NoError(t, err)
		}(i, req.ID)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			_, err := c.ReconcileCounters(ctx)
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	pending, rowMembers, err := store.Fishtanks().CountRows(ctx, f.ID)
	require.NoError(t, err)
	members, stored := counters(t, store, f.ID)
	assert.Equal(t, int64(0), pending)
	assert.Equal(t, pending, stored)
	assert.Equal(t, int64(11), rowMembers)
	assert.Equal(t, rowMembers, members)
}
