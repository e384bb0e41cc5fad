package service_test

import (
	"context"
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"fishtank-backend/internal/domain"
	"fishtank-backend/internal/repository/memory"
	"fishtank-backend/internal/service"
)

// After any sequence of submissions and resolutions the stored counters
// match the rows, and each accepted requester has exactly one membership.
func TestCountersMatchRows_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		store := memory.NewStore()
		c := service.NewJoinRequestCoordinator(store.Fishtanks(), store.JoinRequests(), store.Profiles(),
			service.CoordinatorOptions{RetryDelay: -1})

		f, err := c.CreateFishtank(ctx, owner, "Reef", "", false)
		if err != nil {
			rt.Fatalf("create fishtank: %v", err)
		}

		numUsers := rapid.IntRange(1, 6).Draw(rt, "numUsers")
		var requestIDs []string
		accepted := map[string]bool{}

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			if len(requestIDs) == 0 || rapid.Bool().Draw(rt, fmt.Sprintf("submit_%d", i)) {
				user := fmt.Sprintf("user-%d", rapid.IntRange(0, numUsers-1).Draw(rt, fmt.Sprintf("user_%d", i)))
				req, err := c.Submit(ctx, domain.Actor{UserID: user}, f.ID, "")
				if err == nil {
					requestIDs = append(requestIDs, req.ID)
				} else if !domain.IsAlreadyHandled(err) {
					rt.Fatalf("submit: %v", err)
				}
				continue
			}

			id := rapid.SampledFrom(requestIDs).Draw(rt, fmt.Sprintf("request_%d", i))
			decision := rapid.SampledFrom([]domain.Decision{domain.DecisionAccept, domain.DecisionReject}).Draw(rt, fmt.Sprintf("decision_%d", i))
			res, err := c.Resolve(ctx, owner, id, decision)
			if err != nil {
				if !domain.IsAlreadyHandled(err) {
					rt.Fatalf("resolve: %v", err)
				}
				continue
			}
			if decision == domain.DecisionAccept {
				if accepted[res.Request.RequesterID] {
					rt.Fatalf("requester %s accepted twice", res.Request.RequesterID)
				}
				accepted[res.Request.RequesterID] = true
			}

			got, err := store.Fishtanks().GetByID(ctx, f.ID)
			if err != nil {
				rt.Fatalf("get fishtank: %v", err)
			}
			pending, members, err := store.Fishtanks().CountRows(ctx, f.ID)
			if err != nil {
				rt.Fatalf("count rows: %v", err)
			}
			if got.PendingCount != pending {
				rt.Fatalf("pendingCount %d, pending rows %d", got.PendingCount, pending)
			}
			if got.MemberCount != members || members != int64(len(accepted))+1 {
				rt.Fatalf("memberCount %d, membership rows %d, accepted %d", got.MemberCount, members, len(accepted))
			}
		}
	})
}
