package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"fishtank-backend/internal/domain"
	"fishtank-backend/internal/logger"
)

// enrich joins each request with its requester profile and fishtank summary.
// Lookups run concurrently; the result keeps the order of reqs and is only
// returned once every lookup has finished.
func (c *Coordinator) enrich(ctx context.Context, reqs []domain.JoinRequest) ([]domain.PendingJoinRequest, error) {
	out := make([]domain.PendingJoinRequest, len(reqs))
	if len(reqs) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.EnrichConcurrency)

	for i := range reqs {
		out[i].Request = reqs[i]

		g.Go(func() error {
			p, err := c.profiles.GetProfile(gctx, reqs[i].RequesterID)
			if errors.Is(err, domain.ErrNotFound) {
				// deleted accounts still show up, just without a name
				logger.Warn("Requester profile missing", "userID", reqs[i].RequesterID, "requestID", reqs[i].ID)
				out[i].Requester = domain.RequesterProfile{UserID: reqs[i].RequesterID}
				return nil
			}
			if err != nil {
				return fmt.Errorf("load requester %s: %w", reqs[i].RequesterID, err)
			}
			out[i].Requester = *p
			return nil
		})

		g.Go(func() error {
			f, err := c.fishtanks.GetByID(gctx, reqs[i].FishtankID)
			if err != nil {
				return fmt.Errorf("load fishtank %s: %w", reqs[i].FishtankID, err)
			}
			out[i].Fishtank = f.Summary()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
