package service

import (
	"context"
	"errors"

	"fishtank-backend/internal/domain"
	"fishtank-backend/internal/logger"
)

func (c *Coordinator) ReconcileCounters(ctx context.Context) ([]domain.CounterDrift, error) {
	logger.EnterMethod("Coordinator.ReconcileCounters")

	ids, err := c.fishtanks.ListIDs(ctx)
	if err != nil {
		logger.ExitMethodWithError("Coordinator.ReconcileCounters", err)
		return nil, err
	}

	var drifts []domain.CounterDrift
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		drift, err := c.reconcileOne(ctx, id)
		if err != nil {
			logger.Error("Counter reconciliation failed", "fishtankID", id, "error", err)
			errs = append(errs, err)
			continue
		}
		if drift != nil {
			drifts = append(drifts, *drift)
		}
	}

	err = errors.Join(errs...)
	if err != nil {
		logger.ExitMethodWithError("Coordinator.ReconcileCounters", err, "checked", len(ids), "fixed", len(drifts))
		return drifts, err
	}
	logger.ExitMethod("Coordinator.ReconcileCounters", "checked", len(ids), "fixed", len(drifts))
	return drifts, nil
}

// reconcileOne returns nil when the fishtank's counters already match its rows.
// The recount and the rewrite happen in one store unit so a concurrent resolve
// cannot land between them.
func (c *Coordinator) reconcileOne(ctx context.Context, fishtankID string) (*domain.CounterDrift, error) {
	logger.StoreCall("fishtanks", "RecountCounters", fishtankID)
	drift, err := c.fishtanks.RecountCounters(ctx, fishtankID)
	if err != nil {
		return nil, err
	}
	if drift == nil {
		return nil, nil
	}
	logger.Warn("Fishtank counters repaired",
		"fishtankID", fishtankID,
		"pending", drift.StoredPending, "actualPending", drift.ActualPending,
		"members", drift.StoredMembers, "actualMembers", drift.ActualMembers)
	return drift, nil
}
