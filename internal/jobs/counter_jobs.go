package jobs

import (
	"context"

	"fishtank-backend/internal/logger"
)

// ReconcileCounters recomputes fishtank pending and member counters from
// the join request and membership rows.
func (jr *JobRunner) ReconcileCounters() {
	jr.runWithRecovery("ReconcileCounters", func(ctx context.Context) {
		drifts, err := jr.services.Counters.ReconcileCounters(ctx)
		if err != nil {
			logger.Error("Counter reconciliation finished with errors", "fixed", len(drifts), "error", err)
			return
		}
		if len(drifts) > 0 {
			logger.Warn("Counter drift repaired", "fishtanks", len(drifts))
		}
	})
}
