package accesscore

import (
	"context"
	"time"
)

// startSweeper launches the background expiry sweep: stale pending
// two-factor enrollments and password history beyond the retention
// window. Reset tokens expire via their Redis TTL and need no sweep.
func (e *Engine) startSweeper() {
	ctx, cancel := context.WithCancel(context.Background())
	e.sweepCancel = cancel
	e.sweepDone = make(chan struct{})

	go func() {
		defer close(e.sweepDone)

		ticker := time.NewTicker(e.config.Sweep.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.sweepOnce(ctx)
			}
		}
	}()
}

func (e *Engine) sweepOnce(ctx context.Context) {
	now := e.now()

	pendingCutoff := now.Add(-e.config.TwoFactor.PendingTTL)
	if n, err := e.twoFactor.DeleteStalePending(ctx, pendingCutoff); err != nil {
		e.logger.Error().Err(err).Msg("stale pending enrollment sweep failed")
	} else if n > 0 {
		e.logger.Info().Int64("removed", n).Msg("swept stale pending enrollments")
	}

	if e.config.Retention.HistoryRetention > 0 {
		historyCutoff := now.Add(-e.config.Retention.HistoryRetention)
		if n, err := e.credentials.PruneHistoryBefore(ctx, historyCutoff); err != nil {
			e.logger.Error().Err(err).Msg("password history prune failed")
		} else if n > 0 {
			e.logger.Info().Int64("removed", n).Msg("pruned password history")
		}
	}
}
