package executor

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// TickStats summarizes one sweep pass over the due set.
type TickStats struct {
	Due        int
	Sent       int
	Deferred   int
	Blocked    int
	Completed  int
	Conflicts  int
	SendFailed int
	Skipped    int
	Failed     int
}

// Tick processes every lead whose next action is due. Leads run
// concurrently on a bounded pool; one lead's trouble never aborts the
// batch. Safe to call again before the previous call finished: the
// per-lead locks make the overlap a no-op.
func (e *Executor) Tick(ctx context.Context) (TickStats, error) {
	now := e.now()
	due, err := e.store.FindDue(ctx, now, e.batchLimit)
	if err != nil {
		return TickStats{}, err
	}

	stats := TickStats{Due: len(due)}
	if len(due) == 0 {
		return stats, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for _, lead := range due {
		leadID := lead.ID
		g.Go(func() error {
			outcome, err := e.ExecuteLead(gctx, leadID, TriggerSweep)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, ErrAlreadyRunning):
				stats.Skipped++
			case err != nil:
				stats.Failed++
				e.log.Error("sweep: lead run failed", "leadId", leadID, "error", err)
			default:
				stats.count(outcome)
			}
			return nil
		})
	}

	_ = g.Wait()

	e.log.Info("sweep tick finished",
		"due", stats.Due,
		"sent", stats.Sent,
		"deferred", stats.Deferred,
		"blocked", stats.Blocked,
		"completed", stats.Completed,
		"conflicts", stats.Conflicts,
		"sendFailed", stats.SendFailed,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)
	return stats, nil
}

func (s *TickStats) count(outcome RunOutcome) {
	switch outcome {
	case OutcomeSent:
		s.Sent++
	case OutcomeDeferred:
		s.Deferred++
	case OutcomeBlocked:
		s.Blocked++
	case OutcomeCompleted:
		s.Completed++
	case OutcomeConflict:
		s.Conflicts++
	case OutcomeSendFailed:
		s.SendFailed++
	}
}
