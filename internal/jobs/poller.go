package jobs

import (
	"context"
	"time"
)

// Outcome is the final disposition of a poll loop.
type Outcome string

const (
	// OutcomeCompleted and OutcomeFailed mean a terminal status was observed.
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	// OutcomeAbandoned means the attempt budget ran out without a terminal
	// signal. It is reported separately from failure: the service never said
	// anything went wrong, we just stopped waiting.
	OutcomeAbandoned Outcome = "abandoned"
	// OutcomeCanceled means the loop's context was cancelled.
	OutcomeCanceled Outcome = "canceled"
)

// CheckFunc is one poll attempt. It must consult freshly read state, never a
// copy cached before the loop started, so a result written concurrently by a
// callback stops the loop instead of being resurrected with stale data.
// done=true ends the loop with the given outcome (OutcomeCompleted or
// OutcomeFailed); an error counts as a missed attempt, not a terminal result.
type CheckFunc func(ctx context.Context) (done bool, outcome Outcome, err error)

// Poller runs a bounded, fixed-cadence poll loop. It performs one check
// immediately and then one per interval until a terminal outcome, the attempt
// ceiling, or cancellation.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int

	// Attempts is incremented per check; exposed for tests that verify the
	// loop stops at the ceiling.
	Attempts int
}

func (p *Poller) Run(ctx context.Context, check CheckFunc) Outcome {
	interval := p.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 60
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		p.Attempts++
		done, outcome, err := check(ctx)
		if err == nil && done {
			return outcome
		}

		if p.Attempts >= maxAttempts {
			return OutcomeAbandoned
		}

		select {
		case <-ctx.Done():
			return OutcomeCanceled
		case <-ticker.C:
		}
	}
}
