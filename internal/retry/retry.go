// Package retry implements spec §7's propagation policy: locally
// recoverable errors (Transient, Timeout, RateLimited) are retried with
// exponential backoff capped at a max delay and jittered, while Cancelled
// and anything else classified non-retryable return immediately.
package retry

import (
	"context"

	"github.com/cenkalti/backoff"

	"github.com/luxfi/agentsync/agentsyncerr"
	"github.com/luxfi/agentsync/config"
)

const component = "retry"

// Do runs operation, retrying while agentsyncerr.Retryable(err) is true,
// up to maxAttempts total tries. The delay between attempts grows
// exponentially from cfg.InitialDelay, capped at cfg.MaxDelay, jittered
// by cfg.JitterFrac. A context cancellation or a non-retryable error
// return immediately without further attempts.
func Do(ctx context.Context, cfg config.Backoff, maxAttempts int, operation func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	b := backoff.NewExponentialBackOff()
	if cfg.InitialDelay > 0 {
		b.InitialInterval = cfg.InitialDelay
	}
	if cfg.MaxDelay > 0 {
		b.MaxInterval = cfg.MaxDelay
	}
	b.RandomizationFactor = cfg.JitterFrac
	b.MaxElapsedTime = 0 // bounded by maxAttempts, not elapsed wall time

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(agentsyncerr.New(component, agentsyncerr.Cancelled, "", "retry aborted", err))
		}
		err := operation()
		if err == nil {
			return nil
		}
		if !agentsyncerr.Retryable(err) || attempt >= maxAttempts {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx))
}
