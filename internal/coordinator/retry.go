// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

package coordinator

import (
	"context"
	"log/slog"
	"time"
)

// RetryPolicy bounds retries of vector index calls. Retrying is safe because
// index add is an upsert and removal by filter is a no-op when the records
// are already absent.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// Backoff is the delay before the first retry; it doubles per retry.
	Backoff time.Duration
}

// DefaultRetryPolicy retries transient index failures twice.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Backoff: 200 * time.Millisecond}

func (p RetryPolicy) normalize() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.Backoff <= 0 {
		p.Backoff = DefaultRetryPolicy.Backoff
	}
	return p
}

// withRetry runs fn up to p.Attempts times with exponential backoff,
// respecting context cancellation between tries.
func withRetry(ctx context.Context, p RetryPolicy, op string, fn func(context.Context) error) error {
	p = p.normalize()

	var err error
	delay := p.Backoff
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}

		if err = fn(ctx); err == nil {
			return nil
		}

		slog.WarnContext(ctx, "index call failed",
			"op", op,
			"attempt", attempt,
			"max_attempts", p.Attempts,
			"error", err,
		)
	}
	return err
}
