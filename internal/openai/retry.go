package openai

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy controls how transient failures are retried.
type RetryPolicy struct {
	Attempts      int
	RateLimitWait time.Duration
	MinBackoff    time.Duration
	MaxBackoff    time.Duration
}

// Retry policies used by the embedding calls.
var (
	BatchRetry = RetryPolicy{Attempts: 20, RateLimitWait: 65 * time.Second, MinBackoff: 2 * time.Second, MaxBackoff: 30 * time.Second}
	QueryRetry = RetryPolicy{Attempts: 15, RateLimitWait: 65 * time.Second, MinBackoff: 2 * time.Second, MaxBackoff: 30 * time.Second}
)

// wait returns the pause after the given failed attempt (1-based). Rate
// limits wait for the provider window to reset; other errors back off
// exponentially.
func (p RetryPolicy) wait(attempt int, err error) time.Duration {
	if errors.Is(err, ErrRateLimited) {
		return p.RateLimitWait
	}
	d := time.Second << min(attempt-1, 16)
	return max(p.MinBackoff, min(d, p.MaxBackoff))
}

type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retry runs fn until it succeeds, fails permanently, or the attempts run out.
// The last error is returned unchanged.
func (c *Client) retry(ctx context.Context, policy RetryPolicy, op string, fn func() error) error {
	attempts := max(policy.Attempts, 1)
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil || !Retryable(err) || attempt == attempts {
			return err
		}
		d := policy.wait(attempt, err)
		c.logger.Warn("retrying provider call",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("wait", d),
			zap.Error(err),
		)
		if sleepErr := c.sleep(ctx, d); sleepErr != nil {
			return err
		}
	}
	return err
}
