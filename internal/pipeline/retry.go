package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

// RetryPolicy retries transport failures of a single stage call with
// exponential backoff. Other errors return immediately.
type RetryPolicy struct {
	// Attempts is the total number of tries; values below 1 mean 1
	Attempts  int
	BaseDelay time.Duration
	// Sleep waits between attempts; nil uses a context-aware timer
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns the policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: time.Second}
}

func (p RetryPolicy) do(ctx context.Context, op func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = op()
		if err == nil || !isRetryable(err) || ctx.Err() != nil {
			return err
		}
		if attempt < attempts-1 {
			backoff := p.BaseDelay * time.Duration(1<<uint(attempt))
			if serr := sleep(ctx, backoff); serr != nil {
				return serr
			}
		}
	}
	return err
}

func isRetryable(err error) bool {
	return errors.Is(err, model.ErrInferenceUnreachable) || errors.Is(err, model.ErrEvidenceUnavailable)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
