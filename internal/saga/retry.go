package saga

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/chefstream/harvester/internal/logger"
)

const (
	retryInitialInterval = 500 * time.Millisecond
	retryMaxInterval     = 30 * time.Second
)

func newBackOff(ctx context.Context, maxRetries int) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryInitialInterval
	bo.MaxInterval = retryMaxInterval
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(maxRetries)), ctx)
}

// retryTransient runs op, retrying transient failures with exponential
// backoff up to maxRetries additional attempts. Any other failure stops
// immediately. The returned attempt count includes the first try.
func retryTransient(ctx context.Context, log logger.Interface, maxRetries int, op func() error) (int, error) {
	attempts := 0

	wrapped := func() error {
		attempts++
		err := op()
		if err == nil {
			return nil
		}
		if !Classify(err).Retryable() {
			return backoff.Permanent(err)
		}
		log.WithAttempt(attempts).Warn("transient failure, backing off", "error", err.Error())
		return err
	}

	err := backoff.Retry(wrapped, newBackOff(ctx, maxRetries))
	return attempts, err
}

// retryAny runs op, retrying every failure except context cancellation.
// Used for phase-level persistence where a dropped database connection
// should not fail an otherwise complete batch.
func retryAny(ctx context.Context, log logger.Interface, maxRetries int, op func() error) error {
	attempts := 0

	wrapped := func() error {
		attempts++
		err := op()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		log.WithAttempt(attempts).Warn("persistence failure, backing off", "error", err.Error())
		return err
	}

	return backoff.Retry(wrapped, newBackOff(ctx, maxRetries))
}
