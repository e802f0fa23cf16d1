package service

import (
	"context"
	"time"

	"fitpledge/apperrors"
	"fitpledge/config"
	"fitpledge/infrastructure/observability"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

// RetryPolicy bounds the retries of an operation that hit a transient store failure
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// RetryPolicyFromConfig reads the retry policy from the application configuration
func RetryPolicyFromConfig(cfg *config.Config) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     cfg.RetryMaxAttempts,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = 0

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// withRetry runs fn until it succeeds, fails with a non-transient error, or the policy is
// exhausted. Exhaustion surfaces as ServiceUnavailable.
func withRetry[T any](ctx context.Context, policy RetryPolicy, op string, fn func() (T, error)) (T, error) {
	attempt := 0
	result, err := backoff.RetryNotifyWithData(func() (T, error) {
		attempt++
		res, err := fn()
		if err != nil && !apperrors.IsTransient(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}, policy.backOff(ctx), func(err error, wait time.Duration) {
		observability.GetMetrics().RecordTransientRetry(op)
		log.WithFields(log.Fields{
			"operation": op,
			"attempt":   attempt,
			"wait":      wait,
		}).WithError(err).Warn("Transient store failure, retrying")
	})

	if apperrors.IsTransient(err) {
		var zero T
		return zero, apperrors.ServiceUnavailable(op, err)
	}
	return result, err
}

// withRetryErr is withRetry for operations without a result
func withRetryErr(ctx context.Context, policy RetryPolicy, op string, fn func() error) error {
	_, err := withRetry(ctx, policy, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
