// Package retry wraps cenkalti/backoff with the failure taxonomy used across
// gatekeeper: validation-class errors never retry, everything else backs off
// exponentially until the policy is exhausted.
package retry

import (
	"context"
	stderrors "errors"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"

	pkgerrors "gatekeeper/pkg/errors"
)

type RetryableError interface {
	error
	IsRetryable() bool
}

type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) IsRetryable() bool {
	return true
}

func (e *retryableError) Unwrap() error {
	return e.err
}

func NewRetryableError(err error) RetryableError {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

type FatalError interface {
	error
	IsFatal() bool
}

type fatalError struct {
	err error
}

func (e *fatalError) Error() string {
	return e.err.Error()
}

func (e *fatalError) IsFatal() bool {
	return true
}

func (e *fatalError) Unwrap() error {
	return e.err
}

func NewFatalError(err error) FatalError {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// permanent reports whether err can never succeed on a later attempt. Bad
// input stays bad: retrying a malformed request only delays its trip to the
// dead letter queue.
func permanent(err error) bool {
	var fatalErr FatalError
	if stderrors.As(err, &fatalErr) {
		return true
	}
	return stderrors.Is(err, pkgerrors.ErrValidation) ||
		stderrors.Is(err, pkgerrors.ErrMalformedCondition) ||
		stderrors.Is(err, pkgerrors.ErrMissingIdentifiers)
}

type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  5 * time.Minute,
	}
}

func (p Policy) backoff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval
	exp.Multiplier = p.Multiplier
	exp.MaxElapsedTime = p.MaxElapsedTime

	var b backoff.BackOff = exp
	b = backoff.WithContext(b, ctx)
	b = backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1))
	return b
}

// NextDelay returns the delay before the attempt following the given one,
// capped at the policy's MaxInterval. Attempts count from 1.
func (p Policy) NextDelay(attempt int) time.Duration {
	duration := float64(p.InitialInterval) * math.Pow(p.Multiplier, float64(attempt))
	if duration > float64(p.MaxInterval) {
		return p.MaxInterval
	}
	return time.Duration(duration)
}

func Retry(ctx context.Context, policy Policy, fn func() error) error {
	return RetryWithCallback(ctx, policy, fn, nil)
}

func RetryWithCallback(ctx context.Context, policy Policy, fn func() error, onRetry func(attempt int, err error, nextDelay time.Duration)) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := fn()

		if err == nil {
			return nil
		}

		if permanent(err) {
			return backoff.Permanent(err)
		}

		var retryableErr RetryableError
		if !stderrors.As(err, &retryableErr) {
			err = NewRetryableError(err)
		}

		if onRetry != nil && attempt < policy.MaxAttempts {
			onRetry(attempt, err, policy.NextDelay(attempt))
		}

		return err
	}

	return backoff.Retry(operation, policy.backoff(ctx))
}
