// Package retry defines retry policies and backoff strategies.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// BackoffType identifies the backoff strategy.
type BackoffType string

const (
	BackoffFixed       BackoffType = "fixed"
	BackoffLinear      BackoffType = "linear"
	BackoffExponential BackoffType = "exponential"
)

// Policy defines a retry strategy. MaxRetries counts retries, so a policy
// with MaxRetries 2 makes at most three attempts.
type Policy struct {
	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffStrategy BackoffType
	JitterFactor    float64 // 0.0-1.0

	// RetryIf decides whether an error is worth another attempt.
	// A nil RetryIf retries every error.
	RetryIf func(err error) bool
}

// LinearPolicy returns a jitter-free linear policy.
func LinearPolicy(maxRetries int, step time.Duration) Policy {
	return Policy{
		MaxRetries:      maxRetries,
		InitialDelay:    step,
		MaxDelay:        step * time.Duration(maxRetries+1),
		BackoffStrategy: BackoffLinear,
	}
}

// CalculateDelay calculates the delay before the given attempt (1-based).
func (p *Policy) CalculateDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	var delay time.Duration

	switch p.BackoffStrategy {
	case BackoffLinear:
		delay = p.InitialDelay * time.Duration(attempt)
	case BackoffExponential:
		delay = p.InitialDelay * time.Duration(math.Pow(2, float64(attempt-1)))
	default:
		delay = p.InitialDelay
	}

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	if p.JitterFactor > 0 {
		jitter := float64(delay) * p.JitterFactor * (rand.Float64()*2 - 1)
		delay = time.Duration(float64(delay) + jitter)
		if delay < 0 {
			delay = 0
		}
	}

	return delay
}

func (p *Policy) shouldRetry(attempt int, err error) bool {
	if attempt >= p.MaxRetries {
		return false
	}
	return p.RetryIf == nil || p.RetryIf(err)
}

// Executor provides retry execution functionality.
type Executor struct {
	policy Policy
}

// NewExecutor creates a new retry executor with the given policy.
func NewExecutor(policy Policy) *Executor {
	return &Executor{policy: policy}
}

// RetryableFunc is a function that can be retried. attempt starts at 0.
type RetryableFunc func(ctx context.Context, attempt int) error

// Execute runs fn until it succeeds, the policy gives up or ctx ends.
// The last error from fn is returned when retries are exhausted.
func (e *Executor) Execute(ctx context.Context, fn RetryableFunc) error {
	_, err := ExecuteWithResult(ctx, e.policy, func(ctx context.Context, attempt int) (struct{}, error) {
		return struct{}{}, fn(ctx, attempt)
	})
	return err
}

// ExecuteWithResult runs fn with retries and returns its result.
func ExecuteWithResult[T any](ctx context.Context, policy Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx, attempt)
		if err == nil {
			return result, nil
		}

		if !policy.shouldRetry(attempt, err) {
			return result, err
		}

		if err := wait(ctx, policy.CalculateDelay(attempt+1)); err != nil {
			return zero, err
		}
	}
}

func wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
