package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifiedui/multiagent-service/internal/pkg/retry"
)

var errTransient = errors.New("transient")

func TestCalculateDelay_Linear(t *testing.T) {
	p := retry.LinearPolicy(3, 100*time.Millisecond)

	assert.Equal(t, time.Duration(0), p.CalculateDelay(0))
	assert.Equal(t, 100*time.Millisecond, p.CalculateDelay(1))
	assert.Equal(t, 200*time.Millisecond, p.CalculateDelay(2))
	assert.Equal(t, 300*time.Millisecond, p.CalculateDelay(3))
}

func TestCalculateDelay_ExponentialCapped(t *testing.T) {
	p := retry.Policy{InitialDelay: time.Second, MaxDelay: 3 * time.Second, BackoffStrategy: retry.BackoffExponential}

	assert.Equal(t, time.Second, p.CalculateDelay(1))
	assert.Equal(t, 2*time.Second, p.CalculateDelay(2))
	assert.Equal(t, 3*time.Second, p.CalculateDelay(3))
}

func TestExecute_SucceedsAfterRetries(t *testing.T) {
	// Arrange
	calls := 0
	exec := retry.NewExecutor(retry.LinearPolicy(3, time.Millisecond))

	// Act
	err := exec.Execute(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 2 {
			return errTransient
		}
		return nil
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecute_ExhaustsAndReturnsLastError(t *testing.T) {
	calls := 0
	exec := retry.NewExecutor(retry.LinearPolicy(2, time.Millisecond))

	err := exec.Execute(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestExecute_RetryIfStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("permanent")
	p := retry.LinearPolicy(5, time.Millisecond)
	p.RetryIf = func(err error) bool { return errors.Is(err, errTransient) }
	calls := 0

	err := retry.NewExecutor(p).Execute(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestExecute_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	exec := retry.NewExecutor(retry.LinearPolicy(3, time.Hour))

	err := exec.Execute(ctx, func(ctx context.Context, attempt int) error {
		cancel()
		return errTransient
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecuteWithResult(t *testing.T) {
	got, err := retry.ExecuteWithResult(context.Background(), retry.LinearPolicy(1, time.Millisecond),
		func(ctx context.Context, attempt int) (string, error) {
			if attempt == 0 {
				return "", errTransient
			}
			return "ok", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}
