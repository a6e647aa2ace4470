package fallback

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idv/pkg/platform/circuit"
)

var (
	errTransient = errors.New("transient")
	errFatal     = errors.New("fatal")
)

func retryableOnlyTransient(err error) bool { return errors.Is(err, errTransient) }

func succeed(v string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return v, nil }
}

func fail(err error, calls *int) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		*calls++
		return "", err
	}
}

func TestRun(t *testing.T) {
	policy := Policy{Retryable: retryableOnlyTransient}

	t.Run("primary success skips secondary", func(t *testing.T) {
		secondaryCalls := 0
		got, report, err := Run(context.Background(), policy, []Provider[string]{
			{Name: "primary", Call: succeed("a")},
			{Name: "secondary", Call: fail(errTransient, &secondaryCalls)},
		})
		require.NoError(t, err)
		assert.Equal(t, "a", got)
		assert.Equal(t, "primary", report.Used)
		assert.Zero(t, secondaryCalls)
	})

	t.Run("retryable error tries next provider", func(t *testing.T) {
		primaryCalls := 0
		got, report, err := Run(context.Background(), policy, []Provider[string]{
			{Name: "primary", Call: fail(errTransient, &primaryCalls)},
			{Name: "secondary", Call: succeed("b")},
		})
		require.NoError(t, err)
		assert.Equal(t, "b", got)
		assert.Equal(t, 1, primaryCalls)
		require.Len(t, report.Attempts, 2)
		assert.ErrorIs(t, report.Attempts[0].Err, errTransient)
	})

	t.Run("fatal error stops the chain", func(t *testing.T) {
		secondaryCalls := 0
		primaryCalls := 0
		_, report, err := Run(context.Background(), policy, []Provider[string]{
			{Name: "primary", Call: fail(errFatal, &primaryCalls)},
			{Name: "secondary", Call: fail(errTransient, &secondaryCalls)},
		})
		assert.ErrorIs(t, err, errFatal)
		assert.NotErrorIs(t, err, ErrAllProvidersFailed)
		assert.Zero(t, secondaryCalls)
		assert.Len(t, report.Attempts, 1)
	})

	t.Run("exhaustion wraps last error", func(t *testing.T) {
		calls := 0
		_, _, err := Run(context.Background(), policy, Repeat(Provider[string]{
			Name: "flaky", Call: fail(errTransient, &calls),
		}, 3))
		assert.ErrorIs(t, err, ErrAllProvidersFailed)
		assert.ErrorIs(t, err, errTransient)
		assert.Equal(t, 3, calls)
	})

	t.Run("open breaker skips provider", func(t *testing.T) {
		breaker := circuit.New("primary", circuit.WithFailureThreshold(1))
		breaker.RecordFailure()
		primaryCalls := 0
		got, report, err := Run(context.Background(), policy, []Provider[string]{
			{Name: "primary", Call: fail(errTransient, &primaryCalls), Breaker: breaker},
			{Name: "secondary", Call: succeed("c")},
		})
		require.NoError(t, err)
		assert.Equal(t, "c", got)
		assert.Zero(t, primaryCalls)
		assert.True(t, report.Attempts[0].Skipped)
	})

	t.Run("cancelled context stops before calling", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		_, _, err := Run(ctx, policy, []Provider[string]{{Name: "p", Call: fail(errTransient, &calls)}})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, calls)
	})
}
