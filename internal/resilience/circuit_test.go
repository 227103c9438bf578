package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failing(err error) func(ctx context.Context) error {
	return func(ctx context.Context) error { return err }
}

func TestCircuitOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitConfig{FailureThreshold: 3, ResetTimeout: 30 * time.Second})
	boom := eris.New("boom")

	for range 3 {
		err := cb.Execute(context.Background(), failing(boom))
		require.ErrorIs(t, err, boom)
	}
	assert.Equal(t, CircuitOpen, cb.State())

	err := cb.Execute(context.Background(), failing(boom))
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitConfig{FailureThreshold: 3, ResetTimeout: 30 * time.Second})
	boom := eris.New("boom")

	_ = cb.Execute(context.Background(), failing(boom))
	_ = cb.Execute(context.Background(), failing(boom))
	require.NoError(t, cb.Execute(context.Background(), failing(nil)))

	_ = cb.Execute(context.Background(), failing(boom))
	_ = cb.Execute(context.Background(), failing(boom))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitHalfOpenProbe(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitConfig{FailureThreshold: 1, ResetTimeout: 30 * time.Second}).
		WithNow(func() time.Time { return now })
	boom := eris.New("boom")

	_ = cb.Execute(context.Background(), failing(boom))
	require.Equal(t, CircuitOpen, cb.State())

	// Before the reset timeout the breaker still rejects.
	now = now.Add(29 * time.Second)
	err := cb.Execute(context.Background(), failing(nil))
	require.ErrorIs(t, err, ErrCircuitOpen)

	// After the timeout one probe is allowed; success closes the circuit.
	now = now.Add(2 * time.Second)
	require.NoError(t, cb.Execute(context.Background(), failing(nil)))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitHalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitConfig{FailureThreshold: 5, ResetTimeout: 30 * time.Second}).
		WithNow(func() time.Time { return now })
	boom := eris.New("boom")

	for range 5 {
		_ = cb.Execute(context.Background(), failing(boom))
	}
	require.Equal(t, CircuitOpen, cb.State())

	// The half-open probe fails, so the circuit opens again immediately even
	// though the consecutive-failure count is below the threshold.
	now = now.Add(31 * time.Second)
	_ = cb.Execute(context.Background(), failing(boom))
	assert.Equal(t, CircuitOpen, cb.State())

	err := cb.Execute(context.Background(), failing(nil))
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestExecuteValPassesThroughValue(t *testing.T) {
	cb := NewCircuitBreaker(CircuitConfig{})

	got, err := ExecuteVal(context.Background(), cb, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestExecuteValRejectsWhenOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitConfig{FailureThreshold: 1, ResetTimeout: time.Hour})
	boom := eris.New("boom")

	_, _ = ExecuteVal(context.Background(), cb, func(ctx context.Context) (int, error) {
		return 0, boom
	})

	got, err := ExecuteVal(context.Background(), cb, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, got)
}
