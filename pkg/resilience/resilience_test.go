package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fail() error { return errBoom }
func ok() error   { return nil }

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker("index", CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, cb.Execute(fail), errBoom)
		assert.Equal(t, StateClosed, cb.GetState())
	}
	assert.ErrorIs(t, cb.Execute(fail), errBoom)
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreakerSuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker("catalog", CircuitBreakerConfig{FailureThreshold: 2})
	_ = cb.Execute(fail)
	require.NoError(t, cb.Execute(ok))
	_ = cb.Execute(fail)
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	now := time.Now()
	var transitions []string
	cb := NewCircuitBreaker("index", CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Second,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	cb.now = func() time.Time { return now }

	_ = cb.Execute(fail)
	require.Equal(t, StateOpen, cb.GetState())

	now = now.Add(11 * time.Second)
	require.NoError(t, cb.Execute(ok))
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestCircuitBreakerHalfOpenProbeFails(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker("index", CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Second})
	cb.now = func() time.Time { return now }

	_ = cb.Execute(fail)
	now = now.Add(2 * time.Second)
	assert.ErrorIs(t, cb.Execute(fail), errBoom)
	assert.Equal(t, StateOpen, cb.GetState())
	assert.ErrorIs(t, cb.Execute(ok), ErrCircuitOpen)
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker("index", CircuitBreakerConfig{FailureThreshold: 1})
	_ = cb.Execute(fail)
	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())
	assert.NoError(t, cb.Execute(ok))
}

func TestCall(t *testing.T) {
	cb := NewCircuitBreaker("index", CircuitBreakerConfig{FailureThreshold: 1})
	v, err := Call(cb, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = Call(cb, func() (int, error) { return 7, errBoom })
	assert.ErrorIs(t, err, errBoom)
	assert.Zero(t, v)

	_, err = Call(cb, func() (int, error) { return 1, nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestRetrySucceedsEventually(t *testing.T) {
	var calls atomic.Int32
	err := Retry(context.Background(), "dial", RetryConfig{MaxAttempts: 4, InitialDelay: time.Millisecond}, func() error {
		if calls.Add(1) < 3 {
			return errBoom
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryExhausted(t *testing.T) {
	var calls int
	err := Retry(context.Background(), "dial", RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}, func() error {
		calls++
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 2, calls)
}

func TestRetryPermanent(t *testing.T) {
	var calls int
	err := Retry(context.Background(), "dial", RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}, func() error {
		calls++
		return Permanent(errBoom)
	})
	assert.Equal(t, errBoom, err)
	assert.Equal(t, 1, calls)
}

func TestRetryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, "dial", RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour}, fail)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryValue(t *testing.T) {
	attempts := 0
	v, err := RetryValue(context.Background(), "dial", RetryConfig{InitialDelay: time.Millisecond}, func() (string, error) {
		attempts++
		if attempts == 1 {
			return "", errBoom
		}
		return "conn", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "conn", v)
}

func TestComputeDelayCapped(t *testing.T) {
	cfg := withRetryDefaults(RetryConfig{InitialDelay: time.Second, MaxDelay: 2 * time.Second})
	assert.LessOrEqual(t, computeDelay(10, cfg), 2*time.Second)
	assert.Greater(t, computeDelay(1, cfg), time.Duration(0))
}
