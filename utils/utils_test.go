package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker("test")

	assert.Equal(t, "test", cb.name)
	assert.Equal(t, uint32(100), cb.maxRequests)
	assert.Equal(t, 60*time.Second, cb.interval)
	assert.Equal(t, 60*time.Second, cb.timeout)
	assert.Equal(t, 0.6, cb.failureRatio)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_Settings(t *testing.T) {
	cb := NewCircuitBreakerWithSettings("test", Settings{
		MaxRequests:  5,
		Timeout:      time.Second,
		FailureRatio: 0.5,
	})

	assert.Equal(t, uint32(5), cb.maxRequests)
	assert.Equal(t, time.Second, cb.timeout)
	assert.Equal(t, 0.5, cb.failureRatio)
	assert.Equal(t, 60*time.Second, cb.interval, "unset fields keep defaults")
}

func TestCircuitBreaker_ExecuteSuccess(t *testing.T) {
	cb := NewCircuitBreaker("test")

	result, err := cb.Execute(context.Background(), func() (any, error) {
		return "ok", nil
	})

	assert.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(1), cb.counts.Requests)
	assert.Equal(t, uint32(1), cb.counts.TotalSuccesses)
}

func TestCircuitBreaker_ExecuteFailure(t *testing.T) {
	cb := NewCircuitBreaker("test")
	boom := errors.New("boom")

	result, err := cb.Execute(context.Background(), func() (any, error) {
		return nil, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Nil(t, result)
	assert.Equal(t, uint32(1), cb.counts.TotalFailures)
	assert.Equal(t, StateClosed, cb.State(), "one failure does not trip")
}

func TestCircuitBreaker_TripsOpen(t *testing.T) {
	cb := NewCircuitBreakerWithSettings("test", Settings{
		MaxRequests:  5,
		FailureRatio: 0.6,
	})

	for i := 0; i < 2; i++ {
		_, err := cb.Execute(context.Background(), func() (any, error) {
			return "ok", nil
		})
		assert.NoError(t, err)
	}
	for i := 0; i < 4; i++ {
		cb.Execute(context.Background(), func() (any, error) { //nolint:errcheck
			return nil, errors.New("failure")
		})
	}

	assert.Equal(t, StateOpen, cb.State())

	_, err := cb.Execute(context.Background(), func() (any, error) {
		t.Fatal("call must not run while open")
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	cb := NewCircuitBreakerWithSettings("test", Settings{
		MaxRequests:  2,
		Timeout:      10 * time.Millisecond,
		FailureRatio: 0.5,
	})

	for i := 0; i < 2; i++ {
		cb.Execute(context.Background(), func() (any, error) { //nolint:errcheck
			return nil, errors.New("failure")
		})
	}
	assert.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	_, err := cb.Execute(context.Background(), func() (any, error) {
		return "ok", nil
	})
	assert.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreakerWithSettings("test", Settings{
		MaxRequests:  2,
		Timeout:      10 * time.Millisecond,
		FailureRatio: 0.5,
	})

	for i := 0; i < 2; i++ {
		cb.Execute(context.Background(), func() (any, error) { //nolint:errcheck
			return nil, errors.New("failure")
		})
	}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	cb.Execute(context.Background(), func() (any, error) { //nolint:errcheck
		return nil, errors.New("still failing")
	})
	assert.Equal(t, StateOpen, cb.State())
}
