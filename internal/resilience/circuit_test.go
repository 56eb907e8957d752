package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)
	transient := NewTransientError(errors.New("connection refused"))

	for i := 0; i < 2; i++ {
		require.NoError(t, cb.Allow())
		cb.Record(transient)
	}
	assert.Equal(t, CircuitClosed, cb.State())

	require.NoError(t, cb.Allow())
	cb.Record(transient)

	assert.Equal(t, CircuitOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)
}

func TestCircuitBreakerIgnoresNonTransientErrors(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute)

	for i := 0; i < 5; i++ {
		require.NoError(t, cb.Allow())
		cb.Record(NewStatusError(404, "not found"))
	}
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	now := time.Now()
	cb.nowFunc = func() time.Time { return now }

	require.NoError(t, cb.Allow())
	cb.Record(NewStatusError(503, "unavailable"))
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	// After the reset timeout a probe is admitted.
	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Allow())
	assert.Equal(t, CircuitHalfOpen, cb.State())

	cb.Record(nil)
	assert.Equal(t, CircuitClosed, cb.State())
	require.NoError(t, cb.Allow())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	now := time.Now()
	cb.nowFunc = func() time.Time { return now }

	require.NoError(t, cb.Allow())
	cb.Record(NewStatusError(502, "bad gateway"))

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Allow())
	cb.Record(NewStatusError(502, "bad gateway"))

	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)
}

func TestCircuitStateString(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(9).String())
}
