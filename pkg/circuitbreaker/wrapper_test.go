package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutePassesThroughWhenClosed(t *testing.T) {
	w := NewWrapper(DefaultConfig("test-closed"))

	result, err := w.Execute(func() (interface{}, error) {
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.True(t, w.IsClosed())
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	cfg := DefaultConfig("test-open")
	cfg.ReadyToTrip = TripOnFailureRatio(0.5, 3)
	w := NewWrapper(cfg)

	for i := 0; i < 3; i++ {
		_, err := w.Execute(func() (interface{}, error) {
			return nil, errors.New("downstream down")
		})
		require.Error(t, err)
	}

	assert.True(t, w.IsOpen())

	_, err := w.Execute(func() (interface{}, error) {
		t.Fatal("must not be called while open")
		return nil, nil
	})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestExecuteWithContextHonorsCancellation(t *testing.T) {
	w := NewWrapper(DefaultConfig("test-ctx"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTripOnFailureRatio(t *testing.T) {
	trip := TripOnFailureRatio(0.5, 3)

	assert.False(t, trip(gobreaker.Counts{Requests: 2, TotalFailures: 2}))
	assert.False(t, trip(gobreaker.Counts{Requests: 10, TotalFailures: 4}))
	assert.True(t, trip(gobreaker.Counts{Requests: 4, TotalFailures: 2}))
}

func TestHalfOpenAfterTimeout(t *testing.T) {
	cfg := DefaultConfig("test-halfopen")
	cfg.Timeout = 20 * time.Millisecond
	cfg.ReadyToTrip = TripOnFailureRatio(0.5, 1)
	w := NewWrapper(cfg)

	_, _ = w.Execute(func() (interface{}, error) { return nil, errors.New("dead") })
	require.True(t, w.IsOpen())

	time.Sleep(30 * time.Millisecond)
	assert.True(t, w.IsHalfOpen())
}
