package ratewindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEmptyWindowReadsZero(t *testing.T) {
	w := New(10 * time.Second)

	assert.Equal(t, 0, w.Count())
	assert.Equal(t, 0.0, w.Rate())
}

func TestRateIsCountOverInterval(t *testing.T) {
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	w := New(10 * time.Second)
	w.now = func() time.Time { return clock }

	for i := 0; i < 5; i++ {
		w.Record()
		clock = clock.Add(time.Second)
	}

	assert.Equal(t, 5, w.Count())
	assert.InDelta(t, 0.5, w.Rate(), 1e-9)
}

func TestSamplesExpireAfterWindow(t *testing.T) {
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	w := New(10 * time.Second)
	w.now = func() time.Time { return clock }

	w.Record()
	w.Record()
	w.Record()
	assert.Equal(t, 3, w.Count())

	clock = clock.Add(10*time.Second + time.Millisecond)
	assert.Equal(t, 0, w.Count())
	assert.Equal(t, 0.0, w.Rate())
}

func TestPartialExpiry(t *testing.T) {
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	w := New(10 * time.Second)
	w.now = func() time.Time { return clock }

	w.Record()
	clock = clock.Add(6 * time.Second)
	w.Record()
	clock = clock.Add(6 * time.Second)

	// First sample is now 12s old, second 6s.
	assert.Equal(t, 1, w.Count())
	assert.InDelta(t, 0.1, w.Rate(), 1e-9)
}

func TestHistoryIsBounded(t *testing.T) {
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	w := New(time.Hour)
	w.now = func() time.Time { return clock }

	for i := 0; i < maxSamples+10; i++ {
		w.Record()
	}

	assert.Equal(t, maxSamples, w.Count())
}

func TestZeroSizeFallsBackToOneSecond(t *testing.T) {
	w := New(0)
	assert.Equal(t, time.Second, w.size)
}
