package jitter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDurationBounds(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 100; i++ {
		d := Duration(base, DefaultFactor)
		assert.GreaterOrEqual(t, d, base)
		assert.Less(t, d, base+base/2)
	}
	assert.Equal(t, base, Duration(base, 0))
}

func TestBackoffStep(t *testing.T) {
	b := Exponential(100*time.Millisecond, time.Second)

	assert.Equal(t, 100*time.Millisecond, b.Step(0))
	assert.Equal(t, 400*time.Millisecond, b.Step(2))
	assert.Equal(t, time.Second, b.Step(4))
	assert.Equal(t, time.Second, b.Step(60))
}

func TestBackoffDelayWithinFactor(t *testing.T) {
	b := Exponential(time.Second, 4*time.Second)
	for attempt := 0; attempt < 5; attempt++ {
		d := b.Delay(attempt)
		assert.GreaterOrEqual(t, d, b.Step(attempt))
		assert.Less(t, d, b.Step(attempt)*3/2)
	}
}

func TestSleepStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}
