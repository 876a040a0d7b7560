package jitter

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDuration_Bounds(t *testing.T) {
	for i := 0; i < 200; i++ {
		d := Duration(100*time.Millisecond, DefaultJitter)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}

	assert.Equal(t, time.Second, Duration(time.Second, 0))
	assert.Zero(t, Duration(-time.Second, DefaultJitter))
}

func TestDurationWithSeed_Deterministic(t *testing.T) {
	a := DurationWithSeed(time.Second, DefaultJitter, rand.New(rand.NewSource(42)))
	b := DurationWithSeed(time.Second, DefaultJitter, rand.New(rand.NewSource(42)))
	assert.Equal(t, a, b)
}

func TestExponentialBackoff(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 500 * time.Millisecond},
		{10, 500 * time.Millisecond},
	}

	for _, tc := range cases {
		got := ExponentialBackoff(100*time.Millisecond, 500*time.Millisecond, tc.attempt, 0)
		assert.Equal(t, tc.want, got, "attempt %d", tc.attempt)
	}
}

func TestSleep(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
	assert.NoError(t, Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.ErrorIs(t, Sleep(ctx, time.Minute), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
