package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJitteredLimiterSpacesActions(t *testing.T) {
	l := NewJitteredLimiter(20*time.Millisecond, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx))
	start := time.Now()
	require.NoError(t, l.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestJitteredLimiterRespectsContext(t *testing.T) {
	l := NewJitteredLimiter(time.Hour, time.Hour)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAdaptiveLimiterBacksOffOnErrors(t *testing.T) {
	a := NewAdaptiveLimiter(2*time.Second, 8*time.Second)

	for i := 0; i < 3; i++ {
		a.RecordError()
	}

	minDelay, maxDelay := a.Delays()
	assert.Equal(t, 3*time.Second, minDelay)
	assert.Equal(t, 12*time.Second, maxDelay)
}

func TestAdaptiveLimiterRecoversOnSuccess(t *testing.T) {
	a := NewAdaptiveLimiter(10*time.Second, 20*time.Second)

	for i := 0; i < 6; i++ {
		a.RecordSuccess()
	}

	minDelay, _ := a.Delays()
	assert.Equal(t, 9*time.Second, minDelay)
}

func TestAdaptiveLimiterBackoffIsCapped(t *testing.T) {
	a := NewAdaptiveLimiter(50*time.Second, 110*time.Second)

	for round := 0; round < 5; round++ {
		for i := 0; i < 3; i++ {
			a.RecordError()
		}
	}

	minDelay, maxDelay := a.Delays()
	assert.LessOrEqual(t, minDelay, 60*time.Second)
	assert.LessOrEqual(t, maxDelay, 120*time.Second)
}
