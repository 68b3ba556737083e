package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	res := Do(context.Background(), fastPolicy(3), func(ctx context.Context) error {
		return nil
	})

	assert.Equal(t, Succeeded, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	assert.NoError(t, res.Err)
}

func TestDoRetriesThenSucceeds(t *testing.T) {
	calls := 0
	res := Do(context.Background(), fastPolicy(3), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	assert.Equal(t, Succeeded, res.Outcome)
	assert.Equal(t, 3, res.Attempts)
}

func TestDoExhaustsAttempts(t *testing.T) {
	sentinel := errors.New("still broken")
	res := Do(context.Background(), fastPolicy(3), func(ctx context.Context) error {
		return sentinel
	})

	assert.Equal(t, Exhausted, res.Outcome)
	assert.Equal(t, 3, res.Attempts)
	assert.ErrorIs(t, res.Err, sentinel)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	sentinel := errors.New("bad request")
	res := Do(context.Background(), fastPolicy(5), func(ctx context.Context) error {
		calls++
		return Permanent(sentinel)
	})

	assert.Equal(t, Fatal, res.Outcome)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, res.Err, sentinel)
}

func TestDoCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := Do(ctx, fastPolicy(3), func(ctx context.Context) error {
		t.Fatal("fn must not run with a canceled context")
		return nil
	})

	assert.Equal(t, Canceled, res.Outcome)
	assert.Equal(t, 0, res.Attempts)
}

func TestDoCancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	policy := Policy{MaxAttempts: 3, BaseDelay: time.Hour}
	done := make(chan Result, 1)
	go func() {
		done <- Do(ctx, policy, func(ctx context.Context) error {
			return errors.New("transient")
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case res := <-done:
		assert.Equal(t, Canceled, res.Outcome)
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancel")
	}
}

func TestIsPermanent(t *testing.T) {
	base := errors.New("boom")
	assert.False(t, IsPermanent(base))
	assert.True(t, IsPermanent(Permanent(base)))

	wrapped := errors.Join(errors.New("context"), Permanent(base))
	assert.True(t, IsPermanent(wrapped))
}

func TestBackoffCapped(t *testing.T) {
	policy := Policy{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 4 * time.Second}

	for attempt := 1; attempt <= 9; attempt++ {
		d := backoff(policy, attempt)
		require.LessOrEqual(t, d, policy.MaxDelay)
	}
}

func TestBackoffJitterWithTinyBaseDelay(t *testing.T) {
	policy := Policy{MaxAttempts: 3, BaseDelay: time.Nanosecond, Jitter: true}

	// A 1ns delay halves to zero, which the jitter draw must tolerate.
	for attempt := 1; attempt <= 3; attempt++ {
		require.NotPanics(t, func() { backoff(policy, attempt) })
	}

	res := Do(context.Background(), policy, func(ctx context.Context) error {
		return errors.New("transient")
	})
	assert.Equal(t, Exhausted, res.Outcome)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "succeeded", Succeeded.String())
	assert.Equal(t, "exhausted", Exhausted.String())
	assert.Equal(t, "fatal", Fatal.String())
	assert.Equal(t, "canceled", Canceled.String())
}
