package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitCtx(t *testing.T, d time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)
	return ctx
}

func TestGoCancelOnError(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithCancelOnError(true))
	s.Go("boom", func(ctx context.Context) error { return errors.New("boom") })
	s.Go0("waiter", func(ctx context.Context) { <-ctx.Done() })

	err := s.Wait(waitCtx(t, 2*time.Second))
	require.Error(t, err)
	assert.Equal(t, "boom: boom", err.Error())
}

func TestCanceledIsNotAFailure(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithCancelOnError(true))
	s.Go("loop", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	s.Cancel()
	assert.NoError(t, s.Wait(waitCtx(t, 2*time.Second)))
}

func TestGoRecoversPanic(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	s.Go0("panics", func(ctx context.Context) { panic("nope") })

	err := s.Wait(waitCtx(t, 2*time.Second))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panics: panic: nope")
	assert.Equal(t, Counters{Active: 0, Started: 1}, s.Counters())
}

func TestWaitTimeoutNamesStuckGoroutines(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	s := New(context.Background())
	s.Go0("stuck", func(context.Context) { <-release })
	s.Go0("quick", func(context.Context) {})

	require.Eventually(t, func() bool { return len(s.Running()) == 1 }, time.Second, 5*time.Millisecond)
	err := s.Wait(waitCtx(t, 20*time.Millisecond))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "still running: stuck")

	close(release)
	assert.NoError(t, s.Wait(waitCtx(t, 2*time.Second)))
	assert.Empty(t, s.Running())
}

func TestGoRestartRetriesUntilCleanExit(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	var runs atomic.Int32
	s.GoRestart("flaky", func(ctx context.Context) error {
		if runs.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, WithRestartBackoff(time.Millisecond, 5*time.Millisecond), WithPublishFirstError(true))

	err := s.Wait(waitCtx(t, 2*time.Second))
	assert.EqualValues(t, 3, runs.Load())
	require.Error(t, err)
	assert.Equal(t, "flaky: transient", err.Error())
}

func TestGoRestartSurvivesPanics(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	var runs atomic.Int32
	s.GoRestart("panicky", func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			panic("first run")
		}
		<-ctx.Done()
		return nil
	}, WithRestartBackoff(time.Millisecond, time.Millisecond))

	require.Eventually(t, func() bool { return runs.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	s.Cancel()
	assert.NoError(t, s.Wait(waitCtx(t, 2*time.Second)))
}

func TestBackoffDoublesToMax(t *testing.T) {
	b := backoff{min: 100 * time.Millisecond, max: 300 * time.Millisecond}
	b.reset()
	var got []time.Duration
	for range 4 {
		d := b.next()
		got = append(got, b.cur)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
	}
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}, got)
}
