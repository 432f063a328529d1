package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamgen/internal/models"
)

func TestNewValidatesCadence(t *testing.T) {
	_, err := New(models.CadenceConfig{Rate: 10}, nil)
	require.NoError(t, err)

	_, err = New(models.CadenceConfig{Interval: 50 * time.Millisecond}, nil)
	require.NoError(t, err)

	var configErr *models.ConfigError
	_, err = New(models.CadenceConfig{}, nil)
	require.ErrorAs(t, err, &configErr, "neither rate nor interval set")

	_, err = New(models.CadenceConfig{Rate: 10, Interval: time.Second}, nil)
	require.ErrorAs(t, err, &configErr, "rate and interval are mutually exclusive")
}

func TestRunTicksAtConfiguredRate(t *testing.T) {
	sched, err := New(models.CadenceConfig{Interval: 10 * time.Millisecond}, nil)
	require.NoError(t, err)

	var ticks atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), 205*time.Millisecond)
	defer cancel()

	sched.Run(ctx, func(context.Context) { ticks.Add(1) })

	got := ticks.Load()
	t.Logf("observed %d ticks over ~200ms at a 10ms interval", got)
	assert.GreaterOrEqual(t, got, int64(10))
	assert.LessOrEqual(t, got, int64(25))
	assert.Zero(t, sched.SkippedTicks())
}

func TestRunStopsOnCancel(t *testing.T) {
	sched, err := New(models.CadenceConfig{Interval: time.Hour}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx, func(context.Context) { t.Error("tick fired before the hour elapsed") })
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestSlowTickSkipsDeadlinesInsteadOfQueueing(t *testing.T) {
	sched, err := New(models.CadenceConfig{Interval: 5 * time.Millisecond}, nil)
	require.NoError(t, err)

	var notified atomic.Uint64
	sched.OnSkip = func(n uint64) { notified.Add(n) }

	var ticks atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	sched.Run(ctx, func(context.Context) {
		ticks.Add(1)
		time.Sleep(25 * time.Millisecond) // each tick blows through several deadlines
	})

	t.Logf("slow ticks: ran %d, skipped %d deadlines", ticks.Load(), sched.SkippedTicks())
	assert.Greater(t, sched.SkippedTicks(), uint64(0), "missed deadlines must be counted")
	assert.Equal(t, sched.SkippedTicks(), notified.Load(), "OnSkip must see every skip")
	assert.LessOrEqual(t, ticks.Load(), int64(8), "missed deadlines must not be replayed as a burst")
}

func TestPauseStopsTicksAndResumeRealigns(t *testing.T) {
	sched, err := New(models.CadenceConfig{Interval: 10 * time.Millisecond}, nil)
	require.NoError(t, err)

	var ticks atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		sched.Run(ctx, func(context.Context) { ticks.Add(1) })
		close(done)
	}()

	time.Sleep(55 * time.Millisecond)
	sched.Pause()
	time.Sleep(20 * time.Millisecond) // let an in-flight tick drain
	atPause := ticks.Load()
	assert.Greater(t, atPause, int64(0))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, atPause, ticks.Load(), "no ticks may fire while paused")

	sched.Resume()
	time.Sleep(55 * time.Millisecond)
	afterResume := ticks.Load()
	t.Logf("ticks: %d at pause, %d after resume", atPause, afterResume)
	assert.Greater(t, afterResume, atPause, "ticks must restart after resume")
	// The paused window is never caught up: ~100ms paused at 10ms/tick would
	// owe ~10 ticks if deadlines queued.
	assert.Less(t, afterResume-atPause, int64(9), "paused window must not be replayed")

	cancel()
	<-done
}

func TestCancelUnblocksPausedScheduler(t *testing.T) {
	sched, err := New(models.CadenceConfig{Interval: 10 * time.Millisecond}, nil)
	require.NoError(t, err)
	sched.Pause()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx, func(context.Context) {})
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return while paused")
	}
}

func TestSetPeriodTakesEffectOnNextTick(t *testing.T) {
	sched, err := New(models.CadenceConfig{Rate: 100}, nil)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, sched.Period())

	var ticks atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		sched.Run(ctx, func(context.Context) { ticks.Add(1) })
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	sched.SetPeriod(time.Hour)
	assert.Equal(t, time.Hour, sched.Period())

	time.Sleep(30 * time.Millisecond) // let the pending tick boundary pass
	settled := ticks.Load()
	assert.Greater(t, settled, int64(0))

	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, ticks.Load(), settled+1, "hot-swapped period must slow the tick stream")

	cancel()
	<-done
}
