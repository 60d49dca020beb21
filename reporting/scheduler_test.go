package reporting

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func runScheduler(t *testing.T, scheduler *Scheduler) (context.CancelFunc, <-chan error) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- scheduler.Run(ctx)
	}()
	return cancel, done
}

func TestSchedulerFiresRepeatedly(t *testing.T) {
	logger, _ := newTestLogger()
	var calls int64
	scheduler := NewScheduler(10*time.Millisecond, func() {
		atomic.AddInt64(&calls, 1)
	}, logger)

	cancel, done := runScheduler(t, scheduler)
	waitFor(t, func() bool { return scheduler.Runs() >= 3 })
	cancel()

	assert.Equal(t, context.Canceled, <-done)
	assert.Equal(t, atomic.LoadInt64(&calls), scheduler.Runs())
}

func TestSchedulerWaitsForInterval(t *testing.T) {
	logger, _ := newTestLogger()
	scheduler := NewScheduler(time.Hour, func() {}, logger)

	cancel, done := runScheduler(t, scheduler)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(0), scheduler.Runs())

	cancel()
	select {
	case err := <-done:
		assert.Equal(t, context.Canceled, err)
	case <-time.After(5 * time.Second):
		t.Fatal("cancel did not stop the pending timer")
	}
}

func TestSchedulerImmediate(t *testing.T) {
	logger, _ := newTestLogger()
	fired := make(chan struct{}, 1)
	scheduler := NewScheduler(time.Hour, func() {
		fired <- struct{}{}
	}, logger, WithImmediate())

	cancel, done := runScheduler(t, scheduler)
	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run immediately")
	}
	cancel()
	assert.Equal(t, context.Canceled, <-done)
	assert.Equal(t, int64(1), scheduler.Runs())
}

func TestSchedulerReschedulesAfterJob(t *testing.T) {
	logger, _ := newTestLogger()
	var starts []time.Time
	var ends []time.Time
	var calls int64
	scheduler := NewScheduler(10*time.Millisecond, func() {
		starts = append(starts, time.Now())
		time.Sleep(30 * time.Millisecond)
		ends = append(ends, time.Now())
		atomic.AddInt64(&calls, 1)
	}, logger)

	cancel, done := runScheduler(t, scheduler)
	waitFor(t, func() bool { return atomic.LoadInt64(&calls) >= 2 })
	cancel()
	<-done

	// runs never overlap and each waits a full interval after the last
	require.True(t, len(starts) >= 2)
	assert.True(t, starts[1].Sub(ends[0]) >= 10*time.Millisecond)
}

func TestSchedulerCancelledBeforeStart(t *testing.T) {
	logger, _ := newTestLogger()
	scheduler := NewScheduler(time.Millisecond, func() {}, logger, WithImmediate())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, context.Canceled, scheduler.Run(ctx))
	assert.Equal(t, int64(0), scheduler.Runs())
}

func TestSchedulerDrivesReporter(t *testing.T) {
	store := newReportStore()
	logger, hook := newTestLogger()
	reporter := NewReporter(store, "Lynnsie", logger)
	scheduler := NewScheduler(10*time.Millisecond, func() { reporter.Report() }, logger)

	cancel, done := runScheduler(t, scheduler)
	waitFor(t, func() bool { return scheduler.Runs() >= 2 })
	cancel()
	<-done

	assert.NotNil(t, findEntry(hook, "No activity in the last hour"))
}
