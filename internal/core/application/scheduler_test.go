package application_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/x42protocol/xserverd/internal/core/application"
)

func TestSchedulerStopsOnCancel(t *testing.T) {
	scheduler := application.NewScheduler()
	var runs int64
	scheduler.AddTask(application.Task{
		Name:     "counter",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			atomic.AddInt64(&runs, 1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	scheduler.Start(ctx)

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&runs) >= 3
	}, time.Second, time.Millisecond)

	cancel()
	scheduler.Wait()

	final := atomic.LoadInt64(&runs)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, final, atomic.LoadInt64(&runs))
}

func TestSchedulerRunAtStart(t *testing.T) {
	scheduler := application.NewScheduler()
	ran := make(chan struct{})
	scheduler.AddTask(application.Task{
		Name:       "eager",
		Interval:   time.Hour,
		RunAtStart: true,
		Run: func(ctx context.Context) error {
			close(ran)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler.Start(ctx)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task with RunAtStart never ran")
	}
}

func TestSchedulerFatalErrorTerminatesOnlyThatTask(t *testing.T) {
	scheduler := application.NewScheduler()
	var fatalRuns, survivorRuns int64
	scheduler.AddTask(application.Task{
		Name:         "fatal",
		Interval:     5 * time.Millisecond,
		FatalOnError: true,
		Run: func(ctx context.Context) error {
			atomic.AddInt64(&fatalRuns, 1)
			return errors.New("boom")
		},
	})
	scheduler.AddTask(application.Task{
		Name:     "survivor",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			atomic.AddInt64(&survivorRuns, 1)
			return errors.New("transient")
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	scheduler.Start(ctx)

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&survivorRuns) >= 5
	}, time.Second, time.Millisecond)

	require.Equal(t, int64(1), atomic.LoadInt64(&fatalRuns))

	cancel()
	scheduler.Wait()
}

func TestSchedulerPrecondition(t *testing.T) {
	scheduler := application.NewScheduler()
	var gate int32
	var runs int64
	scheduler.AddTask(application.Task{
		Name:         "gated",
		Interval:     5 * time.Millisecond,
		Precondition: func() bool { return atomic.LoadInt32(&gate) == 1 },
		Run: func(ctx context.Context) error {
			atomic.AddInt64(&runs, 1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	scheduler.Start(ctx)

	time.Sleep(30 * time.Millisecond)
	require.Equal(t, int64(0), atomic.LoadInt64(&runs))

	atomic.StoreInt32(&gate, 1)
	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&runs) >= 1
	}, time.Second, time.Millisecond)

	cancel()
	scheduler.Wait()
}

func TestSchedulerAddAfterStartIsIgnored(t *testing.T) {
	scheduler := application.NewScheduler()
	ctx, cancel := context.WithCancel(context.Background())
	scheduler.Start(ctx)

	ran := make(chan struct{}, 1)
	scheduler.AddTask(application.Task{
		Name:       "late",
		Interval:   time.Millisecond,
		RunAtStart: true,
		Run: func(ctx context.Context) error {
			ran <- struct{}{}
			return nil
		},
	})

	select {
	case <-ran:
		t.Fatal("task added after Start must not run")
	case <-time.After(30 * time.Millisecond):
	}

	cancel()
	scheduler.Wait()
}
