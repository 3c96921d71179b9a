package schedule_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glizzus/livesfx/internal/schedule"
)

func TestRepeatRunsInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []int
	done := make(chan struct{})

	schedule.Repeat(4, time.Millisecond, func(i int) {
		mu.Lock()
		got = append(got, i)
		n := len(got)
		mu.Unlock()
		if n == 4 {
			close(done)
		}
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Repeat did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		if v != i {
			t.Errorf("call %d received index %d", i, v)
		}
	}
}

func TestRepeatSpacing(t *testing.T) {
	times := make(chan time.Time, 3)
	schedule.Repeat(3, 20*time.Millisecond, func(int) { times <- time.Now() })

	var stamps []time.Time
	for range 3 {
		select {
		case ts := <-times:
			stamps = append(stamps, ts)
		case <-time.After(5 * time.Second):
			t.Fatal("Repeat did not finish")
		}
	}
	if gap := stamps[2].Sub(stamps[0]); gap < 40*time.Millisecond {
		t.Errorf("three calls spanned %v, want at least 40ms", gap)
	}
}

func TestRepeatZero(t *testing.T) {
	called := make(chan struct{}, 1)
	schedule.Repeat(0, 0, func(int) { called <- struct{}{} })
	select {
	case <-called:
		t.Fatal("Repeat(0) called fn")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestRunCronStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err := schedule.RunCron(ctx, "* * * * *", func(context.Context) {
		t.Error("fn should not run after cancellation")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("RunCron() error = %v, want context.Canceled", err)
	}
}

func TestRunCronInvalid(t *testing.T) {
	if err := schedule.RunCron(t.Context(), "not a cron", func(context.Context) {}); err == nil {
		t.Error("RunCron() expected an error")
	}
}
