package simulation

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoopRunsAtLeastOnce(t *testing.T) {
	var ticks int32
	loop := NewLoop(10*time.Millisecond, func(time.Duration) {
		atomic.AddInt32(&ticks, 1)
	})
	ctx, cancel := context.WithCancel(context.Background())
	loop.Start(ctx)
	time.Sleep(55 * time.Millisecond)
	cancel()
	loop.Stop()
	if atomic.LoadInt32(&ticks) == 0 {
		t.Fatalf("expected loop to tick at least once")
	}
}

func TestLoopStopDoesNotNeedContextCancel(t *testing.T) {
	loop := NewLoop(5*time.Millisecond, func(time.Duration) {})
	//1.- Start against a context that is never cancelled.
	loop.Start(context.Background())

	stopped := make(chan struct{})
	go func() {
		loop.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop blocked with the context still live")
	}
}

func TestLoopStepDuration(t *testing.T) {
	loop := NewLoop(25*time.Millisecond, func(time.Duration) {})
	if step := loop.StepDuration(); step != 25*time.Millisecond {
		t.Fatalf("unexpected step duration %v", step)
	}
	//1.- A non-positive interval falls back to the 16ms default.
	if step := NewLoop(0, nil).StepDuration(); step != 16*time.Millisecond {
		t.Fatalf("unexpected fallback step %v", step)
	}
}
