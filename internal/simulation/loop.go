package simulation

import (
	"context"
	"time"
)

// StepFunc advances the simulation by a fixed timestep and may emit side effects.
type StepFunc func(step time.Duration)

// Loop drives a fixed timestep at the configured interval. Late ticks are
// caught up with repeated fixed steps rather than one oversized step.
type Loop struct {
	step     time.Duration
	stepFunc StepFunc
	ticker   *time.Ticker
	quit     chan struct{}
	done     chan struct{}
}

// NewLoop configures a loop ticking at the provided interval.
func NewLoop(interval time.Duration, step StepFunc) *Loop {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	if step == nil {
		step = func(time.Duration) {}
	}
	return &Loop{
		step:     interval,
		stepFunc: step,
	}
}

// Start begins ticking until the context is cancelled or Stop is invoked.
func (l *Loop) Start(ctx context.Context) {
	if l == nil || l.stepFunc == nil {
		return
	}

	l.ticker = time.NewTicker(l.step)
	l.quit = make(chan struct{})
	l.done = make(chan struct{})
	quit := l.quit
	go func() {
		defer close(l.done)
		defer l.ticker.Stop()
		last := time.Now()
		accumulator := time.Duration(0)
		for {
			select {
			case <-ctx.Done():
				return
			case <-quit:
				return
			case now := <-l.ticker.C:
				//1.- Accumulate elapsed time and run fixed steps while catching up.
				accumulator += now.Sub(last)
				last = now
				for accumulator >= l.step {
					l.stepFunc(l.step)
					accumulator -= l.step
				}
			}
		}
	}()
}

// Stop halts the loop and waits for the goroutine to exit. It does not need
// the Start context to be cancelled first.
func (l *Loop) Stop() {
	if l == nil {
		return
	}
	if l.quit != nil {
		close(l.quit)
		l.quit = nil
	}
	if l.done != nil {
		<-l.done
		l.done = nil
	}
}

// StepDuration exposes the configured timestep for testing.
func (l *Loop) StepDuration() time.Duration {
	if l == nil {
		return 0
	}
	return l.step
}
