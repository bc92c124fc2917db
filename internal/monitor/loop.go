package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// A loop runs a long-running function in its own goroutine, at most once.
// The function should return promptly once its context is canceled.
type loop struct {
	name string

	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	started   atomic.Bool
	finished  atomic.Bool

	// Closed when the run function returns.
	terminated chan struct{}
}

func newLoop(name string) *loop {
	ctx, cancel := context.WithCancel(context.Background())
	return &loop{
		name:       name,
		ctx:        ctx,
		cancel:     cancel,
		terminated: make(chan struct{}),
	}
}

// start launches run. Later calls do nothing. If stop was already requested,
// run is skipped and the loop counts as finished right away.
func (l *loop) start(run func(ctx context.Context)) {
	l.startOnce.Do(func() {
		l.started.Store(true)
		go func() {
			defer close(l.terminated)
			defer l.finished.Store(true)
			if l.ctx.Err() != nil {
				return
			}
			log.Trace(2, "%s: loop started", l.name)
			run(l.ctx)
			log.Trace(2, "%s: loop finished", l.name)
		}()
	})
}

func (l *loop) requestStop() {
	l.cancel()
}

func (l *loop) stopRequested() bool {
	return l.ctx.Err() != nil
}

func (l *loop) isFinished() bool {
	return l.finished.Load()
}

// join waits up to timeout for the run function to return. A loop that was
// never started has nothing to wait for.
func (l *loop) join(timeout time.Duration) bool {
	if !l.started.Load() {
		return true
	}
	if timeout <= 0 {
		return l.isFinished()
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-l.terminated:
		return true
	case <-t.C:
		return false
	}
}
