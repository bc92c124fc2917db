package monitor

import (
	"sync"
	"time"
)

// retiredSet holds workers that were asked to stop but may still be draining.
// Abandoning them outright would leak their goroutines unnoticed.
type retiredSet struct {
	mu      sync.Mutex
	workers []*Worker
	peak    int
}

func (r *retiredSet) Add(w *Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers = append(r.workers, w)
	if len(r.workers) > r.peak {
		r.peak = len(r.workers)
	}
}

func (r *retiredSet) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}

// Sweep drops every worker whose goroutine has exited and returns how many
// were dropped.
func (r *retiredSet) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.workers[:0]
	for _, w := range r.workers {
		if !w.LoopFinished() {
			kept = append(kept, w)
		}
	}
	for i := len(kept); i < len(r.workers); i++ {
		r.workers[i] = nil
	}
	n := len(r.workers) - len(kept)
	r.workers = kept
	return n
}

// JoinAll stops every unfinished worker and waits for them, all within one
// shared timeout. It returns the number still running afterwards.
func (r *retiredSet) JoinAll(timeout time.Duration) int {
	r.mu.Lock()
	workers := append([]*Worker(nil), r.workers...)
	r.mu.Unlock()

	deadline := time.Now().Add(timeout)
	for _, w := range workers {
		w.RequestStop()
	}
	stuck := 0
	for _, w := range workers {
		if w.LoopFinished() {
			continue
		}
		if !w.loop.join(time.Until(deadline)) {
			log.Warn("%v still running after %v", w, timeout)
			stuck++
		}
	}
	return stuck
}

func (r *retiredSet) Peak() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.peak
}

// ResetPeak restarts peak tracking from the current size and returns the old
// peak.
func (r *retiredSet) ResetPeak() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	peak := r.peak
	r.peak = len(r.workers)
	return peak
}
