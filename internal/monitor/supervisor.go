// Package monitor keeps a small set of camera streams flowing. A Supervisor
// owns one Slot per camera; each Slot owns a Worker that pulls frames in its
// own goroutine. Workers that stop producing frames are retired and replaced
// with fresh ones, and retired workers are tracked until they exit.
package monitor

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/lanikai/camwatch/internal/analytics"
)

type Supervisor struct {
	cfg       Config
	views     map[int]View
	telemetry analytics.Sink

	loop    *loop
	retired retiredSet

	mu    sync.Mutex
	slots []*Slot
}

// New checks the configuration and returns a Supervisor that has not been
// started. Every configured camera index needs a view.
func New(cfg Config, views map[int]View, telemetry analytics.Sink) (*Supervisor, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, i := range cfg.indexes() {
		if views[i] == nil {
			return nil, errors.Errorf("camera %d has no view", i)
		}
	}
	if telemetry == nil {
		telemetry = analytics.Discard
	}
	return &Supervisor{
		cfg:       cfg,
		views:     views,
		telemetry: telemetry,
		loop:      newLoop("supervisor"),
	}, nil
}

// Start launches the supervisor goroutine. Calling it again has no effect.
func (s *Supervisor) Start() {
	s.loop.start(s.run)
}

// RequestStop asks the supervisor to shut down without waiting.
func (s *Supervisor) RequestStop() {
	s.loop.requestStop()
}

// StopSync shuts the supervisor down and waits up to timeout for every slot
// to be stopped. It reports whether shutdown completed in time.
func (s *Supervisor) StopSync(timeout time.Duration) bool {
	s.RequestStop()
	if !s.loop.join(timeout) {
		log.Warn("supervisor did not stop within %v", timeout)
		return false
	}
	return true
}

// Slots returns the slots in camera order. It is empty until the supervisor
// goroutine has built them.
func (s *Supervisor) Slots() []*Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Slot(nil), s.slots...)
}

// RetiredCount is the number of retired workers not yet swept.
func (s *Supervisor) RetiredCount() int {
	return s.retired.Len()
}

func (s *Supervisor) Config() Config {
	return s.cfg
}

func (s *Supervisor) run(ctx context.Context) {
	slots := make([]*Slot, 0, len(s.cfg.URLs))
	for _, i := range s.cfg.indexes() {
		slots = append(slots, newSlot(i, s.cfg.URLs[i], s.views[i], &s.cfg, &s.retired, s.telemetry))
	}
	s.mu.Lock()
	s.slots = slots
	s.mu.Unlock()

	log.Info("watching %d camera(s)", len(slots))
	for _, slot := range slots {
		slot.Start()
	}

	defer s.shutdown(slots)

	now := s.cfg.Clock()
	nextStats := now + s.cfg.StatsInterval
	nextCleanup := now + s.cfg.CleanupInterval

	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		for _, slot := range slots {
			slot.Tick(s.cfg.Clock())
		}

		now = s.cfg.Clock()
		if now >= nextStats {
			s.emitStats(slots)
			nextStats = now + s.cfg.StatsInterval
		}
		if now >= nextCleanup {
			if n := s.retired.Sweep(); n > 0 {
				log.Debug("swept %d retired worker(s), %d remain", n, s.retired.Len())
			}
			nextCleanup = now + s.cfg.CleanupInterval
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Supervisor) emitStats(slots []*Slot) {
	for _, slot := range slots {
		slot.EmitStats(s.telemetry)
	}
	peak := s.retired.ResetPeak()
	s.telemetry.ReportEvent(CategoryMonitor, ActionMaxRetiredWorkers, "", strconv.Itoa(peak))
}

// shutdown retires every current worker, waits for all retired workers within
// one shared bound, then stops each slot.
func (s *Supervisor) shutdown(slots []*Slot) {
	log.Info("stopping")
	for _, slot := range slots {
		slot.discard()
	}
	if stuck := s.retired.JoinAll(s.cfg.ShutdownTimeout); stuck > 0 {
		log.Warn("%d worker(s) still running at shutdown", stuck)
	}
	s.retired.Sweep()
	for _, slot := range slots {
		slot.StopBlocking(s.cfg.SlotStopTimeout)
	}
	log.Info("stopped")
}
