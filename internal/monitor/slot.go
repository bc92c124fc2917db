package monitor

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/lanikai/camwatch/internal/analytics"
	"github.com/lanikai/camwatch/internal/logging"
)

var spinner = []rune{'|', '/', '-', '\\'}

// A Slot is one camera position. It owns the current Worker for that camera
// and replaces it when the stream stalls.
//
// Start, Tick, StopBlocking and EmitStats are called from the supervisor
// goroutine only. The timestamps are written by the current worker through
// its renderProxy.
type Slot struct {
	index int
	url   string
	view  View
	cfg   *Config
	log   *logging.Logger

	retired   *retiredSet
	telemetry analytics.Sink

	worker  *Worker
	proxy   *renderProxy
	stopped bool

	generation atomic.Int64

	// Clock readings; zero means no signal yet.
	lastRender   atomic.Int64
	lastLiveness atomic.Int64

	currentStall atomic.Int64
	maxStall     atomic.Int64

	spin atomic.Uint32
}

func newSlot(index int, url string, view View, cfg *Config, retired *retiredSet, telemetry analytics.Sink) *Slot {
	if telemetry == nil {
		telemetry = analytics.Discard
	}
	return &Slot{
		index:     index,
		url:       url,
		view:      view,
		cfg:       cfg,
		log:       log.WithPrefix(fmt.Sprintf("cam%d", index)),
		retired:   retired,
		telemetry: telemetry,
	}
}

// Start tells the view it is live and launches the first worker.
func (s *Slot) Start() {
	s.view.OnStart()
	s.startWorker()
}

// Tick checks the current worker for a stall and replaces it if the stall
// exceeds the configured timeout. It reports whether a replacement happened.
func (s *Slot) Tick(now time.Duration) bool {
	w := s.worker
	if w == nil || w.AwaitingFirstFrame() {
		return false
	}

	latest := s.lastRender.Load()
	if l := s.lastLiveness.Load(); l > latest {
		latest = l
	}
	if latest == 0 {
		return false
	}

	stall := int64(now) - latest
	if stall < 0 {
		stall = 0
	}
	s.currentStall.Store(stall)
	for {
		cur := s.maxStall.Load()
		if stall <= cur || s.maxStall.CompareAndSwap(cur, stall) {
			break
		}
	}

	if time.Duration(stall) <= s.cfg.StallTimeout {
		return false
	}
	s.log.Warn("%v stalled for %v, replacing", w, time.Duration(stall))
	s.discard()
	s.startWorker()
	return true
}

// StopBlocking stops the current worker, waiting up to timeout for it, then
// tells the view it is done. A worker that does not exit in time goes to the
// retired set. Later calls do nothing.
func (s *Slot) StopBlocking(timeout time.Duration) {
	if s.stopped {
		return
	}
	s.stopped = true

	if s.proxy != nil {
		s.proxy.invalidate()
		s.proxy = nil
	}
	if w := s.worker; w != nil {
		s.worker = nil
		if !w.StopAndJoin(timeout) {
			s.retired.Add(w)
		}
	}
	s.view.OnStop()
}

// EmitStats reports the largest stall seen since the previous call.
func (s *Slot) EmitStats(sink analytics.Sink) {
	peak := time.Duration(s.maxStall.Swap(0))
	sink.ReportEvent(CategoryCamSlot, ActionMaxStall, strconv.Itoa(s.index),
		strconv.FormatInt(peak.Milliseconds(), 10))
}

func (s *Slot) Index() int      { return s.index }
func (s *Slot) URL() string     { return s.url }
func (s *Slot) Generation() int { return int(s.generation.Load()) }

// Worker returns the current worker, or nil once stopped. Only safe to call
// from the goroutine driving the slot, or after the supervisor has stopped.
func (s *Slot) Worker() *Worker { return s.worker }

func (s *Slot) CurrentStall() time.Duration {
	return time.Duration(s.currentStall.Load())
}

func (s *Slot) MaxStall() time.Duration {
	return time.Duration(s.maxStall.Load())
}

// discard detaches the current worker and hands it to the retired set.
func (s *Slot) discard() {
	if s.proxy != nil {
		s.proxy.invalidate()
		s.proxy = nil
	}
	if w := s.worker; w != nil {
		s.worker = nil
		s.retired.Add(w)
		w.RequestStop()
	}
}

func (s *Slot) startWorker() {
	gen := s.generation.Add(1)
	s.lastRender.Store(0)
	s.lastLiveness.Store(0)
	s.currentStall.Store(0)

	s.proxy = newRenderProxy(s)
	s.worker = NewWorker(WorkerConfig{
		CamIndex:         s.index,
		URL:              s.url,
		Generation:       int(gen),
		Opener:           s.cfg.Opener,
		Options:          s.cfg.Options,
		Renderer:         s.proxy,
		Telemetry:        s.telemetry,
		RetryDelay:       s.cfg.RetryDelay,
		LivenessInterval: s.cfg.LivenessInterval,
	})
	s.worker.Start()
}

func (s *Slot) pingRender() {
	now := s.cfg.Clock()
	s.lastRender.Store(int64(now))
	if s.cfg.DebugDisplay {
		s.view.SetStatus(s.debugStatus())
	}
}

func (s *Slot) pingLiveness() {
	s.lastLiveness.Store(int64(s.cfg.Clock()))
}

func (s *Slot) debugStatus() string {
	r := spinner[s.spin.Add(1)%uint32(len(spinner))]
	return fmt.Sprintf("%c %d - ex %d\n%d < %d ms", r, s.Generation(), s.retired.Len(),
		s.CurrentStall().Milliseconds(), s.MaxStall().Milliseconds())
}
