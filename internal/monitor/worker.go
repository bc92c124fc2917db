package monitor

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/lanikai/camwatch/internal/analytics"
	"github.com/lanikai/camwatch/internal/logging"
	"github.com/lanikai/camwatch/internal/media"
)

// Telemetry vocabulary.
const (
	CategoryCam     = "cam"
	CategoryCamSlot = "camwatch_cam"
	CategoryMonitor = "camwatch"

	ActionStart = "start"
	ActionStop  = "stop"
	ActionError = "error"

	ActionMaxStall          = "max_stall_ms"
	ActionMaxRetiredWorkers = "max_retired_workers"
)

// WorkerState is where a Worker is in its life.
type WorkerState int32

const (
	StateIdle WorkerState = iota
	StateConnecting
	StateStreaming
	StateRetryPause
	StateStopped
)

func (s WorkerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateRetryPause:
		return "retry-pause"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("WorkerState(%d)", int32(s))
}

type WorkerConfig struct {
	CamIndex   int
	URL        string
	Generation int

	Opener    media.Opener
	Options   media.Options
	Renderer  Renderer
	Telemetry analytics.Sink

	// Pause between a failed connection attempt and the next one.
	RetryDelay time.Duration

	// How often liveness is pinged during a retry pause.
	LivenessInterval time.Duration
}

// WorkerStats describes the grab calls a worker has made.
type WorkerStats struct {
	Frames    int64
	NullGrabs int64
	Dropped   int64
	MaxGrab   time.Duration
}

// A Worker pulls frames from one camera URL in its own goroutine and hands
// them to a Renderer. It reconnects after connection failures until asked to
// stop. Once stopped, a Worker cannot be restarted.
type Worker struct {
	ID   uuid.UUID
	Name string

	cfg WorkerConfig
	log *logging.Logger

	loop  *loop
	state atomic.Int32

	awaitingFirstFrame atomic.Bool

	// Guards session, so that RequestStop can close a session the worker
	// goroutine is blocked on.
	mu      sync.Mutex
	session media.Session

	frames    atomic.Int64
	nullGrabs atomic.Int64
	dropped   atomic.Int64
	maxGrab   atomic.Int64
}

func NewWorker(cfg WorkerConfig) *Worker {
	if cfg.Telemetry == nil {
		cfg.Telemetry = analytics.Discard
	}
	if cfg.Opener == nil {
		cfg.Opener = media.Registry
	}
	if cfg.LivenessInterval <= 0 {
		cfg.LivenessInterval = time.Second
	}
	name := fmt.Sprintf("grabber-%d-%d", cfg.CamIndex, cfg.Generation)
	w := &Worker{
		ID:   uuid.New(),
		Name: name,
		cfg:  cfg,
		log:  log.WithPrefix(name),
		loop: newLoop(name),
	}
	w.awaitingFirstFrame.Store(true)
	return w
}

// Start launches the worker goroutine. Calling it again has no effect.
func (w *Worker) Start() {
	w.loop.start(w.run)
}

// RequestStop asks the worker to stop and closes its current session, which
// unblocks a pending Grab. It does not wait.
func (w *Worker) RequestStop() {
	w.loop.requestStop()

	w.mu.Lock()
	s := w.session
	w.mu.Unlock()
	if s != nil {
		if err := s.Close(); err != nil {
			w.log.Debug("close on stop: %v", err)
		}
	}
}

// StopAndJoin requests a stop and waits up to timeout for the worker
// goroutine to exit. It reports whether the goroutine exited in time.
func (w *Worker) StopAndJoin(timeout time.Duration) bool {
	w.RequestStop()
	if !w.loop.join(timeout) {
		w.log.Warn("did not stop within %v", timeout)
		return false
	}
	return true
}

func (w *Worker) CamIndex() int { return w.cfg.CamIndex }
func (w *Worker) Generation() int { return w.cfg.Generation }
func (w *Worker) AwaitingFirstFrame() bool { return w.awaitingFirstFrame.Load() }
func (w *Worker) StopRequested() bool { return w.loop.stopRequested() }
func (w *Worker) LoopFinished() bool { return w.loop.isFinished() }
func (w *Worker) State() WorkerState { return WorkerState(w.state.Load()) }
func (w *Worker) setState(s WorkerState) { w.state.Store(int32(s)) }

func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		Frames:    w.frames.Load(),
		NullGrabs: w.nullGrabs.Load(),
		Dropped:   w.dropped.Load(),
		MaxGrab:   time.Duration(w.maxGrab.Load()),
	}
}

func (w *Worker) String() string {
	return w.Name
}

func (w *Worker) run(ctx context.Context) {
	conv := media.NewConverter(w.cfg.Options.PixelFormat)

	defer func() {
		conv.Close()
		w.cfg.Renderer.SetStatus(StatusDisconnected)
		w.setState(StateStopped)
		st := w.Stats()
		w.log.Info("stopped: %d frames, %d null grabs, %d dropped, max grab %v",
			st.Frames, st.NullGrabs, st.Dropped, st.MaxGrab)
	}()

	for !w.StopRequested() {
		if !w.runSession(ctx, conv) {
			return
		}
		w.pause(ctx)
	}
}

// runSession makes one connection attempt and streams until the session ends.
// It reports whether the worker should pause and try again.
func (w *Worker) runSession(ctx context.Context, conv *media.Converter) (retry bool) {
	w.setState(StateConnecting)
	w.cfg.Renderer.SetStatus(StatusConnecting)
	w.log.Info("connecting to %s", media.Redact(w.cfg.URL))

	sess, err := w.cfg.Opener.Open(ctx, w.cfg.URL, w.cfg.Options)
	if err != nil {
		if w.StopRequested() {
			return false
		}
		return w.failed(err, media.IsCouldNotOpen(err))
	}
	if !w.setSession(sess) {
		sess.Close()
		return false
	}
	defer w.closeSession()

	label := strconv.Itoa(w.cfg.CamIndex)
	w.cfg.Telemetry.ReportEvent(CategoryCam, ActionStart, label, "1")
	defer w.cfg.Telemetry.ReportEvent(CategoryCam, ActionStop, label, "1")

	for !w.StopRequested() {
		start := time.Now()
		frame, err := sess.Grab()
		elapsed := time.Since(start)
		if w.StopRequested() {
			return false
		}

		if err != nil && err != io.EOF {
			// Nothing was ever received, so the camera was never really
			// connected.
			return w.failed(errors.Wrap(err, "grab"), w.AwaitingFirstFrame())
		}
		if frame == nil {
			w.nullGrabs.Add(1)
			if w.AwaitingFirstFrame() {
				return w.failed(errors.New("stream ended before the first frame"), true)
			}
			w.log.Info("end of stream")
			return false
		}
		w.recordGrab(elapsed)

		if w.awaitingFirstFrame.Load() {
			// Ping before clearing the flag, so the watchdog never measures
			// a stall from a stale timestamp.
			w.cfg.Renderer.PingLiveness()
			w.awaitingFirstFrame.Store(false)
			w.cfg.Renderer.SetStatus(StatusNone)
			w.setState(StateStreaming)
			w.log.Info("first frame: %v %dx%d", frame.Codec, frame.Width, frame.Height)
		}

		bmp, err := conv.Convert(frame)
		if err != nil {
			if w.dropped.Add(1) == 1 {
				w.log.Warn("dropping frame: %v", err)
			}
			continue
		}
		w.cfg.Renderer.Render(bmp)
	}
	return false
}

func (w *Worker) failed(err error, retry bool) bool {
	w.cfg.Renderer.SetStatus(StatusDisconnected)
	w.cfg.Telemetry.ReportEvent(CategoryCam, ActionError, strconv.Itoa(w.cfg.CamIndex), "1")
	if !retry {
		w.log.Error("%v", err)
		return false
	}
	w.log.Warn("%v; retrying in %v", err, w.cfg.RetryDelay)
	return true
}

// pause waits out the retry delay, pinging liveness so the watchdog leaves
// this worker alone.
func (w *Worker) pause(ctx context.Context) {
	w.setState(StateRetryPause)
	w.cfg.Renderer.PingLiveness()

	delay := time.NewTimer(w.cfg.RetryDelay)
	defer delay.Stop()
	ping := time.NewTicker(w.cfg.LivenessInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-delay.C:
			return
		case <-ping.C:
			w.cfg.Renderer.PingLiveness()
		}
	}
}

func (w *Worker) setSession(s media.Session) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.StopRequested() {
		return false
	}
	w.session = s
	return true
}

func (w *Worker) closeSession() {
	w.mu.Lock()
	s := w.session
	w.session = nil
	w.mu.Unlock()
	if s == nil {
		return
	}
	if err := s.Close(); err != nil {
		w.log.Debug("close: %v", err)
	}
}

func (w *Worker) recordGrab(d time.Duration) {
	w.frames.Add(1)
	for {
		cur := w.maxGrab.Load()
		if int64(d) <= cur || w.maxGrab.CompareAndSwap(cur, int64(d)) {
			return
		}
	}
}
