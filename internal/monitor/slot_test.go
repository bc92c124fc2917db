package monitor

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanikai/camwatch/internal/analytics"
	"github.com/lanikai/camwatch/internal/media"
	"github.com/lanikai/camwatch/internal/media/mediatest"
)

type slotFixture struct {
	opener  *mediatest.Opener
	view    *recorder
	clock   *manualClock
	events  *analytics.Recorder
	retired *retiredSet
	cfg     Config
	slot    *Slot
}

func newSlotFixture(t *testing.T, debug bool) *slotFixture {
	f := &slotFixture{
		opener:  mediatest.NewOpener(),
		view:    &recorder{},
		clock:   newManualClock(),
		events:  &analytics.Recorder{},
		retired: &retiredSet{},
	}
	f.cfg = DefaultConfig()
	f.cfg.Opener = f.opener
	f.cfg.Clock = f.clock.Now
	f.cfg.RetryDelay = 20 * time.Millisecond
	f.cfg.LivenessInterval = 5 * time.Millisecond
	f.cfg.DebugDisplay = debug
	f.slot = newSlot(1, "test://camera", f.view, &f.cfg, f.retired, f.events)
	t.Cleanup(func() {
		f.slot.StopBlocking(waitFor)
		f.retired.JoinAll(waitFor)
	})
	return f
}

// stream starts the slot and waits for the first frame to be rendered.
func (f *slotFixture) stream(t *testing.T) *mediatest.Session {
	t.Helper()
	f.slot.Start()
	s := nextSession(t, f.opener)
	f.deliver(t, s)
	return s
}

func (f *slotFixture) deliver(t *testing.T, s *mediatest.Session) {
	t.Helper()
	n := f.view.Frames()
	require.True(t, s.Push(mediatest.Frame()))
	require.Eventually(t, func() bool { return f.view.Frames() > n }, waitFor, pollAt)
}

func TestSlotStart(t *testing.T) {
	f := newSlotFixture(t, false)
	f.slot.Start()
	nextSession(t, f.opener)

	assert.Equal(t, 1, f.view.Starts())
	assert.Equal(t, 1, f.slot.Generation())
	require.NotNil(t, f.slot.Worker())
	assert.Equal(t, "grabber-1-1", f.slot.Worker().Name)
	require.Eventually(t, func() bool { return f.view.hasStatus(StatusConnecting) }, waitFor, pollAt)
}

func TestSlotNeverDiscardsWorkerAwaitingFirstFrame(t *testing.T) {
	f := newSlotFixture(t, false)
	f.slot.Start()
	nextSession(t, f.opener)

	f.clock.Advance(time.Hour)
	assert.False(t, f.slot.Tick(f.clock.Now()))
	assert.Equal(t, 1, f.slot.Generation())
	assert.Zero(t, f.retired.Len())
}

func TestSlotDiscardsStalledWorker(t *testing.T) {
	f := newSlotFixture(t, false)
	s := f.stream(t)
	old := f.slot.Worker()

	f.clock.Advance(8001 * time.Millisecond)
	assert.True(t, f.slot.Tick(f.clock.Now()))

	assert.Equal(t, 2, f.slot.Generation())
	assert.NotSame(t, old, f.slot.Worker())
	assert.Equal(t, 1, f.retired.Len())
	assert.True(t, old.StopRequested())
	require.Eventually(t, old.LoopFinished, waitFor, pollAt)
	assert.True(t, s.IsClosed())

	// The replacement starts from scratch.
	assert.True(t, f.slot.Worker().AwaitingFirstFrame())
	assert.Zero(t, f.slot.lastRender.Load())
	assert.Zero(t, f.slot.lastLiveness.Load())
	nextSession(t, f.opener)
}

func TestSlotKeepsWorkerUpToStallTimeout(t *testing.T) {
	f := newSlotFixture(t, false)
	f.stream(t)

	f.clock.Advance(7999 * time.Millisecond)
	assert.False(t, f.slot.Tick(f.clock.Now()))
	assert.Equal(t, 7999*time.Millisecond, f.slot.CurrentStall())

	f.clock.Advance(time.Millisecond)
	assert.False(t, f.slot.Tick(f.clock.Now()))
	assert.Equal(t, 1, f.slot.Generation())
	assert.Equal(t, 8*time.Second, f.slot.MaxStall())
}

func TestSlotLivenessPreventsDiscard(t *testing.T) {
	f := newSlotFixture(t, false)
	f.stream(t)

	for i := 0; i < 10; i++ {
		f.clock.Advance(2 * time.Second)
		f.slot.proxy.PingLiveness()
		assert.False(t, f.slot.Tick(f.clock.Now()))
	}
	assert.Equal(t, 1, f.slot.Generation())
	assert.Equal(t, time.Duration(0), f.slot.CurrentStall())
}

func TestSlotFramesPreventDiscard(t *testing.T) {
	f := newSlotFixture(t, false)
	s := f.stream(t)

	for i := 0; i < 5; i++ {
		f.clock.Advance(5 * time.Second)
		f.deliver(t, s)
		assert.False(t, f.slot.Tick(f.clock.Now()))
	}
	assert.Equal(t, 1, f.slot.Generation())
}

func TestInvalidatedProxyHasNoEffect(t *testing.T) {
	f := newSlotFixture(t, false)

	p := newRenderProxy(f.slot)
	p.invalidate()
	assert.False(t, p.isValid())
	p.Render(&media.Bitmap{})
	p.SetStatus("late")
	p.PingLiveness()

	assert.Zero(t, f.view.Frames())
	assert.Empty(t, f.view.Statuses())
	assert.Zero(t, f.slot.lastRender.Load())
	assert.Zero(t, f.slot.lastLiveness.Load())

	live := newRenderProxy(f.slot)
	live.Render(&media.Bitmap{})
	live.PingLiveness()
	assert.Equal(t, 1, f.view.Frames())
	assert.Equal(t, int64(f.clock.Now()), f.slot.lastRender.Load())
	assert.Equal(t, int64(f.clock.Now()), f.slot.lastLiveness.Load())
}

func TestSlotStopBlocking(t *testing.T) {
	f := newSlotFixture(t, false)
	s := f.stream(t)
	w := f.slot.Worker()

	f.slot.StopBlocking(waitFor)
	f.slot.StopBlocking(waitFor)

	assert.Nil(t, f.slot.Worker())
	assert.Equal(t, 1, f.view.Stops())
	assert.True(t, w.LoopFinished())
	assert.True(t, s.IsClosed())
	assert.Zero(t, f.retired.Len())
	assert.False(t, f.slot.Tick(f.clock.Now()))
}

func TestSlotEmitStats(t *testing.T) {
	f := newSlotFixture(t, false)
	f.stream(t)

	f.clock.Advance(3 * time.Second)
	f.slot.Tick(f.clock.Now())
	f.slot.EmitStats(f.events)

	assert.Equal(t, []analytics.Event{
		{Category: CategoryCamSlot, Action: ActionMaxStall, Label: "1", Value: "3000"},
	}, f.events.Find(CategoryCamSlot, ActionMaxStall))
	assert.Zero(t, f.slot.MaxStall())
}

func TestSlotDebugDisplay(t *testing.T) {
	f := newSlotFixture(t, true)
	f.stream(t)

	assert.Regexp(t, regexp.MustCompile(`^[|/\\-] 1 - ex 0\n0 < 0 ms$`), f.view.LastStatus())
}
