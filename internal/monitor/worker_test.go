package monitor

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanikai/camwatch/internal/analytics"
	"github.com/lanikai/camwatch/internal/media"
	"github.com/lanikai/camwatch/internal/media/mediatest"
)

func newTestWorker(opener media.Opener, r Renderer, telemetry analytics.Sink) *Worker {
	return NewWorker(WorkerConfig{
		CamIndex:         2,
		URL:              "test://camera",
		Generation:       1,
		Opener:           opener,
		Options:          media.DefaultOptions(),
		Renderer:         r,
		Telemetry:        telemetry,
		RetryDelay:       20 * time.Millisecond,
		LivenessInterval: 5 * time.Millisecond,
	})
}

func nextSession(t *testing.T, o *mediatest.Opener) *mediatest.Session {
	t.Helper()
	select {
	case s := <-o.Opened():
		return s
	case <-time.After(waitFor):
		t.Fatal("no session opened")
		return nil
	}
}

func TestWorkerName(t *testing.T) {
	w := newTestWorker(mediatest.NewOpener(), &recorder{}, nil)
	assert.Equal(t, "grabber-2-1", w.Name)
	assert.NotEqual(t, w.ID, newTestWorker(mediatest.NewOpener(), &recorder{}, nil).ID)
	assert.Equal(t, StateIdle, w.State())
	assert.True(t, w.AwaitingFirstFrame())
}

func TestWorkerConnectingBeforeFirstFrame(t *testing.T) {
	opener := mediatest.NewOpener()
	opener.Block(true)
	r := &recorder{}
	w := newTestWorker(opener, r, nil)
	w.Start()
	w.Start()

	require.Eventually(t, func() bool { return r.hasStatus(StatusConnecting) }, waitFor, pollAt)
	assert.Equal(t, StateConnecting, w.State())
	assert.True(t, w.AwaitingFirstFrame())
	assert.Zero(t, r.Frames())

	require.True(t, w.StopAndJoin(waitFor))
	assert.True(t, w.LoopFinished())
	assert.Equal(t, StateStopped, w.State())
	assert.Equal(t, StatusDisconnected, r.LastStatus())
	assert.Equal(t, 1, opener.Calls())
}

func TestWorkerFirstFrame(t *testing.T) {
	opener := mediatest.NewOpener()
	r := &recorder{}
	w := newTestWorker(opener, r, nil)
	w.Start()
	defer w.StopAndJoin(waitFor)

	s := nextSession(t, opener)
	require.True(t, s.Push(mediatest.Frame()))
	require.Eventually(t, func() bool { return r.Frames() == 1 }, waitFor, pollAt)

	assert.False(t, w.AwaitingFirstFrame())
	assert.Equal(t, StateStreaming, w.State())
	assert.Equal(t, []string{"status:Connecting", "ping", "status:", "render"}, r.Calls())

	require.True(t, s.Push(mediatest.Frame()))
	require.Eventually(t, func() bool { return r.Frames() == 2 }, waitFor, pollAt)
	assert.EqualValues(t, 2, w.Stats().Frames)
}

func TestWorkerRequestStopUnblocksGrab(t *testing.T) {
	opener := mediatest.NewOpener()
	r := &recorder{}
	w := newTestWorker(opener, r, nil)
	w.Start()

	s := nextSession(t, opener)
	w.RequestStop()
	assert.True(t, w.StopRequested())
	require.True(t, w.StopAndJoin(time.Second))
	assert.True(t, w.LoopFinished())
	assert.True(t, s.IsClosed())
	assert.Equal(t, 1, opener.Calls())
}

func TestWorkerRetriesAfterOpenFailure(t *testing.T) {
	opener := mediatest.NewOpener()
	opener.FailWith(media.CouldNotOpen(errors.New("connection refused"), "test://camera"))
	r := &recorder{}
	rec := &analytics.Recorder{}
	w := newTestWorker(opener, r, rec)
	w.Start()
	defer w.StopAndJoin(waitFor)

	require.Eventually(t, func() bool { return opener.Calls() >= 2 }, waitFor, pollAt)
	assert.True(t, r.hasStatus(StatusDisconnected))
	assert.NotZero(t, r.Pings())
	assert.NotEmpty(t, rec.Find(CategoryCam, ActionError))
	assert.False(t, w.LoopFinished())

	opener.FailWith(nil)
	s := nextSession(t, opener)
	require.True(t, s.Push(mediatest.Frame()))
	require.Eventually(t, func() bool { return r.Frames() == 1 }, waitFor, pollAt)
	assert.Len(t, rec.Find(CategoryCam, ActionStart), 1)
}

func TestWorkerGivesUpOnOtherOpenErrors(t *testing.T) {
	opener := mediatest.NewOpener()
	opener.FailWith(errors.Wrap(media.ErrNotSupported, "transport udp"))
	r := &recorder{}
	w := newTestWorker(opener, r, nil)
	w.Start()

	require.Eventually(t, w.LoopFinished, waitFor, pollAt)
	assert.Equal(t, 1, opener.Calls())
	assert.Equal(t, StatusDisconnected, r.LastStatus())
}

func TestWorkerStopDuringRetryPause(t *testing.T) {
	opener := mediatest.NewOpener()
	opener.FailWith(media.CouldNotOpen(nil, "unreachable"))
	w := NewWorker(WorkerConfig{
		CamIndex:   1,
		URL:        "test://camera",
		Opener:     opener,
		Renderer:   &recorder{},
		RetryDelay: time.Hour,
	})
	w.Start()

	require.Eventually(t, func() bool { return w.State() == StateRetryPause }, waitFor, pollAt)
	start := time.Now()
	require.True(t, w.StopAndJoin(time.Second))
	assert.Less(t, int64(time.Since(start)), int64(time.Second))
	assert.Equal(t, 1, opener.Calls())
}

func TestWorkerGrabErrorBeforeFirstFrameRetries(t *testing.T) {
	opener := mediatest.NewOpener()
	r := &recorder{}
	w := newTestWorker(opener, r, nil)
	w.Start()
	defer w.StopAndJoin(waitFor)

	s := nextSession(t, opener)
	s.Close()

	second := nextSession(t, opener)
	assert.NotSame(t, s, second)
	assert.True(t, r.hasStatus(StatusDisconnected))
	assert.True(t, w.AwaitingFirstFrame())
}

func TestWorkerEndOfStreamStops(t *testing.T) {
	opener := mediatest.NewOpener()
	r := &recorder{}
	rec := &analytics.Recorder{}
	w := newTestWorker(opener, r, rec)
	w.Start()

	s := nextSession(t, opener)
	require.True(t, s.Push(mediatest.Frame()))
	s.End()

	require.Eventually(t, w.LoopFinished, waitFor, pollAt)
	assert.Equal(t, 1, opener.Calls())
	assert.True(t, s.IsClosed())
	assert.EqualValues(t, 1, w.Stats().NullGrabs)
	assert.Equal(t, StatusDisconnected, r.LastStatus())
	assert.Equal(t, []analytics.Event{
		{Category: CategoryCam, Action: ActionStart, Label: "2", Value: "1"},
		{Category: CategoryCam, Action: ActionStop, Label: "2", Value: "1"},
	}, rec.Events())
}

func TestWorkerDropsUnconvertibleFrames(t *testing.T) {
	opener := mediatest.NewOpener()
	r := &recorder{}
	opts := media.DefaultOptions()
	opts.PixelFormat = media.PixelFormatRGBA
	w := NewWorker(WorkerConfig{
		CamIndex: 1,
		URL:      "test://camera",
		Opener:   opener,
		Options:  opts,
		Renderer: r,
	})
	w.Start()
	defer w.StopAndJoin(waitFor)

	s := nextSession(t, opener)
	require.True(t, s.Push(mediatest.Frame()))
	require.Eventually(t, func() bool { return w.Stats().Dropped == 1 }, waitFor, pollAt)
	assert.False(t, w.AwaitingFirstFrame())
	assert.Zero(t, r.Frames())
}

func TestWorkerEndOfStreamBeforeFirstFrameRetries(t *testing.T) {
	opener := mediatest.NewOpener()
	w := newTestWorker(opener, &recorder{}, nil)
	w.Start()
	defer w.StopAndJoin(waitFor)

	nextSession(t, opener).End()
	nextSession(t, opener)
	assert.False(t, w.LoopFinished())
}
