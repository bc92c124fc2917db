// Package mediatest provides in-memory media sources for tests.
package mediatest

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/lanikai/camwatch/internal/media"
)

// Session is a media.Session fed by the test. Grab blocks until the test
// pushes a frame, ends the stream, or the session is closed.
type Session struct {
	URL     string
	Options media.Options

	frames    chan *media.Frame
	ended     chan struct{}
	endOnce   sync.Once
	closed    chan struct{}
	closeOnce sync.Once
	closes    int32
}

func NewSession() *Session {
	return &Session{
		frames: make(chan *media.Frame),
		ended:  make(chan struct{}),
		closed: make(chan struct{}),
	}
}

// Push hands f to the next Grab. It returns false if the session was closed
// first.
func (s *Session) Push(f *media.Frame) bool {
	select {
	case s.frames <- f:
		return true
	case <-s.closed:
		return false
	}
}

// End makes pending and future Grab calls report the end of the stream.
func (s *Session) End() {
	s.endOnce.Do(func() { close(s.ended) })
}

func (s *Session) Grab() (*media.Frame, error) {
	select {
	case f := <-s.frames:
		return f, nil
	case <-s.ended:
		return nil, io.EOF
	case <-s.closed:
		return nil, media.ErrClosed
	}
}

func (s *Session) Close() error {
	atomic.AddInt32(&s.closes, 1)
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *Session) IsClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// CloseCalls counts calls to Close, including redundant ones.
func (s *Session) CloseCalls() int {
	return int(atomic.LoadInt32(&s.closes))
}

// Opener hands out a new Session for every Open call, unless told to fail.
type Opener struct {
	mu       sync.Mutex
	err      error
	block    bool
	sessions []*Session
	calls    int

	opened chan *Session
}

func NewOpener() *Opener {
	return &Opener{opened: make(chan *Session, 64)}
}

// FailWith makes subsequent Open calls return err. Pass nil to succeed again.
func (o *Opener) FailWith(err error) {
	o.mu.Lock()
	o.err = err
	o.mu.Unlock()
}

// Block makes subsequent Open calls hang until their context is done, like a
// camera that accepts the TCP connection but never answers.
func (o *Opener) Block(block bool) {
	o.mu.Lock()
	o.block = block
	o.mu.Unlock()
}

func (o *Opener) Open(ctx context.Context, url string, opts media.Options) (media.Session, error) {
	o.mu.Lock()
	o.calls++
	err, block := o.err, o.block
	o.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, media.CouldNotOpen(ctx.Err(), "%s", url)
	}
	if err != nil {
		return nil, err
	}

	s := NewSession()
	s.URL = url
	s.Options = opts

	o.mu.Lock()
	o.sessions = append(o.sessions, s)
	o.mu.Unlock()

	select {
	case o.opened <- s:
	default:
	}
	return s, nil
}

// Opened delivers each session as it is opened.
func (o *Opener) Opened() <-chan *Session {
	return o.opened
}

func (o *Opener) Sessions() []*Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Session(nil), o.sessions...)
}

// Calls counts Open calls, successful or not.
func (o *Opener) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

// Frame returns a small H.264 key frame.
func Frame() *media.Frame {
	return &media.Frame{
		Codec:    media.CodecH264,
		Width:    320,
		Height:   240,
		Data:     []byte{0, 0, 0, 1, 0x65, 0x88},
		KeyFrame: true,
	}
}
