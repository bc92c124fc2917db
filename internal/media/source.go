package media

import (
	"context"
	"time"
)

// Options passed to an Opener. Sources ignore options that do not apply to
// them, but must reject a Transport they cannot honour.
type Options struct {
	// Network transport for the media stream, e.g. "tcp".
	Transport string

	// Connect and read timeout, pushed down to the underlying connection.
	Timeout time.Duration

	// Format the consumer will convert frames into. Sources that can decode
	// directly into this format may do so.
	PixelFormat PixelFormat
}

const DefaultTimeout = 2 * time.Second

func DefaultOptions() Options {
	return Options{
		Transport:   "tcp",
		Timeout:     DefaultTimeout,
		PixelFormat: PixelFormatNative,
	}
}

/*
An Opener establishes a Session for a stream URL. Open blocks until the stream
is ready to deliver frames, the context is done, or the connection fails.
Failures to establish the stream wrap ErrCouldNotOpen.

A Session is a blocking, stateful frame grabber:

	sess, err := opener.Open(ctx, url, media.DefaultOptions())
	if err != nil {
		// errors.Cause(err) == media.ErrCouldNotOpen
	}
	defer sess.Close()
	for {
		frame, err := sess.Grab()
		if frame == nil || err != nil {
			break // end of stream, or failure
		}
		// Use frame.Data before the next Grab.
	}

Close must be idempotent and safe to call from another goroutine while Grab is
blocked; it forces the underlying connection closed so that Grab returns.
*/
type Opener interface {
	Open(ctx context.Context, url string, opts Options) (Session, error)
}

type Session interface {
	// Grab blocks until the next frame is available. It returns (nil, nil)
	// or (nil, io.EOF) at the end of the stream.
	Grab() (*Frame, error)

	Close() error
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, url string, opts Options) (Session, error)

func (f OpenerFunc) Open(ctx context.Context, url string, opts Options) (Session, error) {
	return f(ctx, url, opts)
}
