package rtsp

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nareix/joy4/av"
	joy "github.com/nareix/joy4/format/rtsp"
	errors "golang.org/x/xerrors"

	"github.com/lanikai/camwatch/internal/media"
)

// Interval between RTP keep-alives (GET_PARAMETER) while streaming.
const keepAliveInterval = 10 * time.Second

func init() {
	media.Register("rtsp", Opener{})
}

// Opener opens RTSP sessions using RTP interleaved over the RTSP TCP
// connection.
type Opener struct{}

func (Opener) Open(ctx context.Context, uri string, opts media.Options) (media.Session, error) {
	if opts.Transport != "" && opts.Transport != "tcp" {
		return nil, errors.Errorf("rtsp transport %q: %w", opts.Transport, media.ErrNotSupported)
	}

	u, err := ParseURL(uri)
	if err != nil {
		return nil, media.CouldNotOpen(err, "%s", media.Redact(uri))
	}
	redacted := media.Redact(u.String())

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = media.DefaultTimeout
	}

	log.Debug("Dialing %s (timeout %v)", redacted, timeout)
	cli, err := joy.DialTimeout(u.String(), timeout)
	if err != nil {
		return nil, media.CouldNotOpen(err, "%s", redacted)
	}
	cli.RtspTimeout = timeout
	cli.RtpTimeout = timeout
	cli.RtpKeepAliveTimeout = keepAliveInterval

	s := &session{cli: cli, url: redacted, videoIdx: -1}

	// DESCRIBE may block for up to the timeout. Honour ctx by closing the
	// connection underneath it.
	unwatch := s.closeOnDone(ctx)
	streams, err := cli.Streams()
	unwatch()
	if err != nil {
		s.Close()
		return nil, media.CouldNotOpen(err, "describe %s", redacted)
	}

	for i, stream := range streams {
		if !stream.Type().IsVideo() {
			log.Debug("%s: skipping %v stream", redacted, stream.Type())
			continue
		}
		if stream.Type() != av.H264 {
			log.Warn("%s: unsupported video codec %v", redacted, stream.Type())
			continue
		}
		s.videoIdx = int8(i)
		if vc, ok := stream.(av.VideoCodecData); ok {
			s.width, s.height = vc.Width(), vc.Height()
		}
		break
	}
	if s.videoIdx < 0 {
		s.Close()
		return nil, errors.Errorf("%s: no H.264 video stream: %w", redacted, media.ErrNotSupported)
	}

	log.Info("Opened %s: H264 %dx%d", redacted, s.width, s.height)
	return s, nil
}

type session struct {
	cli *joy.Client
	url string

	videoIdx      int8
	width, height int

	frame media.Frame

	closeOnce sync.Once
	closed    int32
}

func (s *session) closeOnDone(ctx context.Context) (unwatch func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}

func (s *session) Grab() (*media.Frame, error) {
	for {
		pkt, err := s.cli.ReadPacket()
		if err != nil {
			if atomic.LoadInt32(&s.closed) != 0 {
				return nil, media.ErrClosed
			}
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, errors.Errorf("%s: read packet: %w", s.url, err)
		}
		if pkt.Idx != s.videoIdx {
			continue
		}

		s.frame = media.Frame{
			Codec:    media.CodecH264,
			Width:    s.width,
			Height:   s.height,
			Data:     pkt.Data,
			KeyFrame: pkt.IsKeyFrame,
			Time:     pkt.Time,
		}
		return &s.frame, nil
	}
}

// Close tears down the RTSP connection. Closing the TCP connection unblocks a
// concurrent ReadPacket.
func (s *session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		atomic.StoreInt32(&s.closed, 1)
		err = s.cli.Close()
		if err != nil {
			log.Debug("%s: close: %v", s.url, err)
		}
	})
	return err
}
