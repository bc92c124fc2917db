// Package mjpeg grabs frames from Motion-JPEG over HTTP cameras
// (multipart/x-mixed-replace streams).
package mjpeg

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg" // register the JPEG format for image.DecodeConfig
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	gomjpeg "github.com/mattn/go-mjpeg"
	"github.com/pkg/errors"

	"github.com/lanikai/camwatch/internal/logging"
	"github.com/lanikai/camwatch/internal/media"
)

var log = logging.DefaultLogger.WithTag("mjpeg")

func init() {
	media.Register("http", Opener{})
	media.Register("https", Opener{})
}

// Opener opens MJPEG streams. The zero value uses a client with a dial and
// response-header timeout of opts.Timeout.
type Opener struct {
	Client *http.Client
}

func (o Opener) Open(ctx context.Context, url string, opts media.Options) (media.Session, error) {
	if opts.Transport != "" && opts.Transport != "tcp" {
		return nil, errors.Wrapf(media.ErrNotSupported, "mjpeg transport %q", opts.Transport)
	}
	redacted := media.Redact(url)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = media.DefaultTimeout
	}

	client := o.Client
	if client == nil {
		client = newClient(timeout)
	}

	// The request outlives Open, so it gets its own cancel func rather than
	// ctx. Session.Close cancels it.
	reqCtx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, media.CouldNotOpen(err, "%s", redacted)
	}
	req = req.WithContext(reqCtx)

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-stop:
		}
	}()
	resp, err := client.Do(req)
	close(stop)
	if err != nil {
		cancel()
		return nil, media.CouldNotOpen(err, "%s", redacted)
	}
	if resp.StatusCode/100 != 2 {
		resp.Body.Close()
		cancel()
		return nil, media.CouldNotOpen(errors.Errorf("HTTP %s", resp.Status), "%s", redacted)
	}

	dec, err := gomjpeg.NewDecoderFromResponse(resp)
	if err != nil {
		resp.Body.Close()
		cancel()
		return nil, media.CouldNotOpen(err, "%s", redacted)
	}

	log.Info("Opened %s", redacted)
	return &session{
		url:    redacted,
		body:   resp.Body,
		cancel: cancel,
		dec:    dec,
		start:  time.Now(),
	}, nil
}

func newClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   timeout,
			ResponseHeaderTimeout: timeout,
		},
	}
}

type session struct {
	url    string
	body   io.Closer
	cancel context.CancelFunc
	dec    *gomjpeg.Decoder
	start  time.Time

	frame media.Frame

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

func (s *session) Grab() (*media.Frame, error) {
	data, err := s.dec.DecodeRaw()
	if err != nil {
		if s.isClosed() {
			return nil, media.ErrClosed
		}
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrapf(err, "%s: read part", s.url)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "%s: bad jpeg", s.url)
	}

	s.frame = media.Frame{
		Codec:    media.CodecJPEG,
		Width:    cfg.Width,
		Height:   cfg.Height,
		Data:     data,
		KeyFrame: true,
		Time:     time.Since(s.start),
	}
	return &s.frame, nil
}

func (s *session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close cancels the request and closes the response body, which unblocks a
// concurrent DecodeRaw.
func (s *session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.cancel()
		err = s.body.Close()
	})
	return err
}
