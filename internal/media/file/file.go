//////////////////////////////////////////////////////////////////////////////
//
// Recorded video files played back as live camera sources
//
// Copyright 2019 Lanikai Labs. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

// Package file plays back recorded video files as if they were live cameras.
// URLs have the form file:///path/to/clip.mp4 or file:///path/to/clip.h264;
// the extension selects the container.
package file

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/lanikai/camwatch/internal/logging"
	"github.com/lanikai/camwatch/internal/media"
)

var log = logging.DefaultLogger.WithTag("file")

func init() {
	media.Register("file", Opener{})
}

// Default pacing for raw H.264 files, which carry no timestamps.
const DefaultFrameRate = 25

type Opener struct {
	// Frame rate used to pace raw H.264 playback. Zero means DefaultFrameRate.
	FrameRate int
}

func (o Opener) Open(ctx context.Context, rawurl string, opts media.Options) (media.Session, error) {
	path, err := filePath(rawurl)
	if err != nil {
		return nil, media.CouldNotOpen(err, "%s", rawurl)
	}
	if err := ctx.Err(); err != nil {
		return nil, media.CouldNotOpen(err, "%s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".m4v", ".mov":
		return openMP4(path)
	case ".h264", ".264":
		rate := o.FrameRate
		if rate <= 0 {
			rate = DefaultFrameRate
		}
		return openH264(path, time.Second/time.Duration(rate))
	}
	return nil, errors.Wrapf(media.ErrNotSupported, "file type %q", filepath.Ext(path))
}

func filePath(rawurl string) (string, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", err
	}
	if u.Scheme != "file" {
		return "", errors.Errorf("not a file URL: %s", rawurl)
	}
	path := u.Path
	if path == "" {
		// file:relative/path
		path = u.Opaque
	}
	if path == "" {
		return "", errors.New("empty file path")
	}
	return path, nil
}

// pacer sleeps until each frame's presentation time, and can be interrupted
// by close.
type pacer struct {
	start time.Time
	quit  chan struct{}
	once  sync.Once
}

func newPacer() *pacer {
	return &pacer{quit: make(chan struct{})}
}

// wait blocks until pts has elapsed since the first call. It returns false if
// the pacer was closed.
func (p *pacer) wait(pts time.Duration) bool {
	if p.start.IsZero() {
		// The first frame is presented immediately.
		p.start = time.Now().Add(-pts)
	}
	d := time.Until(p.start.Add(pts))
	if d <= 0 {
		select {
		case <-p.quit:
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-p.quit:
		return false
	}
}

func (p *pacer) close() {
	p.once.Do(func() { close(p.quit) })
}
