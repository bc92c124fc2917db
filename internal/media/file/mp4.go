package file

import (
	"io"
	"os"
	"sync"

	"github.com/nareix/joy4/av"
	"github.com/nareix/joy4/format/mp4"
	"github.com/pkg/errors"

	"github.com/lanikai/camwatch/internal/media"
)

type mp4Session struct {
	file    *os.File
	demuxer *mp4.Demuxer
	pacer   *pacer

	videoIdx int8
	info     av.VideoCodecData

	frame media.Frame

	closeOnce sync.Once
}

func openMP4(path string) (media.Session, error) {
	log.Info("Opening file %s", path)
	file, err := os.Open(path)
	if err != nil {
		return nil, media.CouldNotOpen(err, "%s", path)
	}

	demuxer := mp4.NewDemuxer(file)
	codecs, err := demuxer.Streams()
	if err != nil {
		file.Close()
		return nil, media.CouldNotOpen(err, "%s", path)
	}

	s := &mp4Session{file: file, demuxer: demuxer, pacer: newPacer(), videoIdx: -1}
	for i, codec := range codecs {
		if codec.Type() != av.H264 {
			log.Debug("Skipping %v stream", codec.Type())
			continue
		}
		s.videoIdx = int8(i)
		s.info = codec.(av.VideoCodecData)
		log.Info("%v stream: %dx%d", s.info.Type(), s.info.Width(), s.info.Height())
		break
	}
	if s.videoIdx < 0 {
		file.Close()
		return nil, errors.Wrapf(media.ErrNotSupported, "%s: no H.264 video stream", path)
	}
	return s, nil
}

func (s *mp4Session) Grab() (*media.Frame, error) {
	for {
		pkt, err := s.demuxer.ReadPacket()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, errors.Wrapf(err, "%s: read packet", s.file.Name())
		}
		if pkt.Idx != s.videoIdx {
			continue
		}

		// Sleep until this packet is ready to be presented.
		if !s.pacer.wait(pkt.Time) {
			return nil, media.ErrClosed
		}

		s.frame = media.Frame{
			Codec:    media.CodecH264,
			Width:    s.info.Width(),
			Height:   s.info.Height(),
			Data:     pkt.Data,
			KeyFrame: pkt.IsKeyFrame,
			Time:     pkt.Time,
		}
		return &s.frame, nil
	}
}

func (s *mp4Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.pacer.close()
		err = s.file.Close()
	})
	return err
}
