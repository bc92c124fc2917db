package file

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/lanikai/camwatch/internal/media"
)

// Plays a raw Annex B H.264 file. Non-picture NAL units (SPS, PPS, SEI) are
// gathered and delivered together with the next picture, so every frame is
// decodable on its own once the parameter sets have been seen.
type h264Session struct {
	file   *os.File
	reader *media.NALUReader
	pacer  *pacer
	period time.Duration

	pts   time.Duration
	buf   []byte
	frame media.Frame

	closeOnce sync.Once
}

func openH264(path string, period time.Duration) (media.Session, error) {
	log.Info("Opening file %s", path)
	file, err := os.Open(path)
	if err != nil {
		return nil, media.CouldNotOpen(err, "%s", path)
	}
	return &h264Session{
		file:   file,
		reader: media.NewNALUReader(file),
		pacer:  newPacer(),
		period: period,
	}, nil
}

func (s *h264Session) Grab() (*media.Frame, error) {
	s.buf = s.buf[:0]
	for {
		nalu, err := s.reader.ReadNALU()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			select {
			case <-s.pacer.quit:
				return nil, media.ErrClosed
			default:
			}
			return nil, errors.Wrapf(err, "%s: read nalu", s.file.Name())
		}

		s.buf = media.AppendAnnexB(s.buf, nalu)
		if !media.IsVCL(nalu) {
			continue
		}

		if !s.pacer.wait(s.pts) {
			return nil, media.ErrClosed
		}
		s.frame = media.Frame{
			Codec:    media.CodecH264,
			Data:     s.buf,
			KeyFrame: media.IsKeyFrame(nalu),
			Time:     s.pts,
		}
		s.pts += s.period
		return &s.frame, nil
	}
}

func (s *h264Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.pacer.close()
		err = s.file.Close()
	})
	return err
}
