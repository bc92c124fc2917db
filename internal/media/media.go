package media

import (
	"fmt"
	"time"
)

// Codec identifies the encoding of a Frame payload.
type Codec int

const (
	CodecUnknown Codec = iota
	CodecH264          // AVCC (length-prefixed) or Annex B NAL units
	CodecJPEG          // one complete JPEG image
	CodecRGBA          // packed 8-bit RGBA, row stride 4*Width
)

func (c Codec) String() string {
	switch c {
	case CodecH264:
		return "H264"
	case CodecJPEG:
		return "JPEG"
	case CodecRGBA:
		return "RGBA"
	default:
		return fmt.Sprintf("Codec(%d)", int(c))
	}
}

// A Frame is one unit of video grabbed from a Session. The Data slice belongs
// to the session and is only valid until the next call to Grab.
type Frame struct {
	Codec    Codec
	Width    int
	Height   int
	Data     []byte
	KeyFrame bool

	// Presentation time relative to the start of the stream.
	Time time.Duration
}

// A Bitmap is a frame prepared for display.
type Bitmap struct {
	Width  int
	Height int
	Format PixelFormat

	// Codec of Pix when Format is PixelFormatNative.
	Codec Codec

	Pix    []byte
	Stride int
}

// PixelFormat selects what a Converter produces.
type PixelFormat int

const (
	// Hand the source payload through untouched. Renderers receive the
	// encoded frame and no colour-space conversion happens on the delivery
	// path.
	PixelFormatNative PixelFormat = iota

	// Decode into packed RGBA.
	PixelFormatRGBA
)

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatNative:
		return "native"
	case PixelFormatRGBA:
		return "rgba"
	default:
		return fmt.Sprintf("PixelFormat(%d)", int(f))
	}
}

// ParsePixelFormat accepts the names returned by PixelFormat.String.
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch s {
	case "native", "":
		return PixelFormatNative, nil
	case "rgba":
		return PixelFormatRGBA, nil
	}
	return 0, fmt.Errorf("unknown pixel format %q", s)
}
