package media

import (
	"bytes"
	"image"
	"image/draw"
	"image/jpeg"
	"sync"

	"github.com/pkg/errors"
)

// A Converter turns grabbed frames into bitmaps. It owns a reusable pixel
// buffer, so the Bitmap returned by Convert is only valid until the next call.
// A Converter is used by one goroutine at a time.
type Converter struct {
	format PixelFormat

	rgba *image.RGBA

	closeOnce sync.Once
	closed    bool
}

func NewConverter(format PixelFormat) *Converter {
	return &Converter{format: format}
}

func (c *Converter) Convert(f *Frame) (*Bitmap, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if f == nil {
		return nil, errors.New("nil frame")
	}

	switch c.format {
	case PixelFormatNative:
		return &Bitmap{
			Width:  f.Width,
			Height: f.Height,
			Format: PixelFormatNative,
			Codec:  f.Codec,
			Pix:    f.Data,
		}, nil

	case PixelFormatRGBA:
		return c.toRGBA(f)
	}

	return nil, errors.Wrapf(ErrNotSupported, "pixel format %v", c.format)
}

func (c *Converter) toRGBA(f *Frame) (*Bitmap, error) {
	switch f.Codec {
	case CodecRGBA:
		return &Bitmap{
			Width:  f.Width,
			Height: f.Height,
			Format: PixelFormatRGBA,
			Codec:  CodecRGBA,
			Pix:    f.Data,
			Stride: 4 * f.Width,
		}, nil

	case CodecJPEG:
		img, err := jpeg.Decode(bytes.NewReader(f.Data))
		if err != nil {
			return nil, errors.Wrap(err, "decode jpeg")
		}
		b := img.Bounds()
		if c.rgba == nil || c.rgba.Rect.Dx() != b.Dx() || c.rgba.Rect.Dy() != b.Dy() {
			c.rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		}
		draw.Draw(c.rgba, c.rgba.Rect, img, b.Min, draw.Src)
		return &Bitmap{
			Width:  b.Dx(),
			Height: b.Dy(),
			Format: PixelFormatRGBA,
			Codec:  CodecRGBA,
			Pix:    c.rgba.Pix,
			Stride: c.rgba.Stride,
		}, nil
	}

	return nil, errors.Wrapf(ErrNotSupported, "%v to rgba", f.Codec)
}

// Close releases the pixel buffer. Safe to call more than once.
func (c *Converter) Close() error {
	c.closeOnce.Do(func() {
		c.closed = true
		c.rgba = nil
	})
	return nil
}
