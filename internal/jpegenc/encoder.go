// Package jpegenc converts decoded RGB frames to JPEG images.
package jpegenc

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"golang.org/x/image/draw"

	"github.com/care/homehub/internal/capture"
)

const DefaultQuality = 80

// Encoder encodes frames at a fixed output size and quality.
// Safe for concurrent use.
type Encoder struct {
	width   int
	height  int
	quality int

	bufPool sync.Pool
}

// New creates an encoder. Frames whose size differs from width×height are
// rescaled before encoding.
func New(width, height, quality int) (*Encoder, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("jpegenc: invalid output size %dx%d", width, height)
	}
	if quality <= 0 {
		quality = DefaultQuality
	}
	if quality > 100 {
		return nil, fmt.Errorf("jpegenc: quality %d out of range 1-100", quality)
	}

	return &Encoder{
		width:   width,
		height:  height,
		quality: quality,
		bufPool: sync.Pool{New: func() any { return new(bytes.Buffer) }},
	}, nil
}

// Encode returns the frame as a JPEG image
func (e *Encoder) Encode(frame capture.Frame) ([]byte, error) {
	img, err := ToRGBA(frame)
	if err != nil {
		return nil, err
	}

	var out image.Image = img
	if frame.Width != e.width || frame.Height != e.height {
		scaled := image.NewRGBA(image.Rect(0, 0, e.width, e.height))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)
		out = scaled
	}

	buf := e.bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer e.bufPool.Put(buf)

	if err := jpeg.Encode(buf, out, &jpeg.Options{Quality: e.quality}); err != nil {
		return nil, fmt.Errorf("jpegenc: encode frame %d: %w", frame.Seq, err)
	}

	return bytes.Clone(buf.Bytes()), nil
}

// ToRGBA expands packed RGB rows into an RGBA image
func ToRGBA(frame capture.Frame) (*image.RGBA, error) {
	if frame.Width <= 0 || frame.Height <= 0 {
		return nil, fmt.Errorf("jpegenc: invalid frame size %dx%d", frame.Width, frame.Height)
	}

	stride := frame.Stride
	if stride == 0 {
		stride = frame.Width * 3
	}
	if stride < frame.Width*3 {
		return nil, fmt.Errorf("jpegenc: stride %d shorter than row of %d pixels", stride, frame.Width)
	}
	// The last row need not carry padding
	need := stride*(frame.Height-1) + frame.Width*3
	if len(frame.Data) < need {
		return nil, fmt.Errorf("jpegenc: frame data too short: have %d bytes, need %d", len(frame.Data), need)
	}

	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	for y := 0; y < frame.Height; y++ {
		src := frame.Data[y*stride : y*stride+frame.Width*3]
		dst := img.Pix[y*img.Stride : y*img.Stride+frame.Width*4]
		for x := 0; x < frame.Width; x++ {
			dst[x*4] = src[x*3]
			dst[x*4+1] = src[x*3+1]
			dst[x*4+2] = src[x*3+2]
			dst[x*4+3] = 0xff
		}
	}

	return img, nil
}
