// Package imaging implements the pixel-buffer model and the filter
// cascade used to enhance camera frames before QR decoding.
//
// A Frame is a plain RGBA buffer with capture metadata. Filters are pure
// functions over frames: they never mutate their input, always return a
// frame of identical dimensions, and keep every channel value inside
// [0,255]. Chained together they form named decode strategies (see the
// decode package).
package imaging

import (
	"image"
	"math"
	"time"
)

// Frame is a captured or derived pixel buffer.
//
// Pix holds interleaved RGBA samples (8 bits per channel), row-major,
// stride = Width*4. A frame handed to a filter is treated as immutable:
// filters work on copies.
type Frame struct {
	// Width in pixels
	Width int
	// Height in pixels
	Height int
	// Pix contains Width*Height*4 bytes of RGBA data
	Pix []byte

	// Seq is the monotonic capture sequence number
	Seq uint64
	// Timestamp is when the frame was captured
	Timestamp time.Time
	// TraceID is a unique identifier for tracing a frame through the pipeline
	TraceID string
}

// NewFrame allocates an all-black, fully opaque frame.
func NewFrame(width, height int) *Frame {
	f := &Frame{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*4),
	}
	for i := 3; i < len(f.Pix); i += 4 {
		f.Pix[i] = 0xFF
	}
	return f
}

// Clone returns a deep copy of the frame. Metadata is carried over so a
// filtered variant stays traceable to its capture.
func (f *Frame) Clone() *Frame {
	pix := make([]byte, len(f.Pix))
	copy(pix, f.Pix)
	return &Frame{
		Width:     f.Width,
		Height:    f.Height,
		Pix:       pix,
		Seq:       f.Seq,
		Timestamp: f.Timestamp,
		TraceID:   f.TraceID,
	}
}

// offset returns the Pix index of the R sample at (x, y).
func (f *Frame) offset(x, y int) int {
	return (y*f.Width + x) * 4
}

// At returns the RGBA samples at (x, y). Out-of-bounds access is the
// caller's bug; no clamping is applied here.
func (f *Frame) At(x, y int) (r, g, b, a byte) {
	i := f.offset(x, y)
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2], f.Pix[i+3]
}

// Set writes the RGBA samples at (x, y).
func (f *Frame) Set(x, y int, r, g, b, a byte) {
	i := f.offset(x, y)
	f.Pix[i] = r
	f.Pix[i+1] = g
	f.Pix[i+2] = b
	f.Pix[i+3] = a
}

// FromImage copies an image.Image into a new Frame.
func FromImage(img image.Image) *Frame {
	bounds := img.Bounds()
	f := NewFrame(bounds.Dx(), bounds.Dy())
	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == f.Width*4 {
		copy(f.Pix, rgba.Pix[:len(f.Pix)])
		return f
	}
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			f.Set(x, y, byte(r>>8), byte(g>>8), byte(b>>8), byte(a>>8))
		}
	}
	return f
}

// ToImage wraps the frame's pixel buffer in an *image.RGBA without
// copying. The returned image aliases Pix; callers that only read (the
// decoder boundary) rely on this being cheap.
func (f *Frame) ToImage() *image.RGBA {
	return &image.RGBA{
		Pix:    f.Pix,
		Stride: f.Width * 4,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// clamp8 rounds half away from zero and clamps into the byte range.
func clamp8(v float64) byte {
	r := math.Round(v)
	if r < 0 {
		return 0
	}
	if r > 255 {
		return 255
	}
	return byte(r)
}

// luma returns the grayscale value of an RGB triple using the BT.601
// weights 0.299/0.587/0.114.
func luma(r, g, b byte) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}
