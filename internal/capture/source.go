// Package capture produces frames from a live camera (or a synthetic
// generator) for the scan pipeline.
//
// The Source interface is the capability boundary to the camera: the
// scan session depends only on it, never on a concrete device API, so
// the whole pipeline runs headless in tests.
package capture

import (
	"context"
	"math"

	"github.com/aftab97/qr-inventory-scanner/internal/imaging"
)

// MaxCaptureWidth caps the width of captured frames. Native sensor
// resolutions above this are downscaled (aspect preserved); decoding
// gains nothing from more pixels and the filter cascade pays per pixel.
const MaxCaptureWidth = 1600

// Source is the frame acquisition boundary.
//
// Implementations must guarantee:
//   - Grab() never blocks and returns nil when no new frame is ready
//   - per-frame failures are swallowed (a bad frame is a skipped tick)
//   - Close() is idempotent and releases the underlying device
//   - SetTorch() is best-effort and silently no-ops on unsupported
//     hardware
type Source interface {
	// Open acquires the device and starts delivering frames.
	Open(ctx context.Context) error

	// Grab returns the most recent frame not yet consumed, or nil when
	// the source has nothing new (device warming up, transient read
	// failure). Each frame is returned at most once.
	Grab() *imaging.Frame

	// TorchSupported reports whether the device exposes a torch
	// (flashlight) control.
	TorchSupported() bool

	// SetTorch toggles the torch. Best-effort: unsupported hardware is
	// not an error.
	SetTorch(on bool) error

	// Close stops capture and releases the device. Idempotent.
	Close() error

	// Stats returns a snapshot of capture counters.
	Stats() SourceStats
}

// SourceStats is a snapshot of source counters.
type SourceStats struct {
	// FramesCaptured is the number of frames delivered by the device
	FramesCaptured uint64
	// FramesSkipped counts Grab calls that found no new frame
	FramesSkipped uint64
	// Width and Height are the capture dimensions after downscaling
	Width  int
	Height int
	// IsOpen reports whether the device is currently held
	IsOpen bool
}

// CaptureSize maps a native sensor resolution to the capture size:
// width capped at MaxCaptureWidth, height scaled proportionally and
// never below one pixel.
func CaptureSize(nativeWidth, nativeHeight int) (width, height int) {
	width = nativeWidth
	if width > MaxCaptureWidth {
		width = MaxCaptureWidth
	}
	if width < 1 {
		width = 1
	}
	height = nativeHeight
	if nativeWidth > 0 && width != nativeWidth {
		height = int(math.Round(float64(nativeHeight) * float64(width) / float64(nativeWidth)))
	}
	if height < 1 {
		height = 1
	}
	return width, height
}
