// Package decode runs captured frames through an ordered list of filter
// strategies and a QR decoder until one variant yields a payload.
package decode

import (
	"errors"

	"github.com/aftab97/qr-inventory-scanner/internal/imaging"
)

// InversionMode controls which luminance interpretations a decode
// attempt covers.
type InversionMode int

const (
	// DontInvert decodes the frame as-is. The strategy list handles
	// inverted codes explicitly with a filter, so per-attempt
	// inversion stays off for the targeted strategies.
	DontInvert InversionMode = iota
	// AttemptBoth decodes the frame as-is and, if that fails, its
	// color complement. Used only by the last-resort fallback.
	AttemptBoth
)

func (m InversionMode) String() string {
	switch m {
	case DontInvert:
		return "dont-invert"
	case AttemptBoth:
		return "attempt-both"
	default:
		return "unknown"
	}
}

// ErrNotFound is returned when a frame contains no decodable QR code.
// Decoding is a binary per-attempt outcome: payload or ErrNotFound
// (wrapped), nothing partial.
var ErrNotFound = errors.New("decode: no qr code found")

// Decoder is the narrow boundary to the QR decoding library.
//
// Implementations must not mutate the input frame and must return a
// non-empty payload on success.
type Decoder interface {
	Decode(f *imaging.Frame, mode InversionMode) (string, error)
}
