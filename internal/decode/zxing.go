package decode

import (
	"fmt"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/aftab97/qr-inventory-scanner/internal/imaging"
)

// ZXing adapts the gozxing QR reader to the Decoder boundary.
//
// The frame's pixel buffer is wrapped (not copied) into an image for
// binarization; gozxing only reads from it. AttemptBoth is implemented
// by decoding an inverted copy when the straight pass fails.
type ZXing struct {
	reader gozxing.Reader
	hints  map[gozxing.DecodeHintType]interface{}
	invert imaging.Filter
}

// NewZXing creates a decoder with TRY_HARDER enabled; camera frames are
// noisy enough that the thorough search mode pays for itself.
func NewZXing() *ZXing {
	return &ZXing{
		reader: qrcode.NewQRCodeReader(),
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
		invert: imaging.Invert(),
	}
}

// Decode attempts to read a QR code from the frame. Returns the decoded
// text, or an error wrapping ErrNotFound when nothing was found.
func (d *ZXing) Decode(f *imaging.Frame, mode InversionMode) (string, error) {
	text, err := d.decodeOnce(f)
	if err == nil {
		return text, nil
	}
	if mode == AttemptBoth {
		if text, invErr := d.decodeOnce(d.invert(f)); invErr == nil {
			return text, nil
		}
	}
	return "", fmt.Errorf("%w: %v", ErrNotFound, err)
}

func (d *ZXing) decodeOnce(f *imaging.Frame) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(f.ToImage())
	if err != nil {
		return "", fmt.Errorf("binarize frame: %w", err)
	}
	result, err := d.reader.Decode(bmp, d.hints)
	if err != nil {
		return "", err
	}
	text := result.String()
	if text == "" {
		return "", fmt.Errorf("decoder returned empty payload")
	}
	return text, nil
}
