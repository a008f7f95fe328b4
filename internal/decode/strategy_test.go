package decode

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aftab97/qr-inventory-scanner/internal/imaging"
)

// stubDecoder scripts decode outcomes per call and records every
// invocation so tests can assert call counts and inversion modes.
type stubDecoder struct {
	modes     []InversionMode
	succeedAt int  // 1-based call index that succeeds; 0 never succeeds
	onlyBoth  bool // succeed only when mode is AttemptBoth
	payload   string
}

func (d *stubDecoder) Decode(f *imaging.Frame, mode InversionMode) (string, error) {
	d.modes = append(d.modes, mode)
	call := len(d.modes)
	if d.onlyBoth {
		if mode == AttemptBoth {
			return d.payload, nil
		}
		return "", fmt.Errorf("%w: scripted miss", ErrNotFound)
	}
	if d.succeedAt != 0 && call == d.succeedAt {
		return d.payload, nil
	}
	return "", fmt.Errorf("%w: scripted miss", ErrNotFound)
}

func testFrame() *imaging.Frame {
	f := imaging.NewFrame(24, 24)
	for i := 0; i < len(f.Pix); i += 4 {
		f.Pix[i] = 200
		f.Pix[i+1] = 200
		f.Pix[i+2] = 200
	}
	return f
}

func TestRunnerShortCircuitsOnFirstHit(t *testing.T) {
	names := []string{"raw", "enhanced", "adaptive", "adaptive-close", "invert-adaptive"}

	for k, want := range names {
		t.Run(want, func(t *testing.T) {
			dec := &stubDecoder{succeedAt: k + 1, payload: "ITEM-0042"}
			runner := NewRunner(dec, nil)

			result, ok := runner.Decode(testFrame())

			require.True(t, ok)
			assert.Equal(t, "ITEM-0042", result.Payload)
			assert.Equal(t, want, result.Strategy)
			assert.Len(t, dec.modes, k+1, "no strategy after the hit may run")
			for _, mode := range dec.modes {
				assert.Equal(t, DontInvert, mode)
			}
		})
	}
}

func TestRunnerFallbackUsesBothInversions(t *testing.T) {
	dec := &stubDecoder{onlyBoth: true, payload: "ITEM-0007"}
	runner := NewRunner(dec, nil)

	result, ok := runner.Decode(testFrame())

	require.True(t, ok)
	assert.Equal(t, FallbackStrategyName, result.Strategy)
	assert.Equal(t, "ITEM-0007", result.Payload)
	require.Len(t, dec.modes, 6, "five strategies plus one fallback")
	for _, mode := range dec.modes[:5] {
		assert.Equal(t, DontInvert, mode)
	}
	assert.Equal(t, AttemptBoth, dec.modes[5])
}

func TestRunnerReportsNoResultWhenEverythingMisses(t *testing.T) {
	dec := &stubDecoder{}
	runner := NewRunner(dec, nil)

	result, ok := runner.Decode(testFrame())

	assert.False(t, ok)
	assert.Empty(t, result.Payload)
	assert.Len(t, dec.modes, 6)
}

// errorDecoder fails its first call with an unexpected error, then
// defers to the wrapped decoder. A single broken strategy must never
// abort the run.
type errorDecoder struct {
	next  Decoder
	calls int
}

func (d *errorDecoder) Decode(f *imaging.Frame, mode InversionMode) (string, error) {
	d.calls++
	if d.calls == 1 {
		return "", errors.New("decoder blew up")
	}
	return d.next.Decode(f, mode)
}

func TestRunnerContinuesPastStrategyErrors(t *testing.T) {
	inner := &stubDecoder{succeedAt: 1, payload: "ITEM-9"}
	dec := &errorDecoder{next: inner}
	runner := NewRunner(dec, nil)

	result, ok := runner.Decode(testFrame())

	require.True(t, ok)
	assert.Equal(t, "enhanced", result.Strategy, "hit lands on the strategy after the failure")
	assert.Equal(t, "ITEM-9", result.Payload)
}

func TestRunnerDoesNotMutateInputFrame(t *testing.T) {
	dec := &stubDecoder{}
	runner := NewRunner(dec, nil)

	f := testFrame()
	orig := f.Clone()
	_, _ = runner.Decode(f)

	require.Equal(t, orig.Pix, f.Pix)
}

func TestDefaultStrategiesOrder(t *testing.T) {
	strategies := DefaultStrategies()
	require.Len(t, strategies, 5)

	want := []string{"raw", "enhanced", "adaptive", "adaptive-close", "invert-adaptive"}
	for i, s := range strategies {
		assert.Equal(t, want[i], s.Name)
	}
	assert.Empty(t, strategies[0].Chain, "raw is the identity strategy")
}

func TestStrategyApplyWorksOnACopy(t *testing.T) {
	f := testFrame()
	orig := f.Clone()

	s := Strategy{Name: "invert", Chain: []imaging.Filter{imaging.Invert()}}
	out := s.Apply(f)

	require.Equal(t, orig.Pix, f.Pix, "input untouched")
	assert.NotEqual(t, f.Pix, out.Pix)
	assert.Equal(t, f.Width, out.Width)
	assert.Equal(t, f.Height, out.Height)
}
