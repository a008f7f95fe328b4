package decode

import (
	"log/slog"

	"github.com/aftab97/qr-inventory-scanner/internal/imaging"
)

// Strategy is a named ordered filter chain applied to a frame before one
// decode attempt. The identity chain ("raw") is a valid strategy.
type Strategy struct {
	Name  string
	Chain []imaging.Filter
}

// Apply runs the filter chain on a fresh copy of the frame. The input is
// never touched, so every strategy starts from the original capture.
func (s Strategy) Apply(f *imaging.Frame) *imaging.Frame {
	out := f.Clone()
	for _, filter := range s.Chain {
		out = filter(out)
	}
	return out
}

// FallbackStrategyName tags results produced by the last-resort
// dual-inversion decode on the untransformed frame.
const FallbackStrategyName = "fallback-zxing"

// Tuning holds the filter parameters shared by the default strategies.
type Tuning struct {
	Contrast            float64
	SharpenAmount       float64
	AdaptiveWindow      int
	AdaptiveSensitivity float64
	CloseIterations     int
}

// DefaultTuning returns the parameters the strategy cascade was tuned
// with against real shelf-label scans.
func DefaultTuning() Tuning {
	return Tuning{
		Contrast:            36,
		SharpenAmount:       1.0,
		AdaptiveWindow:      41,
		AdaptiveSensitivity: 0.12,
		CloseIterations:     1,
	}
}

// Strategies builds the ordered strategy list for a tuning. The order is
// deliberate: cheap, likely-to-succeed transforms first, the expensive
// integral-table builds later.
//
//  1. raw             - no transform
//  2. enhanced        - contrast, sharpen
//  3. adaptive        - contrast, sharpen, adaptive threshold
//  4. adaptive-close  - adaptive threshold, morphological close
//  5. invert-adaptive - invert, adaptive threshold
func (t Tuning) Strategies() []Strategy {
	contrast := imaging.Contrast(t.Contrast)
	sharpen := imaging.Sharpen(t.SharpenAmount)
	adaptive := imaging.AdaptiveThreshold(t.AdaptiveWindow, t.AdaptiveSensitivity)
	return []Strategy{
		{Name: "raw"},
		{Name: "enhanced", Chain: []imaging.Filter{contrast, sharpen}},
		{Name: "adaptive", Chain: []imaging.Filter{contrast, sharpen, adaptive}},
		{Name: "adaptive-close", Chain: []imaging.Filter{adaptive, imaging.BinaryClose(t.CloseIterations)}},
		{Name: "invert-adaptive", Chain: []imaging.Filter{imaging.Invert(), adaptive}},
	}
}

// DefaultStrategies returns the default cascade.
func DefaultStrategies() []Strategy {
	return DefaultTuning().Strategies()
}

// Result is a successful decode: the payload plus the strategy that
// produced it.
type Result struct {
	// Payload is the decoded text, always non-empty
	Payload string
	// Strategy names the filter chain that produced the hit
	Strategy string
}

// Runner tries strategies in order against each frame and
// short-circuits on the first hit.
type Runner struct {
	decoder    Decoder
	strategies []Strategy
}

// NewRunner creates a runner. A nil or empty strategy list falls back to
// the defaults.
func NewRunner(decoder Decoder, strategies []Strategy) *Runner {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Runner{decoder: decoder, strategies: strategies}
}

// Decode applies each strategy in order to a fresh copy of the frame and
// invokes the decoder with inversion off (strategy 5 handles inversion
// through its filter chain). A failing strategy is logged and skipped,
// never aborts the run. After all strategies miss, one final attempt
// decodes the untransformed frame with both inversion interpretations.
//
// Returns the result and true on the first non-empty payload; false when
// the frame yields nothing, in which case the caller moves on to the
// next captured frame.
func (r *Runner) Decode(f *imaging.Frame) (Result, bool) {
	for _, strategy := range r.strategies {
		variant := strategy.Apply(f)
		payload, err := r.decoder.Decode(variant, DontInvert)
		if err != nil {
			slog.Debug("decode: strategy missed",
				"strategy", strategy.Name,
				"trace_id", f.TraceID,
				"error", err,
			)
			continue
		}
		slog.Debug("decode: strategy hit",
			"strategy", strategy.Name,
			"trace_id", f.TraceID,
		)
		return Result{Payload: payload, Strategy: strategy.Name}, true
	}

	// Last resort: untransformed frame, both inversion interpretations.
	// The decoder internally tries twice, so this runs only once all
	// targeted strategies are exhausted.
	payload, err := r.decoder.Decode(f, AttemptBoth)
	if err != nil {
		slog.Debug("decode: frame exhausted",
			"strategies", len(r.strategies),
			"trace_id", f.TraceID,
			"error", err,
		)
		return Result{}, false
	}
	return Result{Payload: payload, Strategy: FallbackStrategyName}, true
}
