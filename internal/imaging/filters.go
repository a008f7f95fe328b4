package imaging

// Filter is a pure frame transform: it returns a new frame of identical
// dimensions and never mutates its input. Filters compose by sequential
// application.
type Filter func(f *Frame) *Frame

// Contrast returns a filter that linearly remaps R/G/B around the
// midpoint using the standard contrast curve
//
//	factor = 259*(c+255) / (255*(259-c))
//	v'     = clamp(round(factor*(v-128) + 128))
//
// where c is the contrast parameter (typical values 30-36). Alpha is
// untouched. The remap is precomputed into a 256-entry lookup table.
func Contrast(c float64) Filter {
	factor := 259 * (c + 255) / (255 * (259 - c))
	var lut [256]byte
	for v := 0; v < 256; v++ {
		lut[v] = clamp8(factor*(float64(v)-128) + 128)
	}
	return func(f *Frame) *Frame {
		out := f.Clone()
		for i := 0; i < len(out.Pix); i += 4 {
			out.Pix[i] = lut[out.Pix[i]]
			out.Pix[i+1] = lut[out.Pix[i+1]]
			out.Pix[i+2] = lut[out.Pix[i+2]]
		}
		return out
	}
}

// Sharpen returns an unsharp-mask filter: a 3x3 convolution with kernel
//
//	 0 -1  0
//	-1  5 -1
//	 0 -1  0
//
// blended with the original by amount (amount=1.0 applies the kernel
// verbatim, amount=0 is the identity). Out-of-bounds samples replicate
// the nearest in-bounds pixel; output is clamped to [0,255] per channel.
func Sharpen(amount float64) Filter {
	return func(f *Frame) *Frame {
		out := f.Clone()
		w, h := f.Width, f.Height
		clampX := func(x int) int {
			if x < 0 {
				return 0
			}
			if x >= w {
				return w - 1
			}
			return x
		}
		clampY := func(y int) int {
			if y < 0 {
				return 0
			}
			if y >= h {
				return h - 1
			}
			return y
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				center := f.offset(x, y)
				up := f.offset(x, clampY(y-1))
				down := f.offset(x, clampY(y+1))
				left := f.offset(clampX(x-1), y)
				right := f.offset(clampX(x+1), y)
				dst := out.offset(x, y)
				for ch := 0; ch < 3; ch++ {
					orig := float64(f.Pix[center+ch])
					conv := 5*orig -
						float64(f.Pix[up+ch]) -
						float64(f.Pix[down+ch]) -
						float64(f.Pix[left+ch]) -
						float64(f.Pix[right+ch])
					out.Pix[dst+ch] = clamp8(orig + amount*(conv-orig))
				}
			}
		}
		return out
	}
}

// Invert returns a filter that complements each R/G/B channel (255-v).
// Alpha is preserved. Invert is its own inverse: applying it twice
// yields the original frame exactly.
func Invert() Filter {
	return func(f *Frame) *Frame {
		out := f.Clone()
		for i := 0; i < len(out.Pix); i += 4 {
			out.Pix[i] = 255 - out.Pix[i]
			out.Pix[i+1] = 255 - out.Pix[i+1]
			out.Pix[i+2] = 255 - out.Pix[i+2]
		}
		return out
	}
}
