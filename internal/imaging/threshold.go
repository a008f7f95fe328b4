package imaging

// integralImage is a summed-area table over a grayscale image. It makes
// the mean of any axis-aligned rectangle an O(1) query, which is what
// keeps adaptive thresholding at O(width*height) instead of
// O(width*height*window^2).
type integralImage struct {
	width  int
	height int
	// sums has (width+1)*(height+1) entries; sums[(y+1)*(width+1)+(x+1)]
	// is the sum of all gray values in the rectangle [0,x]x[0,y].
	sums []uint64
}

func newIntegralImage(gray []byte, width, height int) *integralImage {
	ii := &integralImage{
		width:  width,
		height: height,
		sums:   make([]uint64, (width+1)*(height+1)),
	}
	stride := width + 1
	for y := 0; y < height; y++ {
		var rowSum uint64
		for x := 0; x < width; x++ {
			rowSum += uint64(gray[y*width+x])
			ii.sums[(y+1)*stride+(x+1)] = ii.sums[y*stride+(x+1)] + rowSum
		}
	}
	return ii
}

// sum returns the sum of gray values over the inclusive rectangle
// [x0,x1]x[y0,y1]. Bounds must already be clamped to the image.
func (ii *integralImage) sum(x0, y0, x1, y1 int) uint64 {
	stride := ii.width + 1
	a := ii.sums[y0*stride+x0]
	b := ii.sums[y0*stride+(x1+1)]
	c := ii.sums[(y1+1)*stride+x0]
	d := ii.sums[(y1+1)*stride+(x1+1)]
	return d + a - b - c
}

// AdaptiveThreshold returns a Bradley-Roth style local binarization
// filter. Each pixel is compared against the mean of a square window of
// side windowSize centered on it (clamped at the image border): the
// output is pure black when gray < mean*(1-sensitivity), pure white
// otherwise. The result is strictly binary with R==G==B and opaque
// alpha.
//
// Defaults used by the decode strategies are windowSize=41 and
// sensitivity=0.12.
func AdaptiveThreshold(windowSize int, sensitivity float64) Filter {
	if windowSize < 1 {
		windowSize = 1
	}
	half := windowSize / 2
	return func(f *Frame) *Frame {
		w, h := f.Width, f.Height
		gray := make([]byte, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := f.offset(x, y)
				gray[y*w+x] = clamp8(luma(f.Pix[i], f.Pix[i+1], f.Pix[i+2]))
			}
		}
		ii := newIntegralImage(gray, w, h)

		out := f.Clone()
		for y := 0; y < h; y++ {
			y0, y1 := y-half, y+half
			if y0 < 0 {
				y0 = 0
			}
			if y1 >= h {
				y1 = h - 1
			}
			for x := 0; x < w; x++ {
				x0, x1 := x-half, x+half
				if x0 < 0 {
					x0 = 0
				}
				if x1 >= w {
					x1 = w - 1
				}
				count := uint64((x1 - x0 + 1) * (y1 - y0 + 1))
				mean := float64(ii.sum(x0, y0, x1, y1)) / float64(count)

				var v byte = 0xFF
				if float64(gray[y*w+x]) < mean*(1-sensitivity) {
					v = 0
				}
				i := out.offset(x, y)
				out.Pix[i] = v
				out.Pix[i+1] = v
				out.Pix[i+2] = v
				out.Pix[i+3] = 0xFF
			}
		}
		return out
	}
}
