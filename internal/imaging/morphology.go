package imaging

// BinaryClose returns a morphological closing filter: the frame is
// thresholded at 128 into a binary mask (gray >= 128 is "set"), then
// dilated for the given number of iterations and eroded for the same
// number. Closing fills small gaps in the set regions without growing
// their overall extent.
//
// Dilation sets a pixel when any pixel of its 3x3 neighborhood
// (including itself) is set; erosion keeps a pixel only when the entire
// 3x3 neighborhood is set. Out-of-bounds neighbors count as unset, so
// erosion always clears the one-pixel border. With iterations=0 the
// output is just the thresholded mask.
func BinaryClose(iterations int) Filter {
	return func(f *Frame) *Frame {
		w, h := f.Width, f.Height
		mask := make([]bool, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := f.offset(x, y)
				mask[y*w+x] = luma(f.Pix[i], f.Pix[i+1], f.Pix[i+2]) >= 128
			}
		}

		for i := 0; i < iterations; i++ {
			mask = dilate(mask, w, h)
		}
		for i := 0; i < iterations; i++ {
			mask = erode(mask, w, h)
		}

		out := f.Clone()
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				var v byte
				if mask[y*w+x] {
					v = 0xFF
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

// dilate performs one round of 8-connected dilation. Out-of-bounds
// neighbors are treated as unset.
func dilate(mask []bool, w, h int) []bool {
	next := make([]bool, len(mask))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if anyNeighborSet(mask, w, h, x, y) {
				next[y*w+x] = true
			}
		}
	}
	return next
}

// erode performs one round of 8-connected erosion. Out-of-bounds
// neighbors count as unset, so border pixels are always cleared.
func erode(mask []bool, w, h int) []bool {
	next := make([]bool, len(mask))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			next[y*w+x] = allNeighborsSet(mask, w, h, x, y)
		}
	}
	return next
}

func anyNeighborSet(mask []bool, w, h, x, y int) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			nx, ny := x+dx, y+dy
			if nx < 0 || nx >= w || ny < 0 || ny >= h {
				continue
			}
			if mask[ny*w+nx] {
				return true
			}
		}
	}
	return false
}

func allNeighborsSet(mask []bool, w, h, x, y int) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			nx, ny := x+dx, y+dy
			if nx < 0 || nx >= w || ny < 0 || ny >= h {
				return false
			}
			if !mask[ny*w+nx] {
				return false
			}
		}
	}
	return true
}
