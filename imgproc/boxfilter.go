package imgproc

// BoxMeanVar computes, for every pixel, the mean and (biased) variance of a
// window x window neighbourhood using replicate (edge-clamped) padding.
// window must be odd and >= 1.
//
// Implemented via a summed-area table over a replicate-padded copy of img,
// giving O(H*W) total work regardless of window size.
func BoxMeanVar(img U16Plane, window int) (mean, variance F32Plane) {
	h, w := img.H, img.W
	r := window / 2
	ph, pw := h+2*r, w+2*r

	// Padded plane with edge-replicated borders.
	padded := make([]float64, ph*pw)
	for py := 0; py < ph; py++ {
		sy := replicateIndex(py-r, h)
		for px := 0; px < pw; px++ {
			sx := replicateIndex(px-r, w)
			padded[py*pw+px] = float64(img.At(sy, sx))
		}
	}

	// Summed-area tables (sum and sum-of-squares), with a leading zero
	// row/column for simple inclusive-exclusive range queries.
	sum := make([]float64, (ph+1)*(pw+1))
	sum2 := make([]float64, (ph+1)*(pw+1))
	sStride := pw + 1
	for y := 0; y < ph; y++ {
		var rowSum, rowSum2 float64
		for x := 0; x < pw; x++ {
			v := padded[y*pw+x]
			rowSum += v
			rowSum2 += v * v
			sum[(y+1)*sStride+(x+1)] = sum[y*sStride+(x+1)] + rowSum
			sum2[(y+1)*sStride+(x+1)] = sum2[y*sStride+(x+1)] + rowSum2
		}
	}

	query := func(tbl []float64, y0, x0, y1, x1 int) float64 {
		// Inclusive-exclusive rectangle [y0,y1) x [x0,x1) in padded coords.
		return tbl[y1*sStride+x1] - tbl[y0*sStride+x1] - tbl[y1*sStride+x0] + tbl[y0*sStride+x0]
	}

	mean = NewF32Plane(h, w)
	variance = NewF32Plane(h, w)
	n := float64(window * window)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			s := query(sum, y, x, y+window, x+window)
			s2 := query(sum2, y, x, y+window, x+window)
			mu := s / n
			v := s2/n - mu*mu
			if v < 0 {
				// Guard against floating-point cancellation driving a true
				// zero variance slightly negative.
				v = 0
			}
			mean.Set(y, x, float32(mu))
			variance.Set(y, x, float32(v))
		}
	}
	return mean, variance
}
