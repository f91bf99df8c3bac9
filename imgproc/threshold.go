package imgproc

import "math"

// LogStd computes 0.5*ln(variance), given a box-filtered variance plane.
// Pixels with variance <= 0 are set to -Inf.
func LogStd(variance F32Plane) F32Plane {
	out := NewF32Plane(variance.H, variance.W)
	for i, v := range variance.Data {
		if v > 0 {
			out.Data[i] = float32(0.5 * math.Log(float64(v)))
		} else {
			out.Data[i] = float32(math.Inf(-1))
		}
	}
	return out
}

const histBins = 256

// Histogram256 builds a 256-bin histogram of the finite values in data,
// spanning [min,max]. Returns the bin counts, the observed [min,max], and
// the number of finite samples seen.
func Histogram256(data []float32) (hist [histBins]int, lo, hi float32, finite int) {
	lo = float32(math.Inf(1))
	hi = float32(math.Inf(-1))
	for _, v := range data {
		if math.IsInf(float64(v), 0) || math.IsNaN(float64(v)) {
			continue
		}
		finite++
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if finite == 0 {
		return hist, lo, hi, 0
	}
	span := hi - lo
	for _, v := range data {
		if math.IsInf(float64(v), 0) || math.IsNaN(float64(v)) {
			continue
		}
		var bin int
		if span <= 0 {
			bin = 0
		} else {
			bin = int(float64(v-lo) / float64(span) * float64(histBins))
			if bin >= histBins {
				bin = histBins - 1
			}
			if bin < 0 {
				bin = 0
			}
		}
		hist[bin]++
	}
	return hist, lo, hi, finite
}

// BinValue returns the representative (left-edge) value of bin i of a
// histogram spanning [lo,hi].
func BinValue(i int, lo, hi float32) float32 {
	span := hi - lo
	return lo + span*float32(i)/float32(histBins)
}

// PrincipalModeAndValley finds the principal (highest-count) mode bin, then
// walks forward to the first inter-modal minimum after it: the first bin
// where the count stops decreasing. Ties among equal minima resolve to the
// lowest-index bin, since the walk stops as soon as the next bin fails to
// decrease further. Returns the valley bin index.
func PrincipalModeAndValley(hist [histBins]int) (mode, valley int) {
	mode = 0
	for i := 1; i < histBins; i++ {
		if hist[i] > hist[mode] {
			mode = i
		}
	}
	valley = mode
	for valley < histBins-1 && hist[valley+1] < hist[valley] {
		valley++
	}
	return mode, valley
}
