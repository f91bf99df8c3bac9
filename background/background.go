package background

import (
	"context"

	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/imgproc"
	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/perr"
	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/stackstore"
)

// Params holds the tunables that control background estimation.
type Params struct {
	TilePx     int     // bg_tile, default 64
	Overlap    float64 // bg_overlap, default 0.5
	DilationPx int     // default 10
}

// Warning records a recoverable per-frame condition: a constant
// fluorescence frame, whose background is set to that constant.
type Warning struct {
	Frame int
	Msg   string
}

const minBgPixels = 8

// Run estimates the background surface of fl, given its segmentation mask
// seg, writing the result via w. ctx is polled between frames for
// cancellation.
func Run(ctx context.Context, seg, fl *stackstore.StackRef, w *stackstore.Writer, p Params) ([]Warning, error) {
	t, h, width := seg.Shape()
	ft, fh, fw := fl.Shape()
	if ft != t || fh != h || fw != width {
		return nil, perr.E(perr.DimensionMismatch, "seg and fl shape mismatch", nil)
	}
	var warnings []Warning
	for frame := 0; frame < t; frame++ {
		if err := ctx.Err(); err != nil {
			return warnings, perr.E(perr.Cancelled, "background: cancelled", err)
		}
		maskData, err := seg.FrameBool(frame)
		if err != nil {
			return warnings, perr.WithContext(perr.E(perr.IoError, "read seg frame", err), -1, "background", frame)
		}
		flData, err := fl.FrameU16(frame)
		if err != nil {
			return warnings, perr.WithContext(perr.E(perr.IoError, "read fl frame", err), -1, "background", frame)
		}
		bg, warn := estimateFrame(
			imgproc.BoolPlane{Data: maskData, H: h, W: width},
			imgproc.U16Plane{Data: flData, H: h, W: width},
			p,
		)
		if warn != "" {
			warnings = append(warnings, Warning{Frame: frame, Msg: warn})
		}
		if err := w.PutFrameF32(frame, bg.Data); err != nil {
			return warnings, perr.WithContext(err, -1, "background", frame)
		}
	}
	return warnings, nil
}

type tile struct {
	y0, x0, y1, x1 int // pixel bounds, half-open
	cy, cx         float64
}

func buildTileGrid(h, w, tilePx int, overlap float64) []tile {
	stride := int(float64(tilePx) * (1 - overlap))
	if stride < 1 {
		stride = 1
	}
	var tiles []tile
	for y0 := 0; y0 < h; y0 += stride {
		y1 := y0 + tilePx
		if y1 > h {
			y1 = h
		}
		for x0 := 0; x0 < w; x0 += stride {
			x1 := x0 + tilePx
			if x1 > w {
				x1 = w
			}
			tiles = append(tiles, tile{
				y0: y0, x0: x0, y1: y1, x1: x1,
				cy: float64(y0+y1-1) / 2,
				cx: float64(x0+x1-1) / 2,
			})
			if x1 == w {
				break
			}
		}
		if y1 == h {
			break
		}
	}
	return tiles
}

func estimateFrame(fgSeed imgproc.BoolPlane, fl imgproc.U16Plane, p Params) (imgproc.F32Plane, string) {
	offs := imgproc.DiskOffsets(p.DilationPx)
	fgMask := imgproc.Dilate(fgSeed, offs)

	tiles := buildTileGrid(fl.H, fl.W, p.TilePx, p.Overlap)
	// tile grid geometry (rows, cols) derived the same way buildTileGrid
	// walked it, to map tiles back to a 2D grid for nearest-neighbor fill.
	cols := 0
	for i, tl := range tiles {
		if i > 0 && tl.y0 != tiles[0].y0 {
			break
		}
		cols++
	}
	rows := len(tiles) / cols

	values := make([]float64, len(tiles))
	missing := make([]bool, len(tiles))
	var warn string

	frameValues := make([]float64, len(fl.Data))
	for i, v := range fl.Data {
		frameValues[i] = float64(v)
	}
	frameMedian := imgproc.Median(frameValues)

	allConstant := true
	for _, v := range fl.Data {
		if v != fl.Data[0] {
			allConstant = false
			break
		}
	}
	if allConstant {
		warn = "fl frame constant; background set to constant"
	}

	for i, tl := range tiles {
		var bgPixels []float64
		for y := tl.y0; y < tl.y1; y++ {
			for x := tl.x0; x < tl.x1; x++ {
				if !fgMask.At(y, x) {
					bgPixels = append(bgPixels, float64(fl.At(y, x)))
				}
			}
		}
		if len(bgPixels) < minBgPixels {
			missing[i] = true
			continue
		}
		values[i] = imgproc.Median(bgPixels)
	}

	allMissing := true
	for _, m := range missing {
		if !m {
			allMissing = false
			break
		}
	}
	if allMissing {
		for i := range values {
			values[i] = frameMedian
			missing[i] = false
		}
	} else {
		fillMissingNearest(values, missing, cols)
	}

	bg := imgproc.NewF32Plane(fl.H, fl.W)
	for y := 0; y < fl.H; y++ {
		for x := 0; x < fl.W; x++ {
			v := bicubicAt(values, tiles, rows, cols, float64(y), float64(x))
			if v < 0 {
				v = 0
			}
			if v > 65535 {
				v = 65535
			}
			bg.Set(y, x, float32(v))
		}
	}
	return bg, warn
}

// fillMissingNearest replaces values at missing grid cells with the value
// of the nearest non-missing cell, by Manhattan distance on the tile grid
// (ties broken by row-major scan order).
func fillMissingNearest(values []float64, missing []bool, cols int) {
	for i, m := range missing {
		if !m {
			continue
		}
		ry, rx := i/cols, i%cols
		best := -1
		bestDist := 1 << 30
		for j, mj := range missing {
			if mj {
				continue
			}
			jy, jx := j/cols, j%cols
			dy, dx := jy-ry, jx-rx
			if dy < 0 {
				dy = -dy
			}
			if dx < 0 {
				dx = -dx
			}
			d := dy + dx
			if d < bestDist {
				bestDist = d
				best = j
			}
		}
		if best >= 0 {
			values[i] = values[best]
		}
	}
}

// bicubicAt interpolates the tile-median grid at pixel (y,x) using a
// separable bicubic convolution over the 4x4 neighborhood of tile centers
// surrounding it.
func bicubicAt(values []float64, tiles []tile, rows, cols int, y, x float64) float64 {
	if rows == 0 || cols == 0 {
		return 0
	}
	// Locate the tile-grid cell whose center is just below/left of (y,x).
	col0 := 0
	for c := 0; c < cols; c++ {
		if tiles[c].cx <= x {
			col0 = c
		}
	}
	row0 := 0
	for r := 0; r < rows; r++ {
		if tiles[r*cols].cy <= y {
			row0 = r
		}
	}
	var sum, weightSum float64
	for dy := -1; dy <= 2; dy++ {
		ry := row0 + dy
		if ry < 0 {
			ry = 0
		}
		if ry >= rows {
			ry = rows - 1
		}
		cy := tiles[ry*cols].cy
		wy := imgproc.CubicKernel(y - cy)
		for dx := -1; dx <= 2; dx++ {
			rx := col0 + dx
			if rx < 0 {
				rx = 0
			}
			if rx >= cols {
				rx = cols - 1
			}
			cx := tiles[ry*cols+rx].cx
			wx := imgproc.CubicKernel(x - cx)
			weight := wy * wx
			sum += weight * values[ry*cols+rx]
			weightSum += weight
		}
	}
	if weightSum == 0 {
		return values[row0*cols+col0]
	}
	return sum / weightSum
}
