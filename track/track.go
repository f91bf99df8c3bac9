package track

import (
	"context"

	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/imgproc"
	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/perr"
	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/stackstore"
)

// Params holds the tunables that control tracking. MinSize/MaxSize of 0
// mean "unset" (no filtering).
type Params struct {
	IoUMin  float64
	MinSize int
	MaxSize int
}

// bboxIoUFactor is the pre-filter threshold relative to IoUMin: a cheap
// bounding-box IoU check at half the real threshold, before the more
// expensive pixel IoU confirms the match.
const bboxIoUFactor = 0.5

// Run tracks cells across seg, writing per-frame cell-id labels via w. ctx
// is polled between frames for cancellation.
func Run(ctx context.Context, seg *stackstore.StackRef, w *stackstore.Writer, p Params) error {
	t, h, width := seg.Shape()
	active := map[int]int{} // ℓ_{t-1} -> cell_id
	nextCellID := 1
	var prevRegions []imgproc.Region

	for frame := 0; frame < t; frame++ {
		if err := ctx.Err(); err != nil {
			return perr.E(perr.Cancelled, "track: cancelled", err)
		}
		maskData, err := seg.FrameBool(frame)
		if err != nil {
			return perr.WithContext(perr.E(perr.IoError, "read seg frame", err), -1, "track", frame)
		}
		mask := imgproc.BoolPlane{Data: maskData, H: h, W: width}
		labelPlane, regions := imgproc.ConnectedComponents(mask)
		regions = filterBySize(regions, p.MinSize, p.MaxSize)

		cellIDs := make(map[int]int, len(regions)) // ℓ_t -> cell_id
		if frame == 0 {
			for _, r := range regions {
				cellIDs[r.Label] = nextCellID
				nextCellID++
			}
		} else {
			cellIDs = assignFrame(regions, prevRegions, active, p.IoUMin, &nextCellID)
		}

		out := make([]uint16, h*width)
		for i, lbl := range labelPlane {
			if lbl == 0 {
				continue
			}
			if id, ok := cellIDs[int(lbl)]; ok {
				out[i] = uint16(id)
			}
		}
		if err := w.PutFrameU16Label(frame, out); err != nil {
			return perr.WithContext(err, -1, "track", frame)
		}

		active = cellIDs
		prevRegions = regions
	}
	return nil
}

func filterBySize(regions []imgproc.Region, minSize, maxSize int) []imgproc.Region {
	if minSize <= 0 && maxSize <= 0 {
		return regions
	}
	out := regions[:0:0]
	for _, r := range regions {
		if minSize > 0 && r.Area < minSize {
			continue
		}
		if maxSize > 0 && r.Area > maxSize {
			continue
		}
		out = append(out, r)
	}
	return out
}

// assignFrame matches current regions against the previous frame's regions
// via a Hungarian assignment on the two-step IoU cost, then assigns cell
// IDs: matched regions inherit their predecessor's ID, unmatched regions
// get a fresh one.
func assignFrame(cur, prev []imgproc.Region, active map[int]int, iouMin float64, nextCellID *int) map[int]int {
	cellIDs := make(map[int]int, len(cur))
	if len(cur) == 0 {
		return cellIDs
	}
	if len(prev) == 0 {
		for _, r := range cur {
			cellIDs[r.Label] = *nextCellID
			*nextCellID++
		}
		return cellIDs
	}

	cost := make([][]float64, len(cur))
	for i, a := range cur {
		cost[i] = make([]float64, len(prev))
		for j, b := range prev {
			cost[i][j] = pairCost(a, b, iouMin)
		}
	}

	assignment := imgproc.SolveAssignment(cost)
	matched := make(map[int]bool, len(cur))
	for i, j := range assignment {
		if j < 0 || j >= len(prev) {
			continue
		}
		if cost[i][j] >= 1.0 {
			continue
		}
		prevLabel := prev[j].Label
		if id, ok := active[prevLabel]; ok {
			cellIDs[cur[i].Label] = id
			matched[cur[i].Label] = true
		}
	}
	for _, r := range cur {
		if !matched[r.Label] {
			cellIDs[r.Label] = *nextCellID
			*nextCellID++
		}
	}
	return cellIDs
}

// pairCost computes 1-IoU(a,b) via a two-step combination: bbox IoU
// pre-filters at iou_min/2, pixel IoU confirms at iou_min. Ineligible
// pairs get the sentinel cost imgproc.IneligibleCost. A deterministic
// tie-break epsilon (larger area, then smaller label, preferred) resolves
// exact cost ties without perturbing real ordering.
func pairCost(a, b imgproc.Region, iouMin float64) float64 {
	bboxIoU := imgproc.BBoxIoU(a, b)
	if bboxIoU < iouMin*bboxIoUFactor {
		return imgproc.IneligibleCost
	}
	pixIoU := imgproc.PixelIoU(a, b)
	if pixIoU < iouMin {
		return imgproc.IneligibleCost
	}
	cost := 1.0 - pixIoU
	cost += 1e-9 / float64(b.Area+1)
	cost += 1e-12 * float64(b.Label)
	return cost
}
