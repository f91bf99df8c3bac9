package segment

import (
	"context"

	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/imgproc"
	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/perr"
	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/stackstore"
)

// Params holds the tunables that control segmentation.
type Params struct {
	Window     int // odd, default 3
	StructSize int // disk radius, default 7
	StructIter int // default 3
}

// Warning records a recoverable per-frame condition, downgraded from a
// fatal numeric error because the rest of the run can still proceed.
type Warning struct {
	Frame int
	Msg   string
}

// Run segments every frame of pc, writing the result mask via w. ctx is
// polled between frames for cancellation.
func Run(ctx context.Context, pc *stackstore.StackRef, w *stackstore.Writer, p Params) ([]Warning, error) {
	t, h, width := pc.Shape()
	var warnings []Warning
	for frame := 0; frame < t; frame++ {
		if err := ctx.Err(); err != nil {
			return warnings, perr.E(perr.Cancelled, "segment: cancelled", err)
		}
		plane, err := pc.FrameU16(frame)
		if err != nil {
			return warnings, perr.WithContext(perr.E(perr.IoError, "read pc frame", err), -1, "segment", frame)
		}
		mask, warn := segmentFrame(imgproc.U16Plane{Data: plane, H: h, W: width}, p)
		if warn != "" {
			warnings = append(warnings, Warning{Frame: frame, Msg: warn})
		}
		if err := w.PutFrameBool(frame, mask.Data); err != nil {
			return warnings, perr.WithContext(err, -1, "segment", frame)
		}
	}
	return warnings, nil
}

func segmentFrame(pc imgproc.U16Plane, p Params) (imgproc.BoolPlane, string) {
	_, variance := imgproc.BoxMeanVar(pc, p.Window)
	logstd := imgproc.LogStd(variance)
	hist, lo, hi, finite := imgproc.Histogram256(logstd.Data)

	mask := imgproc.NewBoolPlane(pc.H, pc.W)
	if finite == 0 {
		// No finite variance bins: there's no valley to threshold on, so
		// the frame's mask is set all-false rather than failing the run.
		return mask, "all variances zero; mask set all-false"
	}

	_, valley := imgproc.PrincipalModeAndValley(hist)
	tau := imgproc.BinValue(valley, lo, hi)
	for i, v := range logstd.Data {
		mask.Data[i] = v > tau
	}

	mask = imgproc.FillHoles(mask)
	mask = imgproc.Opening(mask, p.StructSize, p.StructIter)
	mask = imgproc.Closing(mask, p.StructSize, p.StructIter)
	return mask, ""
}
