package feature

import (
	"context"
	"fmt"
	"sort"

	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/perr"
	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/stackstore"
)

// ChannelSpec names one configured channel and the features to compute on
// it.
type ChannelSpec struct {
	Channel  int
	Features []string
}

// Config holds the per-run settings the extractor needs: which channels to
// extract which features from, and the trace-level filtering thresholds.
type Config struct {
	PC               *ChannelSpec
	FL               []ChannelSpec
	BackgroundWeight float64
	MinTraceLength   int
	BorderWidthPx    int
	TimePoints       []float64 // nil => time = frame index
}

// Warning records a recoverable per-FOV condition.
type Warning struct {
	Msg string
}

// FeatureRow is one (cell, frame) observation.
type FeatureRow struct {
	FOV                            int
	Cell, Frame                    int
	Time                           float64
	Good                           bool
	PosX, PosY                     float64
	BBoxX0, BBoxY0, BBoxX1, BBoxY1 int
	Features                       map[string]float64 // keyed by featureKey(name, channel)
}

func featureKey(name string, channel int) string {
	return fmt.Sprintf("%s_ch_%d", name, channel)
}

// Run extracts FeatureRows for one FOV from the labeled, pc, fl, and
// fl_background stacks, then applies the trace-level filters.
func Run(
	ctx context.Context,
	registry *Registry,
	fov int,
	labeled, pc *stackstore.StackRef,
	fl map[int]*stackstore.StackRef,
	flBackground map[int]*stackstore.StackRef,
	cfg Config,
) ([]FeatureRow, []Warning, error) {
	t, h, w := labeled.Shape()
	if cfg.PC != nil {
		if pt, ph, pw := pc.Shape(); pt != t || ph != h || pw != w {
			return nil, nil, perr.E(perr.DimensionMismatch, "pc stack shape mismatch", nil)
		}
	}
	for _, spec := range cfg.FL {
		ref, ok := fl[spec.Channel]
		if !ok {
			return nil, nil, perr.E(perr.ConfigError, "fl channel not provided", nil)
		}
		if ft, fh, fw := ref.Shape(); ft != t || fh != h || fw != w {
			return nil, nil, perr.E(perr.DimensionMismatch, "fl stack shape mismatch", nil)
		}
	}

	bgWeight := clamp01(cfg.BackgroundWeight)
	var rows []FeatureRow

	for frame := 0; frame < t; frame++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, perr.E(perr.Cancelled, "extract: cancelled", err)
		}
		labelData, err := labeled.FrameU16Label(frame)
		if err != nil {
			return nil, nil, perr.WithContext(perr.E(perr.IoError, "read labeled frame", err), fov, "extract", frame)
		}
		cellPixels := map[int][]int{}
		for i, lbl := range labelData {
			if lbl == 0 {
				continue
			}
			cellPixels[int(lbl)] = append(cellPixels[int(lbl)], i)
		}

		var pcPlane []uint16
		if cfg.PC != nil {
			pcPlane, err = pc.FrameU16(frame)
			if err != nil {
				return nil, nil, perr.WithContext(perr.E(perr.IoError, "read pc frame", err), fov, "extract", frame)
			}
		}
		flPlanes := make(map[int][]uint16, len(cfg.FL))
		flBgPlanes := make(map[int][]float32, len(cfg.FL))
		for _, spec := range cfg.FL {
			plane, err := fl[spec.Channel].FrameU16(frame)
			if err != nil {
				return nil, nil, perr.WithContext(perr.E(perr.IoError, "read fl frame", err), fov, "extract", frame)
			}
			flPlanes[spec.Channel] = plane
			if bgRef, ok := flBackground[spec.Channel]; ok {
				bgPlane, err := bgRef.FrameF32(frame)
				if err != nil {
					return nil, nil, perr.WithContext(perr.E(perr.IoError, "read fl_background frame", err), fov, "extract", frame)
				}
				flBgPlanes[spec.Channel] = bgPlane
			}
		}

		cellIDs := make([]int, 0, len(cellPixels))
		for id := range cellPixels {
			cellIDs = append(cellIDs, id)
		}
		sort.Ints(cellIDs)

		for _, cellID := range cellIDs {
			idxs := cellPixels[cellID]
			y0, x0, y1, x1, cy, cx := bboxAndCentroid(idxs, w)
			row := FeatureRow{
				FOV: fov, Cell: cellID, Frame: frame,
				Time: timeFor(frame, cfg.TimePoints),
				Good: true,
				PosX: cx, PosY: cy,
				BBoxX0: x0, BBoxY0: y0, BBoxX1: x1, BBoxY1: y1,
				Features: map[string]float64{},
			}

			if cfg.PC != nil {
				sample := Sample{Area: len(idxs), Y0: y0, X0: x0, Y1: y1, X1: x1, Values: gatherU16(pcPlane, idxs)}
				for _, fname := range cfg.PC.Features {
					v, err := evalFeature(registry, fname, PhaseFeature, sample)
					if err != nil {
						return nil, nil, err
					}
					row.Features[featureKey(fname, cfg.PC.Channel)] = v
				}
			}
			for _, spec := range cfg.FL {
				var bgValues []float64
				if bgPlane, ok := flBgPlanes[spec.Channel]; ok {
					bgValues = gatherF32(bgPlane, idxs)
				}
				sample := Sample{
					Area: len(idxs), Y0: y0, X0: x0, Y1: y1, X1: x1,
					Values: gatherU16(flPlanes[spec.Channel], idxs),
					Background: bgValues, BackgroundWeight: bgWeight,
				}
				for _, fname := range spec.Features {
					v, err := evalFeature(registry, fname, FluorescenceFeature, sample)
					if err != nil {
						return nil, nil, err
					}
					row.Features[featureKey(fname, spec.Channel)] = v
				}
			}
			rows = append(rows, row)
		}
	}

	filtered, warnings := applyTraceFilters(rows, h, w, cfg.MinTraceLength, cfg.BorderWidthPx)
	if len(filtered) == 0 {
		warnings = append(warnings, Warning{Msg: "EmptyOutput: no cells survived filtering"})
	}
	return filtered, warnings, nil
}

func evalFeature(registry *Registry, name string, want Signature, sample Sample) (float64, error) {
	entry, ok := registry.Lookup(name)
	if !ok {
		return 0, perr.E(perr.ConfigError, fmt.Sprintf("unknown feature %q", name), nil)
	}
	if entry.Signature != want {
		return 0, perr.E(perr.ConfigError, fmt.Sprintf("feature %q is not a %s feature", name, want), nil)
	}
	return entry.Fn(sample), nil
}

func timeFor(frame int, timePoints []float64) float64 {
	if frame < len(timePoints) {
		return timePoints[frame]
	}
	return float64(frame)
}

func bboxAndCentroid(idxs []int, w int) (y0, x0, y1, x1 int, cy, cx float64) {
	y0, x0 = 1<<30, 1<<30
	y1, x1 = -1, -1
	var sumY, sumX float64
	for _, idx := range idxs {
		y, x := idx/w, idx%w
		if y < y0 {
			y0 = y
		}
		if x < x0 {
			x0 = x
		}
		if y+1 > y1 {
			y1 = y + 1
		}
		if x+1 > x1 {
			x1 = x + 1
		}
		sumY += float64(y)
		sumX += float64(x)
	}
	n := float64(len(idxs))
	return y0, x0, y1, x1, sumY / n, sumX / n
}

func gatherU16(plane []uint16, idxs []int) []float64 {
	out := make([]float64, len(idxs))
	for i, idx := range idxs {
		out[i] = float64(plane[idx])
	}
	return out
}

func gatherF32(plane []float32, idxs []int) []float64 {
	out := make([]float64, len(idxs))
	for i, idx := range idxs {
		out[i] = float64(plane[idx])
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// applyTraceFilters drops cells whose row count is below minTraceLength, or
// whose centroid ever lies within borderWidthPx of the image edge.
func applyTraceFilters(rows []FeatureRow, h, w, minTraceLength, borderWidthPx int) ([]FeatureRow, []Warning) {
	byCell := map[int][]FeatureRow{}
	for _, r := range rows {
		byCell[r.Cell] = append(byCell[r.Cell], r)
	}
	var out []FeatureRow
	for _, group := range byCell {
		if len(group) < minTraceLength {
			continue
		}
		nearBorder := false
		for _, r := range group {
			if r.PosX <= float64(borderWidthPx) || r.PosX >= float64(w-1-borderWidthPx) ||
				r.PosY <= float64(borderWidthPx) || r.PosY >= float64(h-1-borderWidthPx) {
				nearBorder = true
				break
			}
		}
		if nearBorder {
			continue
		}
		out = append(out, group...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Cell != out[j].Cell {
			return out[i].Cell < out[j].Cell
		}
		return out[i].Frame < out[j].Frame
	})
	return out, nil
}
