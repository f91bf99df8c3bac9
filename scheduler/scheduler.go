package scheduler

import (
	"context"
	"os"

	"github.com/grailbio/base/traverse"

	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/background"
	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/feature"
	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/microscopy"
	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/perr"
	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/pipectx"
	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/results"
	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/segment"
	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/stackstore"
	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/track"
)

// Scheduler runs the batched two-tier pipeline over a stack store and a
// feature registry, persisting a results.Index manifest.
type Scheduler struct {
	Store    stackstore.Store
	Registry *feature.Registry
}

// New returns a Scheduler rooted at store.
func New(store stackstore.Store, registry *feature.Registry) *Scheduler {
	return &Scheduler{Store: store, Registry: registry}
}

// Run drives the pipeline over [fovStart, fovEnd], inclusive, splitting the
// range into batches, copying each batch's source frames serially, then
// fanning stages 2-5 out across the batch's FOVs. It returns the final
// manifest and, if the run did not complete all FOVs (cancellation or a
// fatal run-level error), a non-nil error.
func (s *Scheduler) Run(
	ctx context.Context,
	reader microscopy.Reader,
	pctx pipectx.Context,
	fovStart, fovEnd int,
	observer Observer,
) (*results.Index, error) {
	if observer == nil {
		observer = NopObserver{}
	}
	if err := pctx.Validate(s.Registry); err != nil {
		return nil, err
	}
	meta, err := reader.Metadata(ctx)
	if err != nil {
		return nil, perr.E(perr.IoError, "read microscopy metadata", err)
	}

	if err := os.MkdirAll(s.Store.OutputDir, 0o755); err != nil {
		return nil, perr.E(perr.IoError, "create output dir", err)
	}

	nFOV := fovEnd - fovStart + 1
	idx := results.NewIndex(s.Store.OutputDir, s.Store.Basename, pctx, nFOV)

	batchSize := pctx.Params.BatchSize
	var runErr error

	for batchStart := fovStart; batchStart <= fovEnd; batchStart += batchSize {
		if ctx.Err() != nil {
			runErr = perr.E(perr.Cancelled, "scheduler: cancelled before batch dispatch", ctx.Err())
			break
		}
		batchEnd := batchStart + batchSize - 1
		if batchEnd > fovEnd {
			batchEnd = fovEnd
		}
		fovs := make([]int, 0, batchEnd-batchStart+1)
		for f := batchStart; f <= batchEnd; f++ {
			fovs = append(fovs, f)
		}

		observer.BatchStarted(fovs)
		copied := s.copyBatch(ctx, reader, meta, pctx, fovs, observer)
		s.processBatch(ctx, pctx, meta, copied, idx, observer)
		observer.BatchFinished(fovs)

		if err := idx.Persist(s.Store.ManifestPath()); err != nil {
			return idx, err
		}
		if ctx.Err() != nil {
			runErr = perr.E(perr.Cancelled, "scheduler: cancelled during batch", ctx.Err())
			break
		}
	}
	return idx, runErr
}

// copyBatch runs the serial Copy phase and returns the FOVs that are ready
// for processing (i.e. not already cancelled/failed).
func (s *Scheduler) copyBatch(
	ctx context.Context,
	reader microscopy.Reader,
	meta microscopy.Metadata,
	pctx pipectx.Context,
	fovs []int,
	observer Observer,
) []int {
	var ready []int
	for _, fov := range fovs {
		if ctx.Err() != nil {
			break
		}
		if err := s.copyFOV(ctx, reader, meta, pctx, fov, observer); err != nil {
			observer.Warning("copy", err.Error())
			continue
		}
		ready = append(ready, fov)
	}
	return ready
}

func (s *Scheduler) copyFOV(
	ctx context.Context,
	reader microscopy.Reader,
	meta microscopy.Metadata,
	pctx pipectx.Context,
	fov int,
	observer Observer,
) error {
	type channelSpec struct {
		kind    stackstore.Kind
		channel int
	}
	specs := []channelSpec{{stackstore.KindPC, pctx.Channels.PC.Channel}}
	for _, fl := range pctx.Channels.FL {
		specs = append(specs, channelSpec{stackstore.KindFL, fl.Channel})
	}

	for _, sp := range specs {
		if s.Store.Exists(sp.kind, fov, sp.channel) {
			continue // resumability: skip a stack that was already fully written
		}
		observer.StageStarted(fov, "copy")
		w, err := s.Store.Create(sp.kind, fov, sp.channel, meta.NFrames, meta.H, meta.W)
		if err != nil {
			if stackstore.IsAlreadyExists(err) {
				continue
			}
			observer.StageFinished(fov, "copy", false, err.Error())
			return err
		}
		for t := 0; t < meta.NFrames; t++ {
			if err := ctx.Err(); err != nil {
				w.Discard()
				return perr.E(perr.Cancelled, "copy: cancelled", err)
			}
			frame, err := reader.ReadFrame(ctx, fov, t, sp.channel)
			if err != nil {
				w.Discard()
				observer.StageFinished(fov, "copy", false, err.Error())
				return perr.WithContext(perr.E(perr.IoError, "read frame", err), fov, "copy", t)
			}
			if err := w.PutFrameU16(t, frame); err != nil {
				w.Discard()
				return perr.WithContext(err, fov, "copy", t)
			}
		}
		if _, err := w.Commit(); err != nil {
			return err
		}
		observer.StageFinished(fov, "copy", true, "")
	}
	return nil
}

// processBatch runs the parallel Processing phase, partitioning fovs into
// pctx.Params.NWorkers contiguous jobs the way the teacher's traverse.Each
// main loop shards a job list across workers, then merges each worker's
// result into idx.
func (s *Scheduler) processBatch(
	ctx context.Context,
	pctx pipectx.Context,
	meta microscopy.Metadata,
	fovs []int,
	idx *results.Index,
	observer Observer,
) {
	n := len(fovs)
	if n == 0 {
		return
	}
	workers := pctx.Params.NWorkers
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	traverse.Each(workers, func(jobIdx int) error { // nolint: errcheck
		startIdx := (jobIdx * n) / workers
		endIdx := ((jobIdx + 1) * n) / workers
		for _, fov := range fovs[startIdx:endIdx] {
			data := s.processFOV(ctx, pctx, meta, fov, observer)
			idx.Merge(results.Delta{FOV: fov, Data: data})
		}
		return nil
	})
}

// processFOV runs Segment -> (per-fl) Background -> Track -> Extract for
// one FOV, in that fixed order, since each stage's input is the previous
// stage's output. It never returns an error: failures are recorded in the
// returned FOVData's Status and Warnings so one FOV's failure cannot abort
// its batch siblings.
func (s *Scheduler) processFOV(ctx context.Context, pctx pipectx.Context, meta microscopy.Metadata, fov int, observer Observer) results.FOVData {
	data := results.FOVData{Status: results.StatusComplete}
	pcChannel := pctx.Channels.PC.Channel

	if s.Store.Exists(stackstore.KindSegLabeled, fov, pcChannel) {
		if _, err := os.Stat(s.Store.TracesCSVPath(fov)); err == nil {
			// Trace CSV already exists: whole FOV is a no-op.
			return s.fovDataFromExisting(pctx, fov)
		}
	}

	pcRef, err := s.Store.OpenStack(stackstore.KindPC, fov, pcChannel)
	if err != nil {
		return failFOV(data, err)
	}
	defer pcRef.Close()
	data.PC = s.Store.Path(stackstore.KindPC, fov, pcChannel)
	for _, flSpec := range pctx.Channels.FL {
		data.FL = append(data.FL, results.FLArtifact{Channel: flSpec.Channel, Path: s.Store.Path(stackstore.KindFL, fov, flSpec.Channel)})
	}
	t, h, w := pcRef.Shape()

	if !s.Store.Exists(stackstore.KindSeg, fov, pcChannel) {
		observer.StageStarted(fov, "segment")
		segW, err := s.Store.Create(stackstore.KindSeg, fov, pcChannel, t, h, w)
		if err != nil {
			observer.StageFinished(fov, "segment", false, err.Error())
			return failFOV(data, err)
		}
		warnings, err := segment.Run(ctx, pcRef, segW, segment.Params{
			Window: pctx.Params.SegWindow, StructSize: pctx.Params.SegStructSize, StructIter: pctx.Params.SegStructIter,
		})
		for _, warn := range warnings {
			data.Warnings = append(data.Warnings, warn.Msg)
		}
		if err != nil {
			segW.Discard()
			observer.StageFinished(fov, "segment", false, err.Error())
			return failFOV(data, err)
		}
		if _, err := segW.Commit(); err != nil {
			return failFOV(data, err)
		}
		observer.StageFinished(fov, "segment", true, "")
	}
	segRef, err := s.Store.OpenStack(stackstore.KindSeg, fov, pcChannel)
	if err != nil {
		return failFOV(data, err)
	}
	defer segRef.Close()
	data.Seg = s.Store.Path(stackstore.KindSeg, fov, pcChannel)

	for _, flSpec := range pctx.Channels.FL {
		if !s.Store.Exists(stackstore.KindFLBackground, fov, flSpec.Channel) {
			observer.StageStarted(fov, "background")
			flRef, err := s.Store.OpenStack(stackstore.KindFL, fov, flSpec.Channel)
			if err != nil {
				observer.StageFinished(fov, "background", false, err.Error())
				return failFOV(data, err)
			}
			bgW, err := s.Store.Create(stackstore.KindFLBackground, fov, flSpec.Channel, t, h, w)
			if err != nil {
				flRef.Close()
				observer.StageFinished(fov, "background", false, err.Error())
				return failFOV(data, err)
			}
			warnings, err := background.Run(ctx, segRef, flRef, bgW, background.Params{
				TilePx: pctx.Params.BgTile, Overlap: pctx.Params.BgOverlap, DilationPx: defaultDilationPx,
			})
			flRef.Close()
			for _, warn := range warnings {
				data.Warnings = append(data.Warnings, warn.Msg)
			}
			if err != nil {
				bgW.Discard()
				observer.StageFinished(fov, "background", false, err.Error())
				return failFOV(data, err)
			}
			if _, err := bgW.Commit(); err != nil {
				return failFOV(data, err)
			}
			observer.StageFinished(fov, "background", true, "")
		}
		data.FLBackground = append(data.FLBackground, results.FLArtifact{
			Channel: flSpec.Channel, Path: s.Store.Path(stackstore.KindFLBackground, fov, flSpec.Channel),
		})
	}

	if !s.Store.Exists(stackstore.KindSegLabeled, fov, pcChannel) {
		observer.StageStarted(fov, "track")
		labeledW, err := s.Store.Create(stackstore.KindSegLabeled, fov, pcChannel, t, h, w)
		if err != nil {
			observer.StageFinished(fov, "track", false, err.Error())
			return failFOV(data, err)
		}
		if err := track.Run(ctx, segRef, labeledW, track.Params{
			IoUMin: pctx.Params.IoUMin,
		}); err != nil {
			labeledW.Discard()
			observer.StageFinished(fov, "track", false, err.Error())
			return failFOV(data, err)
		}
		if _, err := labeledW.Commit(); err != nil {
			return failFOV(data, err)
		}
		observer.StageFinished(fov, "track", true, "")
	}
	data.SegLabeled = s.Store.Path(stackstore.KindSegLabeled, fov, pcChannel)

	labeledRef, err := s.Store.OpenStack(stackstore.KindSegLabeled, fov, pcChannel)
	if err != nil {
		return failFOV(data, err)
	}
	defer labeledRef.Close()

	observer.StageStarted(fov, "extract")
	flRefs := make(map[int]*stackstore.StackRef, len(pctx.Channels.FL))
	flBgRefs := make(map[int]*stackstore.StackRef, len(pctx.Channels.FL))
	for _, flSpec := range pctx.Channels.FL {
		ref, err := s.Store.OpenStack(stackstore.KindFL, fov, flSpec.Channel)
		if err != nil {
			observer.StageFinished(fov, "extract", false, err.Error())
			return failFOV(data, err)
		}
		flRefs[flSpec.Channel] = ref
		defer ref.Close()
		bgRef, err := s.Store.OpenStack(stackstore.KindFLBackground, fov, flSpec.Channel)
		if err == nil {
			flBgRefs[flSpec.Channel] = bgRef
			defer bgRef.Close()
		}
	}

	cfg := feature.Config{
		FL:               make([]feature.ChannelSpec, 0, len(pctx.Channels.FL)),
		BackgroundWeight: pctx.Params.BackgroundWeight,
		MinTraceLength:   pctx.Params.MinTraceLength,
		BorderWidthPx:    pctx.Params.BorderWidthPx,
		TimePoints:       meta.TimePoints,
	}
	if pctx.Channels.PC != nil {
		cfg.PC = &feature.ChannelSpec{Channel: pctx.Channels.PC.Channel, Features: pctx.Channels.PC.Features}
	}
	for _, flSpec := range pctx.Channels.FL {
		cfg.FL = append(cfg.FL, feature.ChannelSpec{Channel: flSpec.Channel, Features: flSpec.Features})
	}

	rows, warnings, err := feature.Run(ctx, s.Registry, fov, labeledRef, pcRef, flRefs, flBgRefs, cfg)
	for _, warn := range warnings {
		data.Warnings = append(data.Warnings, warn.Msg)
	}
	if err != nil {
		observer.StageFinished(fov, "extract", false, err.Error())
		return failFOV(data, err)
	}

	csvPath := s.Store.TracesCSVPath(fov)
	tmpPath := csvPath + ".tmp"
	if err := writeCSVAtomic(tmpPath, csvPath, rows, cfg); err != nil {
		observer.StageFinished(fov, "extract", false, err.Error())
		return failFOV(data, err)
	}
	data.TracesCSV = csvPath
	observer.StageFinished(fov, "extract", true, "")

	return data
}

// defaultDilationPx is the dilation radius applied to the segmentation mask
// before computing background tile statistics, so pixels just outside a
// cell's boundary aren't mistaken for background.
const defaultDilationPx = 10

func failFOV(data results.FOVData, err error) results.FOVData {
	if perr.KindOf(err) == perr.Cancelled {
		data.Status = results.StatusCancelled
	} else {
		data.Status = results.StatusPartial
	}
	data.Warnings = append(data.Warnings, err.Error())
	return data
}

func (s *Scheduler) fovDataFromExisting(pctx pipectx.Context, fov int) results.FOVData {
	pcChannel := pctx.Channels.PC.Channel
	data := results.FOVData{
		Status:     results.StatusComplete,
		PC:         s.Store.Path(stackstore.KindPC, fov, pcChannel),
		Seg:        s.Store.Path(stackstore.KindSeg, fov, pcChannel),
		SegLabeled: s.Store.Path(stackstore.KindSegLabeled, fov, pcChannel),
		TracesCSV:  s.Store.TracesCSVPath(fov),
	}
	for _, flSpec := range pctx.Channels.FL {
		data.FL = append(data.FL, results.FLArtifact{Channel: flSpec.Channel, Path: s.Store.Path(stackstore.KindFL, fov, flSpec.Channel)})
		data.FLBackground = append(data.FLBackground, results.FLArtifact{Channel: flSpec.Channel, Path: s.Store.Path(stackstore.KindFLBackground, fov, flSpec.Channel)})
	}
	return data
}

func writeCSVAtomic(tmpPath, finalPath string, rows []feature.FeatureRow, cfg feature.Config) error {
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return perr.E(perr.IoError, "create csv temp file", err)
	}
	if err := feature.WriteCSV(f, rows, cfg); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return perr.E(perr.IoError, "sync csv", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return perr.E(perr.IoError, "close csv", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return perr.E(perr.IoError, "rename csv", err)
	}
	return nil
}
