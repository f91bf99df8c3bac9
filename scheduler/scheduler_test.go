package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/feature"
	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/microscopy"
	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/pipectx"
	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/stackstore"
)

// recordingObserver captures events for assertions without depending on a
// logging backend.
type recordingObserver struct {
	warnings []string
}

func (r *recordingObserver) BatchStarted([]int)                           {}
func (r *recordingObserver) StageStarted(int, string)                     {}
func (r *recordingObserver) StageFinished(int, string, bool, string)      {}
func (r *recordingObserver) BatchFinished([]int)                          {}
func (r *recordingObserver) Warning(kind, msg string) {
	r.warnings = append(r.warnings, kind+": "+msg)
}

func syntheticReader(t *testing.T, nFOV, nFrames, h, w int) microscopy.Reader {
	t.Helper()
	meta := microscopy.Metadata{
		NFOVs: nFOV, NFrames: nFrames, NChannels: 2, H: h, W: w,
		ChannelNames: []string{"pc", "fl"},
	}
	frames := make([][][][]uint16, nFOV)
	for f := 0; f < nFOV; f++ {
		frames[f] = make([][][]uint16, nFrames)
		for ti := 0; ti < nFrames; ti++ {
			pc := make([]uint16, h*w)
			fl := make([]uint16, h*w)
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					i := y*w + x
					if y >= h/2-2 && y < h/2+2 && x >= w/2-2 && x < w/2+2 {
						pc[i] = 4000
						fl[i] = 3000
					} else {
						pc[i] = 200
						fl[i] = 800
					}
				}
			}
			frames[f][ti] = [][]uint16{pc, fl}
		}
	}
	r, err := microscopy.NewMemReader(meta, frames)
	require.NoError(t, err)
	return r
}

func basicContext(outDir string) pipectx.Context {
	return pipectx.Context{
		OutputDir: outDir,
		Channels: pipectx.ChannelConfig{
			PC: &pipectx.PCChannel{Channel: 0, Features: []string{"area"}},
			FL: []pipectx.FLChannel{{Channel: 1, Features: []string{"intensity_total"}}},
		},
		Params: func() pipectx.Params {
			p := pipectx.DefaultParams()
			p.MinTraceLength = 1
			p.BorderWidthPx = 0
			p.BatchSize = 2
			p.NWorkers = 2
			p.BgTile = 8
			return p
		}(),
	}
}

func TestSchedulerRunEndToEndProducesCompleteManifest(t *testing.T) {
	outDir := t.TempDir()
	store := stackstore.Store{OutputDir: outDir, Basename: "exp"}
	sched := New(store, feature.Default)

	reader := syntheticReader(t, 3, 4, 16, 16)
	obs := &recordingObserver{}

	idx, err := sched.Run(context.Background(), reader, basicContext(outDir), 0, 2, obs)
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.False(t, idx.AnyIncomplete())

	for fov := 0; fov < 3; fov++ {
		d, ok := idx.FOVData(fov)
		require.True(t, ok)
		assert.NotEmpty(t, d.TracesCSV)
		assert.FileExists(t, d.TracesCSV)
	}
	assert.FileExists(t, store.ManifestPath())
}

func TestSchedulerRunRejectsInvalidContext(t *testing.T) {
	outDir := t.TempDir()
	store := stackstore.Store{OutputDir: outDir, Basename: "exp"}
	sched := New(store, feature.Default)
	reader := syntheticReader(t, 1, 2, 8, 8)

	ctx := basicContext(outDir)
	ctx.Channels.PC = nil

	_, err := sched.Run(context.Background(), reader, ctx, 0, 0, nil)
	require.Error(t, err)
}

func TestSchedulerRunIsResumable(t *testing.T) {
	outDir := t.TempDir()
	store := stackstore.Store{OutputDir: outDir, Basename: "exp"}
	sched := New(store, feature.Default)
	reader := syntheticReader(t, 1, 3, 16, 16)
	ctx := basicContext(outDir)

	idx1, err := sched.Run(context.Background(), reader, ctx, 0, 0, nil)
	require.NoError(t, err)
	d1, _ := idx1.FOVData(0)

	// Re-running over the same output dir must not fail and must produce
	// the same trace CSV path (existing stacks are detected and skipped).
	idx2, err := sched.Run(context.Background(), reader, ctx, 0, 0, nil)
	require.NoError(t, err)
	d2, ok := idx2.FOVData(0)
	require.True(t, ok)
	assert.Equal(t, d1.TracesCSV, d2.TracesCSV)
}

func TestSchedulerRunCancelledBeforeStartReportsCancelled(t *testing.T) {
	outDir := t.TempDir()
	store := stackstore.Store{OutputDir: outDir, Basename: "exp"}
	sched := New(store, feature.Default)
	reader := syntheticReader(t, 2, 2, 8, 8)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sched.Run(ctx, reader, basicContext(outDir), 0, 1, nil)
	require.Error(t, err)
}

func TestSchedulerManifestPersistedAtomically(t *testing.T) {
	outDir := t.TempDir()
	store := stackstore.Store{OutputDir: outDir, Basename: "exp"}
	sched := New(store, feature.Default)
	reader := syntheticReader(t, 1, 2, 8, 8)

	_, err := sched.Run(context.Background(), reader, basicContext(outDir), 0, 0, nil)
	require.NoError(t, err)

	manifestPath := store.ManifestPath()
	assert.FileExists(t, manifestPath)
	tmpPath := manifestPath + ".tmp"
	_, statErr := os.Stat(tmpPath)
	assert.True(t, os.IsNotExist(statErr), "temp manifest file must not remain after a successful run")
	assert.NotEmpty(t, filepath.Base(manifestPath))
}
