package background

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/stackstore"
)

func TestBuildTileGridCoversFullFrame(t *testing.T) {
	tiles := buildTileGrid(100, 100, 32, 0.5)
	require.NotEmpty(t, tiles)
	maxY1, maxX1 := 0, 0
	for _, tl := range tiles {
		if tl.y1 > maxY1 {
			maxY1 = tl.y1
		}
		if tl.x1 > maxX1 {
			maxX1 = tl.x1
		}
	}
	assert.Equal(t, 100, maxY1)
	assert.Equal(t, 100, maxX1)
}

func TestFillMissingNearestFillsFromClosestCell(t *testing.T) {
	// 1x3 grid; middle missing, neighbours known.
	values := []float64{10, 0, 30}
	missing := []bool{false, true, false}
	fillMissingNearest(values, missing, 3)
	assert.Contains(t, []float64{10, 30}, values[1])
}

func TestFillMissingNearestNoOpWhenNothingMissing(t *testing.T) {
	values := []float64{1, 2, 3}
	missing := []bool{false, false, false}
	fillMissingNearest(values, missing, 3)
	assert.Equal(t, []float64{1, 2, 3}, values)
}

func TestRunProducesBackgroundWithinPixelRange(t *testing.T) {
	store := stackstore.Store{OutputDir: t.TempDir(), Basename: "test"}
	const h, w = 32, 32

	segWriter, err := store.Create(stackstore.KindSeg, 0, 0, 1, h, w)
	require.NoError(t, err)
	mask := make([]bool, h*w)
	for y := 10; y < 14; y++ {
		for x := 10; x < 14; x++ {
			mask[y*w+x] = true
		}
	}
	require.NoError(t, segWriter.PutFrameBool(0, mask))
	seg, err := segWriter.Commit()
	require.NoError(t, err)
	defer seg.Close()

	flWriter, err := store.Create(stackstore.KindFL, 0, 1, 1, h, w)
	require.NoError(t, err)
	fl := make([]uint16, h*w)
	for i := range fl {
		fl[i] = 1000
	}
	for y := 10; y < 14; y++ {
		for x := 10; x < 14; x++ {
			fl[y*w+x] = 5000
		}
	}
	require.NoError(t, flWriter.PutFrameU16(0, fl))
	flRef, err := flWriter.Commit()
	require.NoError(t, err)
	defer flRef.Close()

	outWriter, err := store.Create(stackstore.KindFLBackground, 0, 1, 1, h, w)
	require.NoError(t, err)

	warnings, err := Run(context.Background(), &seg, &flRef, outWriter, Params{TilePx: 16, Overlap: 0.5, DilationPx: 2})
	require.NoError(t, err)
	assert.Empty(t, warnings)

	out, err := outWriter.Commit()
	require.NoError(t, err)
	defer out.Close()

	frame, err := out.FrameF32(0)
	require.NoError(t, err)
	for _, v := range frame {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(65535))
		// background should track the 1000-valued surround, not the
		// elevated foreground square.
		assert.InDelta(t, 1000, v, 500)
	}
}

func TestRunWarnsOnConstantFrame(t *testing.T) {
	store := stackstore.Store{OutputDir: t.TempDir(), Basename: "test"}
	const h, w = 16, 16

	segWriter, err := store.Create(stackstore.KindSeg, 1, 0, 1, h, w)
	require.NoError(t, err)
	require.NoError(t, segWriter.PutFrameBool(0, make([]bool, h*w)))
	seg, err := segWriter.Commit()
	require.NoError(t, err)
	defer seg.Close()

	flWriter, err := store.Create(stackstore.KindFL, 1, 1, 1, h, w)
	require.NoError(t, err)
	fl := make([]uint16, h*w)
	for i := range fl {
		fl[i] = 777
	}
	require.NoError(t, flWriter.PutFrameU16(0, fl))
	flRef, err := flWriter.Commit()
	require.NoError(t, err)
	defer flRef.Close()

	outWriter, err := store.Create(stackstore.KindFLBackground, 1, 1, 1, h, w)
	require.NoError(t, err)

	warnings, err := Run(context.Background(), &seg, &flRef, outWriter, Params{TilePx: 8, Overlap: 0.5, DilationPx: 1})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, 0, warnings[0].Frame)
}
