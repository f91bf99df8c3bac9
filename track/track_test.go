package track

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/stackstore"
)

func writeSegStack(t *testing.T, store stackstore.Store, fov, frames, h, w int, masks [][]bool) stackstore.StackRef {
	t.Helper()
	writer, err := store.Create(stackstore.KindSeg, fov, 0, frames, h, w)
	require.NoError(t, err)
	for i, m := range masks {
		require.NoError(t, writer.PutFrameBool(i, m))
	}
	ref, err := writer.Commit()
	require.NoError(t, err)
	return ref
}

func gridMask(h, w int, on func(y, x int) bool) []bool {
	m := make([]bool, h*w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if on(y, x) {
				m[y*w+x] = true
			}
		}
	}
	return m
}

func TestRunTracksStationaryCellAcrossFrames(t *testing.T) {
	store := stackstore.Store{OutputDir: t.TempDir(), Basename: "test"}
	const h, w = 10, 10
	cell := func(y, x int) bool { return y >= 2 && y < 5 && x >= 2 && x < 5 }
	masks := [][]bool{
		gridMask(h, w, cell),
		gridMask(h, w, cell),
		gridMask(h, w, cell),
	}
	seg := writeSegStack(t, store, 0, 3, h, w, masks)
	defer seg.Close()

	labelWriter, err := store.Create(stackstore.KindSegLabeled, 0, 0, 3, h, w)
	require.NoError(t, err)

	err = Run(context.Background(), &seg, labelWriter, Params{IoUMin: 0.3})
	require.NoError(t, err)
	labeled, err := labelWriter.Commit()
	require.NoError(t, err)
	defer labeled.Close()

	for f := 0; f < 3; f++ {
		frame, err := labeled.FrameU16Label(f)
		require.NoError(t, err)
		id := frame[2*w+2]
		require.NotZero(t, id)
		for y := 2; y < 5; y++ {
			for x := 2; x < 5; x++ {
				require.Equal(t, id, frame[y*w+x], "frame %d (%d,%d)", f, y, x)
			}
		}
	}
}

func TestRunAssignsFreshIDToNewCell(t *testing.T) {
	store := stackstore.Store{OutputDir: t.TempDir(), Basename: "test"}
	const h, w = 10, 10
	masks := [][]bool{
		gridMask(h, w, func(y, x int) bool { return false }),
		gridMask(h, w, func(y, x int) bool { return y >= 6 && y < 8 && x >= 6 && x < 8 }),
	}
	seg := writeSegStack(t, store, 1, 2, h, w, masks)
	defer seg.Close()

	labelWriter, err := store.Create(stackstore.KindSegLabeled, 1, 0, 2, h, w)
	require.NoError(t, err)
	require.NoError(t, Run(context.Background(), &seg, labelWriter, Params{IoUMin: 0.3}))
	labeled, err := labelWriter.Commit()
	require.NoError(t, err)
	defer labeled.Close()

	frame0, err := labeled.FrameU16Label(0)
	require.NoError(t, err)
	for _, v := range frame0 {
		require.Zero(t, v)
	}
	frame1, err := labeled.FrameU16Label(1)
	require.NoError(t, err)
	require.NotZero(t, frame1[6*w+6])
}

func TestRunRespectsMinSizeFilter(t *testing.T) {
	store := stackstore.Store{OutputDir: t.TempDir(), Basename: "test"}
	const h, w = 10, 10
	masks := [][]bool{
		gridMask(h, w, func(y, x int) bool { return y == 0 && x == 0 }),
	}
	seg := writeSegStack(t, store, 2, 1, h, w, masks)
	defer seg.Close()

	labelWriter, err := store.Create(stackstore.KindSegLabeled, 2, 0, 1, h, w)
	require.NoError(t, err)
	require.NoError(t, Run(context.Background(), &seg, labelWriter, Params{IoUMin: 0.3, MinSize: 4}))
	labeled, err := labelWriter.Commit()
	require.NoError(t, err)
	defer labeled.Close()

	frame0, err := labeled.FrameU16Label(0)
	require.NoError(t, err)
	for _, v := range frame0 {
		require.Zero(t, v)
	}
}
