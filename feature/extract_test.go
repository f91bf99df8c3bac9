package feature

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/stackstore"
)

// writeU16Stack builds and commits a single-frame u16 stack, then reopens
// it through the store so the returned ref is actually mmapped for reads.
func writeU16Stack(t *testing.T, s stackstore.Store, kind stackstore.Kind, fov, channel, h, w int, data []uint16) *stackstore.StackRef {
	t.Helper()
	writer, err := s.Create(kind, fov, channel, 1, h, w)
	require.NoError(t, err)
	require.NoError(t, writer.PutFrameU16(0, data))
	_, err = writer.Commit()
	require.NoError(t, err)
	ref, err := s.OpenStack(kind, fov, channel)
	require.NoError(t, err)
	t.Cleanup(func() { ref.Close() })
	return ref
}

func writeLabelStack(t *testing.T, s stackstore.Store, fov, channel, h, w int, data []uint16) *stackstore.StackRef {
	t.Helper()
	writer, err := s.Create(stackstore.KindSegLabeled, fov, channel, 1, h, w)
	require.NoError(t, err)
	require.NoError(t, writer.PutFrameU16Label(0, data))
	_, err = writer.Commit()
	require.NoError(t, err)
	ref, err := s.OpenStack(stackstore.KindSegLabeled, fov, channel)
	require.NoError(t, err)
	t.Cleanup(func() { ref.Close() })
	return ref
}

func writeF32Stack(t *testing.T, s stackstore.Store, kind stackstore.Kind, fov, channel, h, w int, data []float32) *stackstore.StackRef {
	t.Helper()
	writer, err := s.Create(kind, fov, channel, 1, h, w)
	require.NoError(t, err)
	require.NoError(t, writer.PutFrameF32(0, data))
	_, err = writer.Commit()
	require.NoError(t, err)
	ref, err := s.OpenStack(kind, fov, channel)
	require.NoError(t, err)
	t.Cleanup(func() { ref.Close() })
	return ref
}

// squareLabel paints a label value into a 2x2 block starting at (y0,x0) in
// an h*w row-major u16 plane, leaving the rest zero.
func squareLabel(h, w, y0, x0 int, label uint16) []uint16 {
	data := make([]uint16, h*w)
	for y := y0; y < y0+2; y++ {
		for x := x0; x < x0+2; x++ {
			data[y*w+x] = label
		}
	}
	return data
}

func fillU16(h, w int, v uint16) []uint16 {
	data := make([]uint16, h*w)
	for i := range data {
		data[i] = v
	}
	return data
}

func fillF32(h, w int, v float32) []float32 {
	data := make([]float32, h*w)
	for i := range data {
		data[i] = v
	}
	return data
}

func TestRunComputesAreaAndIntensityTotalWithoutBackground(t *testing.T) {
	const h, w = 8, 8
	s := stackstore.Store{OutputDir: t.TempDir(), Basename: "exp"}

	labeled := writeLabelStack(t, s, 0, 0, h, w, squareLabel(h, w, 2, 2, 1))
	pc := writeU16Stack(t, s, stackstore.KindPC, 0, 0, h, w, fillU16(h, w, 1000))

	// Cell pixels at 500 (all others 0), so the cell's 4 pixels sum to 2000.
	flData := fillU16(h, w, 0)
	for _, idx := range []int{2*w + 2, 2*w + 3, 3*w + 2, 3*w + 3} {
		flData[idx] = 500
	}
	fl := writeU16Stack(t, s, stackstore.KindFL, 0, 1, h, w, flData)

	cfg := Config{
		PC:             &ChannelSpec{Channel: 0, Features: []string{"area"}},
		FL:             []ChannelSpec{{Channel: 1, Features: []string{"intensity_total"}}},
		MinTraceLength: 1,
	}

	rows, warnings, err := Run(context.Background(), Default, 0, labeled, pc,
		map[int]*stackstore.StackRef{1: fl}, nil, cfg)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, 0, row.FOV)
	assert.Equal(t, 1, row.Cell)
	assert.Equal(t, 4.0, row.Features["area_ch_0"])
	assert.Equal(t, 2000.0, row.Features["intensity_total_ch_1"])
}

func TestRunSubtractsWeightedBackground(t *testing.T) {
	const h, w = 8, 8
	s := stackstore.Store{OutputDir: t.TempDir(), Basename: "exp"}

	labeled := writeLabelStack(t, s, 0, 0, h, w, squareLabel(h, w, 2, 2, 1))
	pc := writeU16Stack(t, s, stackstore.KindPC, 0, 0, h, w, fillU16(h, w, 1000))

	// Cell pixels at 1500, background surface at a uniform 500 everywhere.
	flData := fillU16(h, w, 0)
	for _, idx := range []int{2*w + 2, 2*w + 3, 3*w + 2, 3*w + 3} {
		flData[idx] = 1500
	}
	fl := writeU16Stack(t, s, stackstore.KindFL, 0, 1, h, w, flData)
	flBg := writeF32Stack(t, s, stackstore.KindFLBackground, 0, 1, h, w, fillF32(h, w, 500))

	cfg := Config{
		PC:               &ChannelSpec{Channel: 0, Features: []string{"area"}},
		FL:               []ChannelSpec{{Channel: 1, Features: []string{"intensity_total"}}},
		BackgroundWeight: 1.0,
		MinTraceLength:   1,
	}

	rows, warnings, err := Run(context.Background(), Default, 0, labeled, pc,
		map[int]*stackstore.StackRef{1: fl},
		map[int]*stackstore.StackRef{1: flBg},
		cfg)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, rows, 1)

	// (1500-500) summed over the 4 cell pixels.
	assert.Equal(t, 4000.0, rows[0].Features["intensity_total_ch_1"])
}

func TestRunBorderFilterDropsCellsNearEdgeOnly(t *testing.T) {
	const h, w = 100, 100
	s := stackstore.Store{OutputDir: t.TempDir(), Basename: "exp"}

	// A single-pixel cell at (5,5): its centroid lands exactly there.
	labelData := make([]uint16, h*w)
	labelData[5*w+5] = 7
	pcData := fillU16(h, w, 1000)

	cfgBase := Config{
		PC:             &ChannelSpec{Channel: 0, Features: []string{"area"}},
		MinTraceLength: 1,
	}

	t.Run("retained when centroid lies outside border width", func(t *testing.T) {
		labeled := writeLabelStack(t, s, 0, 0, h, w, labelData)
		pc := writeU16Stack(t, s, stackstore.KindPC, 0, 0, h, w, pcData)
		cfg := cfgBase
		cfg.BorderWidthPx = 4
		rows, warnings, err := Run(context.Background(), Default, 0, labeled, pc, nil, nil, cfg)
		require.NoError(t, err)
		assert.Empty(t, warnings)
		require.Len(t, rows, 1)
		assert.Equal(t, 7, rows[0].Cell)
	})

	t.Run("dropped once border width reaches the centroid", func(t *testing.T) {
		labeled := writeLabelStack(t, s, 1, 0, h, w, labelData)
		pc := writeU16Stack(t, s, stackstore.KindPC, 1, 0, h, w, pcData)
		cfg := cfgBase
		cfg.BorderWidthPx = 6
		rows, warnings, err := Run(context.Background(), Default, 1, labeled, pc, nil, nil, cfg)
		require.NoError(t, err)
		assert.Empty(t, rows)
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0].Msg, "EmptyOutput")
	})
}
