package stackstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathHelpers(t *testing.T) {
	s := Store{OutputDir: "/out", Basename: "exp1"}
	assert.Equal(t, "/out/fov_000", s.FOVDir(0))
	assert.Equal(t, "/out/fov_000/exp1_fov_000_pc_ch_0.stack", s.Path(KindPC, 0, 0))
	assert.Equal(t, "/out/fov_000/exp1_fov_000_traces.csv", s.TracesCSVPath(0))
	assert.Equal(t, "/out/processing_results.yaml", s.ManifestPath())
}

func TestWriterCreateExistsCommitReadRoundTrip(t *testing.T) {
	s := Store{OutputDir: t.TempDir(), Basename: "exp"}
	const t0, h, w = 2, 4, 4

	assert.False(t, s.Exists(KindPC, 0, 0))

	writer, err := s.Create(KindPC, 0, 0, t0, h, w)
	require.NoError(t, err)
	frame0 := make([]uint16, h*w)
	for i := range frame0 {
		frame0[i] = uint16(i)
	}
	require.NoError(t, writer.PutFrameU16(0, frame0))
	require.NoError(t, writer.PutFrameU16(1, frame0))

	ref, err := writer.Commit()
	require.NoError(t, err)
	defer ref.Close()

	assert.True(t, s.Exists(KindPC, 0, 0))
	gotT, gotH, gotW := ref.Shape()
	assert.Equal(t, t0, gotT)
	assert.Equal(t, h, gotH)
	assert.Equal(t, w, gotW)

	opened, err := s.OpenStack(KindPC, 0, 0)
	require.NoError(t, err)
	defer opened.Close()
	got, err := opened.FrameU16(0)
	require.NoError(t, err)
	assert.Equal(t, frame0, got)
}

func TestCreateFailsWhenAlreadyExists(t *testing.T) {
	s := Store{OutputDir: t.TempDir(), Basename: "exp"}
	w1, err := s.Create(KindSeg, 0, 0, 1, 2, 2)
	require.NoError(t, err)
	require.NoError(t, w1.PutFrameBool(0, make([]bool, 4)))
	_, err = w1.Commit()
	require.NoError(t, err)

	_, err = s.Create(KindSeg, 0, 0, 1, 2, 2)
	require.Error(t, err)
	assert.True(t, IsAlreadyExists(err))
}

func TestDiscardRemovesTempFileWithoutPublishing(t *testing.T) {
	s := Store{OutputDir: t.TempDir(), Basename: "exp"}
	w, err := s.Create(KindSeg, 1, 0, 1, 2, 2)
	require.NoError(t, err)
	require.NoError(t, w.Discard())
	assert.False(t, s.Exists(KindSeg, 1, 0))
}

func TestPutFrameWrongDTypeFails(t *testing.T) {
	s := Store{OutputDir: t.TempDir(), Basename: "exp"}
	w, err := s.Create(KindPC, 2, 0, 1, 2, 2)
	require.NoError(t, err)
	err = w.PutFrameBool(0, make([]bool, 4))
	assert.Error(t, err)
}

func TestF32RoundTrip(t *testing.T) {
	s := Store{OutputDir: t.TempDir(), Basename: "exp"}
	w, err := s.Create(KindFLBackground, 3, 1, 1, 2, 2)
	require.NoError(t, err)
	plane := []float32{1.5, -2.25, 0, 65535}
	require.NoError(t, w.PutFrameF32(0, plane))
	ref, err := w.Commit()
	require.NoError(t, err)
	defer ref.Close()
	got, err := ref.FrameF32(0)
	require.NoError(t, err)
	assert.Equal(t, plane, got)
}
