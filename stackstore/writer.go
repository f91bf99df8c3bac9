package stackstore

import (
	"math"
	"os"

	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/perr"
)

// ErrAlreadyExists-kind marker: callers check perr.KindOf(err) == perr.IoError
// and inspect Msg, since this is a scheduler-level resumability signal, not
// a failure, and so has no dedicated Kind of its own.
const alreadyExistsMsg = "stack already exists"

// IsAlreadyExists reports whether err is the "stack already complete" signal
// from Create, which the scheduler uses to skip stages whose output already
// exists on disk.
func IsAlreadyExists(err error) bool {
	pe, ok := err.(*perr.Error)
	return ok && pe.Msg == alreadyExistsMsg
}

// Writer accumulates frames for one (kind, fov, channel) stack into a temp
// file, then atomically publishes them on Commit.
type Writer struct {
	store     Store
	kind      Kind
	fov, ch   int
	t, h, w   int
	dtype     DType
	elemSize  int
	f         *os.File
	tempPath  string
	finalPath string
	committed bool
}

// Create opens a new Writer for (kind, fov, channel). It fails with an
// already-exists error (see IsAlreadyExists) if a complete stack already
// exists at the final path — the scheduler decides whether to skip or
// overwrite.
func (s Store) Create(kind Kind, fov, channel, t, h, w int) (*Writer, error) {
	finalPath := s.Path(kind, fov, channel)
	if _, err := os.Stat(finalPath); err == nil {
		return nil, perr.E(perr.IoError, alreadyExistsMsg, nil)
	}
	if err := os.MkdirAll(s.FOVDir(fov), 0o755); err != nil {
		return nil, perr.E(perr.IoError, "mkdir fov dir", err)
	}
	dtype := DTypeForKind(kind)
	tempPath := s.tempPath(kind, fov, channel)
	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		return nil, perr.E(perr.IoError, "create temp stack file", err)
	}
	hdr := header{DType: dtype, T: uint32(t), H: uint32(h), W: uint32(w)}
	if _, err := f.Write(hdr.marshal()); err != nil {
		f.Close()
		os.Remove(tempPath)
		return nil, perr.E(perr.IoError, "write stack header", err)
	}
	elemSize := dtype.ElemSize()
	size := int64(headerSize) + int64(t)*int64(h)*int64(w)*int64(elemSize)
	if err := f.Truncate(size); err != nil {
		f.Close()
		os.Remove(tempPath)
		return nil, perr.E(perr.IoError, "truncate stack file", err)
	}
	return &Writer{
		store: s, kind: kind, fov: fov, ch: channel,
		t: t, h: h, w: w, dtype: dtype, elemSize: elemSize,
		f: f, tempPath: tempPath, finalPath: finalPath,
	}, nil
}

func (w *Writer) frameOffset(t int) int64 {
	return int64(headerSize) + int64(t)*int64(w.h)*int64(w.w)*int64(w.elemSize)
}

// putFrame writes raw, one frame already encoded in the stack's dtype, as
// frame t. raw must be exactly H*W*elemSize bytes long; the exported
// PutFrame* wrappers check the dtype.
func (w *Writer) putFrame(t int, raw []byte) error {
	if t < 0 || t >= w.t {
		return perr.E(perr.IoError, "frame index out of range", nil)
	}
	expect := w.h * w.w * w.elemSize
	if len(raw) != expect {
		return perr.E(perr.DimensionMismatch, "frame plane size mismatch", nil)
	}
	if _, err := w.f.WriteAt(raw, w.frameOffset(t)); err != nil {
		return perr.E(perr.IoError, "write frame", err)
	}
	return nil
}

// PutFrameU16 writes a u16 frame (kind pc/fl).
func (w *Writer) PutFrameU16(t int, plane []uint16) error {
	if w.dtype != DTypeU16 {
		return perr.E(perr.DimensionMismatch, "dtype mismatch: expected u16", nil)
	}
	return w.putFrame(t, u16ToBytes(plane))
}

// PutFrameBool writes a bool frame (kind seg), one byte per pixel.
func (w *Writer) PutFrameBool(t int, plane []bool) error {
	if w.dtype != DTypeBool {
		return perr.E(perr.DimensionMismatch, "dtype mismatch: expected bool", nil)
	}
	raw := make([]byte, len(plane))
	for i, v := range plane {
		if v {
			raw[i] = 1
		}
	}
	return w.putFrame(t, raw)
}

// PutFrameF32 writes an f32 frame (kind fl_background).
func (w *Writer) PutFrameF32(t int, plane []float32) error {
	if w.dtype != DTypeF32 {
		return perr.E(perr.DimensionMismatch, "dtype mismatch: expected f32", nil)
	}
	return w.putFrame(t, f32ToBytes(plane))
}

// PutFrameU16Label writes a u16-label frame (kind seg_labeled).
func (w *Writer) PutFrameU16Label(t int, plane []uint16) error {
	if w.dtype != DTypeU16Label {
		return perr.E(perr.DimensionMismatch, "dtype mismatch: expected u16_label", nil)
	}
	return w.putFrame(t, u16ToBytes(plane))
}

// Commit flushes and atomically publishes the stack, renaming the temp file
// to its final path. After Commit, the Writer must not be used again.
func (w *Writer) Commit() (StackRef, error) {
	if err := w.f.Sync(); err != nil {
		return StackRef{}, perr.E(perr.IoError, "sync stack file", err)
	}
	if err := w.f.Close(); err != nil {
		return StackRef{}, perr.E(perr.IoError, "close stack file", err)
	}
	if err := os.Rename(w.tempPath, w.finalPath); err != nil {
		return StackRef{}, perr.E(perr.IoError, "rename stack file", err)
	}
	w.committed = true
	return StackRef{
		path: w.finalPath, kind: w.kind, fov: w.fov, channel: w.ch,
		dtype: w.dtype, t: w.t, h: w.h, w: w.w,
	}, nil
}

// Discard removes the uncommitted temp file. A writer still in flight when
// a run is cancelled is destroyed, never published.
func (w *Writer) Discard() error {
	if w.committed {
		return nil
	}
	w.f.Close()
	return os.Remove(w.tempPath)
}

func u16ToBytes(v []uint16) []byte {
	out := make([]byte, len(v)*2)
	for i, x := range v {
		out[2*i] = byte(x)
		out[2*i+1] = byte(x >> 8)
	}
	return out
}

func f32ToBytes(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, x := range v {
		bits := math.Float32bits(x)
		out[4*i] = byte(bits)
		out[4*i+1] = byte(bits >> 8)
		out[4*i+2] = byte(bits >> 16)
		out[4*i+3] = byte(bits >> 24)
	}
	return out
}
