package stackstore

import (
	"math"
	"os"

	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/perr"
	"golang.org/x/sys/unix"
)

// StackRef is an opened, memory-mapped stack available for random-access
// frame reads.
type StackRef struct {
	path          string
	kind          Kind
	fov, channel  int
	dtype         DType
	t, h, w       int
	data          []byte // mmap'd file contents, including header
	fd            *os.File
}

// OpenStack mmaps the published stack at (kind, fov, channel) for reading.
func (s Store) OpenStack(kind Kind, fov, channel int) (*StackRef, error) {
	path := s.Path(kind, fov, channel)
	f, err := os.Open(path)
	if err != nil {
		return nil, perr.E(perr.IoError, "open stack file", err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, perr.E(perr.IoError, "stat stack file", err)
	}
	if stat.Size() < headerSize {
		f.Close()
		return nil, perr.E(perr.FormatError, "stack file too short", nil)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(stat.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, perr.E(perr.IoError, "mmap stack file", err)
	}
	hdr, err := unmarshalHeader(data)
	if err != nil {
		unix.Munmap(data)
		f.Close()
		return nil, err
	}
	expect := DTypeForKind(kind)
	if hdr.DType != expect {
		unix.Munmap(data)
		f.Close()
		return nil, perr.E(perr.FormatError, "stack dtype mismatch for kind", nil)
	}
	elemSize := hdr.DType.ElemSize()
	wantSize := int64(headerSize) + int64(hdr.T)*int64(hdr.H)*int64(hdr.W)*int64(elemSize)
	if wantSize != stat.Size() {
		unix.Munmap(data)
		f.Close()
		return nil, perr.E(perr.FormatError, "stack file size does not match header", nil)
	}
	return &StackRef{
		path: path, kind: kind, fov: fov, channel: channel,
		dtype: hdr.DType, t: int(hdr.T), h: int(hdr.H), w: int(hdr.W),
		data: data, fd: f,
	}, nil
}

// Shape returns (T,H,W).
func (r *StackRef) Shape() (t, h, w int) { return r.t, r.h, r.w }

// DType returns the stack's scalar dtype.
func (r *StackRef) DType() DType { return r.dtype }

// Close unmaps and closes the underlying file.
func (r *StackRef) Close() error {
	if r.data != nil {
		unix.Munmap(r.data)
		r.data = nil
	}
	if r.fd != nil {
		return r.fd.Close()
	}
	return nil
}

func (r *StackRef) frameBytes(t int) ([]byte, error) {
	if t < 0 || t >= r.t {
		return nil, perr.E(perr.IoError, "frame index out of range", nil)
	}
	if r.data == nil {
		// A ref returned by Writer.Commit is mapped on its first read.
		f, err := os.Open(r.path)
		if err != nil {
			return nil, perr.E(perr.IoError, "open stack file", err)
		}
		size := headerSize + r.t*r.h*r.w*r.dtype.ElemSize()
		data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
		if err != nil {
			f.Close()
			return nil, perr.E(perr.IoError, "mmap stack file", err)
		}
		r.data, r.fd = data, f
	}
	elemSize := r.dtype.ElemSize()
	n := r.h * r.w * elemSize
	off := headerSize + t*n
	return r.data[off : off+n], nil
}

// FrameU16 returns frame t as a u16 plane (kinds pc, fl).
func (r *StackRef) FrameU16(t int) ([]uint16, error) {
	raw, err := r.frameBytes(t)
	if err != nil {
		return nil, err
	}
	out := make([]uint16, r.h*r.w)
	for i := range out {
		out[i] = uint16(raw[2*i]) | uint16(raw[2*i+1])<<8
	}
	return out, nil
}

// FrameBool returns frame t as a bool plane (kind seg).
func (r *StackRef) FrameBool(t int) ([]bool, error) {
	raw, err := r.frameBytes(t)
	if err != nil {
		return nil, err
	}
	out := make([]bool, r.h*r.w)
	for i, b := range raw {
		out[i] = b != 0
	}
	return out, nil
}

// FrameF32 returns frame t as an f32 plane (kind fl_background).
func (r *StackRef) FrameF32(t int) ([]float32, error) {
	raw, err := r.frameBytes(t)
	if err != nil {
		return nil, err
	}
	out := make([]float32, r.h*r.w)
	for i := range out {
		bits := uint32(raw[4*i]) | uint32(raw[4*i+1])<<8 | uint32(raw[4*i+2])<<16 | uint32(raw[4*i+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}

// FrameU16Label returns frame t as a u16 label plane (kind seg_labeled).
func (r *StackRef) FrameU16Label(t int) ([]uint16, error) { return r.FrameU16(t) }

// Exists reports whether a complete (published) stack exists for
// (kind, fov, channel), used by the scheduler to skip stages whose output
// is already on disk. It does not validate shape.
func (s Store) Exists(kind Kind, fov, channel int) bool {
	_, err := os.Stat(s.Path(kind, fov, channel))
	return err == nil
}
