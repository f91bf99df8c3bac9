package stackstore

import (
	"encoding/binary"
	"fmt"

	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/perr"
)

// Kind identifies which pipeline artifact a stack holds.
type Kind string

const (
	KindPC           Kind = "pc"
	KindFL           Kind = "fl"
	KindSeg          Kind = "seg"
	KindSegLabeled   Kind = "seg_labeled"
	KindFLBackground Kind = "fl_background"
)

// DType is the on-disk scalar type tag.
type DType uint8

const (
	DTypeU16      DType = 1
	DTypeBool     DType = 2
	DTypeF32      DType = 3
	DTypeU16Label DType = 4
)

// ElemSize returns the on-disk size in bytes of one scalar of this dtype.
func (d DType) ElemSize() int {
	switch d {
	case DTypeU16, DTypeU16Label:
		return 2
	case DTypeBool:
		return 1
	case DTypeF32:
		return 4
	default:
		return 0
	}
}

// DTypeForKind returns the dtype mandated for a given stack kind.
func DTypeForKind(k Kind) DType {
	switch k {
	case KindPC, KindFL:
		return DTypeU16
	case KindSeg:
		return DTypeBool
	case KindFLBackground:
		return DTypeF32
	case KindSegLabeled:
		return DTypeU16Label
	default:
		return 0
	}
}

const (
	magic      = "PMAST1\x00\x00"
	headerSize = 32
)

// header is the fixed 32-byte stack file header.
type header struct {
	DType DType
	T, H, W uint32
}

func (h header) marshal() []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:8], magic)
	buf[8] = byte(h.DType)
	buf[9] = 3 // rank
	// buf[10:12] reserved
	binary.LittleEndian.PutUint32(buf[12:16], h.T)
	binary.LittleEndian.PutUint32(buf[16:20], h.H)
	binary.LittleEndian.PutUint32(buf[20:24], h.W)
	// buf[24:32] reserved2/reserved3 padding
	return buf
}

func unmarshalHeader(buf []byte) (header, error) {
	if len(buf) < headerSize {
		return header{}, perr.E(perr.IoError, "short stack header", nil)
	}
	if string(buf[0:8]) != magic {
		return header{}, perr.E(perr.FormatError, fmt.Sprintf("bad stack magic %q", buf[0:8]), nil)
	}
	h := header{
		DType: DType(buf[8]),
		T:     binary.LittleEndian.Uint32(buf[12:16]),
		H:     binary.LittleEndian.Uint32(buf[16:20]),
		W:     binary.LittleEndian.Uint32(buf[20:24]),
	}
	if buf[9] != 3 {
		return header{}, perr.E(perr.FormatError, fmt.Sprintf("bad stack rank %d", buf[9]), nil)
	}
	return h, nil
}
