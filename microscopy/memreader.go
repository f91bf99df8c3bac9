package microscopy

import (
	"context"
	"fmt"

	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/perr"
)

// MemReader is an in-memory Reader over synthetic or pre-decoded frame data,
// used by tests and by the CLI's -synthetic mode in place of a real ND2/CZI
// decoder.
type MemReader struct {
	meta Metadata
	// frames[fov][t][channel] is a row-major H*W plane.
	frames [][][][]uint16
	closed bool
}

// NewMemReader builds a MemReader from pre-populated frame data. frames must
// be shaped [meta.NFOVs][meta.NFrames][meta.NChannels][]uint16, each plane
// exactly meta.H*meta.W elements long.
func NewMemReader(meta Metadata, frames [][][][]uint16) (*MemReader, error) {
	if len(frames) != meta.NFOVs {
		return nil, perr.E(perr.ConfigError, fmt.Sprintf("MemReader: expected %d FOVs, got %d", meta.NFOVs, len(frames)), nil)
	}
	for f, byT := range frames {
		if len(byT) != meta.NFrames {
			return nil, perr.E(perr.ConfigError, fmt.Sprintf("MemReader: fov %d: expected %d frames, got %d", f, meta.NFrames, len(byT)), nil)
		}
		for t, byC := range byT {
			if len(byC) != meta.NChannels {
				return nil, perr.E(perr.ConfigError, fmt.Sprintf("MemReader: fov %d frame %d: expected %d channels, got %d", f, t, meta.NChannels, len(byC)), nil)
			}
			for c, plane := range byC {
				if len(plane) != meta.H*meta.W {
					return nil, perr.E(perr.ConfigError, fmt.Sprintf("MemReader: fov %d frame %d channel %d: expected %d pixels, got %d", f, t, c, meta.H*meta.W, len(plane)), nil)
				}
			}
		}
	}
	return &MemReader{meta: meta, frames: frames}, nil
}

// Metadata implements Reader.
func (r *MemReader) Metadata(ctx context.Context) (Metadata, error) {
	return r.meta, nil
}

// ReadFrame implements Reader.
func (r *MemReader) ReadFrame(ctx context.Context, fov, t, channel int) ([]uint16, error) {
	if r.closed {
		return nil, perr.E(perr.IoError, "ReadFrame on closed reader", nil)
	}
	if fov < 0 || fov >= r.meta.NFOVs || t < 0 || t >= r.meta.NFrames || channel < 0 || channel >= r.meta.NChannels {
		return nil, perr.E(perr.FormatError, fmt.Sprintf("ReadFrame: out-of-range (fov=%d,t=%d,channel=%d)", fov, t, channel), nil)
	}
	return r.frames[fov][t][channel], nil
}

// Close implements Reader.
func (r *MemReader) Close() error {
	r.closed = true
	return nil
}
