package microscopy

import "context"

// Metadata describes a microscopy source file: its FOV/frame/channel
// counts, spatial dimensions, channel naming, and acquisition timing.
type Metadata struct {
	NFOVs        int
	NFrames      int
	NChannels    int
	H, W         int
	ChannelNames []string
	TimeUnits    string
	// TimePoints maps frame index to acquisition time in TimeUnits. Nil
	// means the caller should fall back to the frame index.
	TimePoints []float64
}

// Reader is the capability consumed by the Copy stage. A Reader is not
// assumed to be safe for concurrent use — the scheduler serializes all
// reads against a single open Reader for the duration of a batch.
type Reader interface {
	// Metadata returns the source's static shape and channel information.
	Metadata(ctx context.Context) (Metadata, error)

	// ReadFrame returns the raw u16 pixel plane (row-major, H*W) for the
	// given field of view, time point and channel. It blocks until the
	// frame is decoded and may fail with a *perr.Error of kind IoError or
	// FormatError.
	ReadFrame(ctx context.Context, fov, t, channel int) ([]uint16, error)

	// Close releases any resources (file handles, decoders) held by the
	// reader. The scheduler reads every batch of a run through the one
	// Reader it is given and never closes it; the caller that opened the
	// Reader closes it after the run.
	Close() error
}

// Opener opens a microscopy source file and returns a Reader. A concrete
// ND2/CZI decoder implements this; it is injected by the caller rather than
// constructed here.
type Opener func(ctx context.Context, path string) (Reader, error)
