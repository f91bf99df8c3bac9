package main

import "github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/microscopy"

// syntheticReader builds a small in-memory microscopy source for
// -synthetic smoke-test runs: two square cells on a uniform background,
// channel 0 phase-contrast, channel 1 fluorescence, repeated for every
// frame.
func syntheticReader() (microscopy.Reader, error) {
	const (
		nFOV, nFrames, nChannels = 1, 4, 2
		h, w                     = 16, 16
	)
	meta := microscopy.Metadata{
		NFOVs: nFOV, NFrames: nFrames, NChannels: nChannels,
		H: h, W: w,
		ChannelNames: []string{"pc", "fl"},
		TimeUnits:    "minutes",
	}

	cellAt := func(y, x int) bool {
		return (y >= 4 && y < 6 && x >= 4 && x < 6) || (y >= 4 && y < 6 && x >= 9 && x < 11)
	}

	frames := make([][][][]uint16, nFOV)
	for f := 0; f < nFOV; f++ {
		frames[f] = make([][][]uint16, nFrames)
		for t := 0; t < nFrames; t++ {
			frames[f][t] = make([][]uint16, nChannels)
			pc := make([]uint16, h*w)
			fl := make([]uint16, h*w)
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					i := y*w + x
					if cellAt(y, x) {
						pc[i] = 2000
						fl[i] = 1500
					} else {
						pc[i] = 1000
						fl[i] = 500
					}
				}
			}
			frames[f][t][0] = pc
			frames[f][t][1] = fl
		}
	}
	return microscopy.NewMemReader(meta, frames)
}
