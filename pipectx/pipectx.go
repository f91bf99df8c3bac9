package pipectx

import (
	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/feature"
	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/perr"
)

// PCChannel names the phase-contrast channel and the phase features
// computed on it.
type PCChannel struct {
	Channel  int      `yaml:"channel"`
	Features []string `yaml:"features"`
}

// FLChannel names one fluorescence channel and the features computed on
// it.
type FLChannel struct {
	Channel  int      `yaml:"channel"`
	Features []string `yaml:"features"`
}

// ChannelConfig is the run's channel assignment. PC is required (see
// DESIGN.md Open Question 3: segmentation always needs a phase-contrast
// stack), even when PC.Features is empty.
type ChannelConfig struct {
	PC *PCChannel  `yaml:"pc"`
	FL []FLChannel `yaml:"fl"`
}

// Params holds the tunable processing parameters, with defaults assigned
// by DefaultParams.
type Params struct {
	BackgroundWeight float64 `yaml:"background_weight"`
	MinTraceLength   int     `yaml:"min_trace_length"`
	BorderWidthPx    int     `yaml:"border_width_px"`
	IoUMin           float64 `yaml:"iou_min"`
	SegStructSize    int     `yaml:"seg_struct_size"`
	SegStructIter    int     `yaml:"seg_struct_iter"`
	SegWindow        int     `yaml:"seg_window"`
	BgTile           int     `yaml:"bg_tile"`
	BgOverlap        float64 `yaml:"bg_overlap"`
	BatchSize        int     `yaml:"batch_size"`
	NWorkers         int     `yaml:"n_workers"`
}

// DefaultParams returns the parameter defaults used when a run config
// omits them.
func DefaultParams() Params {
	return Params{
		BackgroundWeight: 1.0,
		MinTraceLength:   30,
		BorderWidthPx:    10,
		IoUMin:           0.1,
		SegStructSize:    7,
		SegStructIter:    3,
		SegWindow:        3,
		BgTile:           64,
		BgOverlap:        0.5,
		BatchSize:        1,
		NWorkers:         1,
	}
}

// Context is the run's processing configuration: built once before a run
// and read-only for its duration.
type Context struct {
	OutputDir string        `yaml:"output_dir"`
	Channels  ChannelConfig `yaml:"channels"`
	Params    Params        `yaml:"params"`
	TimeUnits string        `yaml:"time_units"`
}

// Validate checks every parameter's range constraint, plus that every
// configured feature name is registered and matches its channel's
// signature. Called before any stage runs, so a bad config fails fast.
func (c *Context) Validate(registry *feature.Registry) error {
	if c.Channels.PC == nil {
		return perr.E(perr.ConfigError, "channels.pc is required: segmentation needs a phase-contrast stack", nil)
	}
	p := c.Params
	if p.BackgroundWeight < 0 || p.BackgroundWeight > 1 {
		return perr.E(perr.ConfigError, "params.background_weight must be in [0,1]", nil)
	}
	if p.SegWindow <= 0 || p.SegWindow%2 == 0 {
		return perr.E(perr.ConfigError, "params.seg_window must be a positive odd integer", nil)
	}
	if p.IoUMin < 0 || p.IoUMin > 1 {
		return perr.E(perr.ConfigError, "params.iou_min must be in [0,1]", nil)
	}
	if p.BatchSize <= 0 {
		return perr.E(perr.ConfigError, "params.batch_size must be positive", nil)
	}
	if p.NWorkers <= 0 {
		return perr.E(perr.ConfigError, "params.n_workers must be positive", nil)
	}
	if p.BgOverlap < 0 || p.BgOverlap >= 1 {
		return perr.E(perr.ConfigError, "params.bg_overlap must be in [0,1)", nil)
	}
	if p.SegStructSize <= 0 || p.SegStructIter <= 0 {
		return perr.E(perr.ConfigError, "params.seg_struct_size and seg_struct_iter must be positive", nil)
	}
	if p.BgTile <= 0 {
		return perr.E(perr.ConfigError, "params.bg_tile must be positive", nil)
	}

	for _, name := range c.Channels.PC.Features {
		entry, ok := registry.Lookup(name)
		if !ok || entry.Signature != feature.PhaseFeature {
			return perr.E(perr.ConfigError, "unknown or non-phase feature configured on pc channel: "+name, nil)
		}
	}
	for _, fl := range c.Channels.FL {
		for _, name := range fl.Features {
			entry, ok := registry.Lookup(name)
			if !ok || entry.Signature != feature.FluorescenceFeature {
				return perr.E(perr.ConfigError, "unknown or non-fluorescence feature configured on fl channel: "+name, nil)
			}
		}
	}
	return nil
}
