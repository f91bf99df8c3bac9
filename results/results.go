package results

import (
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/perr"
	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/pipectx"
)

// Status is one FOV's terminal processing state.
type Status string

const (
	StatusComplete  Status = "complete"
	StatusPartial   Status = "partial"
	StatusCancelled Status = "cancelled"
)

// FLArtifact names a produced per-channel fluorescence stack path.
type FLArtifact struct {
	Channel int    `yaml:"channel"`
	Path    string `yaml:"path"`
}

// FOVData is one FOV's entry in processing_results.yaml's fov_data map.
type FOVData struct {
	PC           string       `yaml:"pc"`
	FL           []FLArtifact `yaml:"fl"`
	Seg          string       `yaml:"seg"`
	SegLabeled   string       `yaml:"seg_labeled"`
	FLBackground []FLArtifact `yaml:"fl_background"`
	TracesCSV    string       `yaml:"traces_csv"`
	Status       Status       `yaml:"status"`
	Warnings     []string     `yaml:"warnings"`
}

// Delta is a worker-local view of one FOV's result, merged into Index under
// the scheduler's serialization so workers never touch the manifest
// directly.
type Delta struct {
	FOV  int
	Data FOVData
}

// manifest is the plain-data shape of processing_results.yaml, kept
// separate from Index's mutex so Index is never copied by value.
type manifest struct {
	ProjectPath string                `yaml:"project_path"`
	Basename    string                `yaml:"basename"`
	TimeUnits   string                `yaml:"time_units"`
	Channels    pipectx.ChannelConfig `yaml:"channels"`
	Params      pipectx.Params        `yaml:"params"`
	NFOV        int                   `yaml:"n_fov"`
	FOVData     map[int]FOVData       `yaml:"fov_data"`
}

// Index is the run manifest: per-FOV produced artifacts plus global
// project metadata. Mutated only by Merge, which serializes concurrent
// worker deltas under its own lock; workers themselves never touch it
// directly.
type Index struct {
	mu sync.Mutex
	m  manifest
}

// NewIndex builds the manifest header from a validated ProcessingContext,
// before any FOV has been processed.
func NewIndex(projectPath, basename string, ctx pipectx.Context, nFOV int) *Index {
	return &Index{
		m: manifest{
			ProjectPath: projectPath,
			Basename:    basename,
			TimeUnits:   ctx.TimeUnits,
			Channels:    ctx.Channels,
			Params:      ctx.Params,
			NFOV:        nFOV,
			FOVData:     make(map[int]FOVData),
		},
	}
}

// Merge records d's FOV result, overwriting any prior entry for that FOV.
// Safe for concurrent use.
func (idx *Index) Merge(d Delta) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.m.FOVData[d.FOV] = d.Data
}

// FOVData returns a copy of the current entry for fov, if any.
func (idx *Index) FOVData(fov int) (FOVData, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	d, ok := idx.m.FOVData[fov]
	return d, ok
}

// AnyIncomplete reports whether any recorded FOV did not reach
// StatusComplete, the signal the CLI uses to choose its "partial run"
// exit code.
func (idx *Index) AnyIncomplete() bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, d := range idx.m.FOVData {
		if d.Status != StatusComplete {
			return true
		}
	}
	return false
}

// snapshot returns a plain copy of the manifest data, safe to marshal
// outside the lock.
func (idx *Index) snapshot() manifest {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	cp := idx.m
	cp.FOVData = make(map[int]FOVData, len(idx.m.FOVData))
	for k, v := range idx.m.FOVData {
		cp.FOVData[k] = v
	}
	return cp
}

// Persist writes the manifest to path atomically: marshal to a temp file in
// the same directory, then rename over the final path, so a reader never
// observes a half-written manifest.
func (idx *Index) Persist(path string) error {
	snap := idx.snapshot()
	data, err := yaml.Marshal(&snap)
	if err != nil {
		return perr.E(perr.IoError, "marshal manifest", err)
	}
	tempPath := path + ".tmp"
	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return perr.E(perr.IoError, "create manifest temp file", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tempPath)
		return perr.E(perr.IoError, "write manifest", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return perr.E(perr.IoError, "sync manifest", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return perr.E(perr.IoError, "close manifest", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return perr.E(perr.IoError, "rename manifest", err)
	}
	return nil
}

// Load reads a manifest previously written by Persist, used to resume a
// run that was interrupted partway through.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, perr.E(perr.IoError, "read manifest", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, perr.E(perr.FormatError, "parse manifest", err)
	}
	if m.FOVData == nil {
		m.FOVData = make(map[int]FOVData)
	}
	return &Index{m: m}, nil
}
