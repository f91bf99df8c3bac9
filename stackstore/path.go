package stackstore

import (
	"fmt"
	"path/filepath"
)

// Store roots all stack paths at outputDir/fov_{f:03}/ and names stacks
// {basename}_fov_{fov:03}_{kind}_ch_{channel}.stack.
type Store struct {
	OutputDir string
	Basename  string
}

// FOVDir returns the per-FOV output directory.
func (s Store) FOVDir(fov int) string {
	return filepath.Join(s.OutputDir, fmt.Sprintf("fov_%03d", fov))
}

// fileName names a stack file; every kind is channel-scoped (segment/track
// outputs use the PC channel index).
func (s Store) fileName(kind Kind, fov, channel int) string {
	return fmt.Sprintf("%s_fov_%03d_%s_ch_%d.stack", s.Basename, fov, kind, channel)
}

// Path returns the final (published) path for a stack.
func (s Store) Path(kind Kind, fov, channel int) string {
	return filepath.Join(s.FOVDir(fov), s.fileName(kind, fov, channel))
}

// tempPath returns the temp path a Writer stages into before Commit renames
// it to Path(...).
func (s Store) tempPath(kind Kind, fov, channel int) string {
	return s.Path(kind, fov, channel) + ".tmp"
}

// TracesCSVPath returns the published traces CSV path for fov:
// "{basename}_fov_{f:03}_traces.csv".
func (s Store) TracesCSVPath(fov int) string {
	return filepath.Join(s.FOVDir(fov), fmt.Sprintf("%s_fov_%03d_traces.csv", s.Basename, fov))
}

// ManifestPath returns the manifest path at the store's output root:
// "processing_results.yaml".
func (s Store) ManifestPath() string {
	return filepath.Join(s.OutputDir, "processing_results.yaml")
}
