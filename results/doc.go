// Package results implements the run manifest: per-FOV produced-artifact
// bookkeeping, merged from worker-local deltas and serialized atomically to
// processing_results.yaml.
package results
