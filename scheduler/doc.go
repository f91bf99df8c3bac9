// Package scheduler implements the two-tier batch pipeline executor:
// serial Copy per batch, then a bounded parallel Processing phase (Segment,
// per-fl Background, Track, Extract) fanned out across the batch's FOVs,
// merging per-worker results under a single lock before an atomic manifest
// write.
package scheduler
