// Package segment implements the LOG-STD segmenter: per-frame binary masks
// from a phase-contrast stack, via local-variance thresholding and
// morphological cleanup.
package segment
