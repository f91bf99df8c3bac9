// Package imgproc holds the numeric kernels shared by the segmenter,
// background estimator, tracker and feature extractor: box filtering,
// histogram valley thresholding, binary morphology, run-length connected
// components, bicubic tile interpolation and Hungarian assignment.
//
// None of these operate on github.com/grailbio/bio's record types; they are
// plain slices over (H,W) planes, the image-processing analogue of that
// package's bulk byte-array kernels (biosimd) and interval-union machinery
// (interval), rewritten for pixel coordinates instead of genomic ones.
package imgproc
